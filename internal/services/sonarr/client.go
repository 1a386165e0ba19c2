// Package sonarr implements series deletion through the Sonarr v3 API.
package sonarr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/amaumene/sweeparr/internal/config"
	"github.com/sirupsen/logrus"
)

// Series is the subset of the Sonarr series resource the core needs
type Series struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	TitleSlug string `json:"titleSlug"`
	TVDBID    int64  `json:"tvdbId"`
}

// Client wraps direct Sonarr API HTTP calls
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient creates a new Sonarr client
func NewClient(cfg *config.Config, logger *logrus.Logger) (*Client, error) {
	if cfg.SonarrURL == "" {
		return nil, fmt.Errorf("sonarr URL is required")
	}
	if cfg.SonarrAPIKey == "" {
		return nil, fmt.Errorf("sonarr API key is required")
	}

	return &Client{
		baseURL: cfg.SonarrURL,
		apiKey:  cfg.SonarrAPIKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}, nil
}

// TestConnection verifies the Sonarr server is reachable
func (c *Client) TestConnection(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v3/system/status")
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sonarr request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp)
	}
	return nil
}

// LookupExternalID finds the Sonarr series id for a show title. Exact title
// and slug matches win; otherwise the first case-insensitive substring
// match is used. found is false when nothing matches.
func (c *Client) LookupExternalID(ctx context.Context, title string) (int64, bool, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v3/series")
	if err != nil {
		return 0, false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, false, fmt.Errorf("sonarr request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, false, c.statusError(resp)
	}

	var seriesList []Series
	if err := json.NewDecoder(resp.Body).Decode(&seriesList); err != nil {
		return 0, false, fmt.Errorf("failed to parse sonarr response: %w", err)
	}

	for _, series := range seriesList {
		if series.Title == title || series.TitleSlug == title {
			return series.ID, true, nil
		}
	}
	lower := strings.ToLower(title)
	for _, series := range seriesList {
		if strings.Contains(strings.ToLower(series.Title), lower) {
			return series.ID, true, nil
		}
	}
	return 0, false, nil
}

// DeleteByExternalID deletes a series and its files via Sonarr
func (c *Client) DeleteByExternalID(ctx context.Context, id int64) error {
	req, err := c.newRequest(ctx, http.MethodDelete, fmt.Sprintf("/api/v3/series/%d?deleteFiles=true", id))
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sonarr request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp)
	}

	c.logger.WithField("series_id", id).Info("Deleted series via Sonarr")
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("User-Agent", "sweeparr/1.0")
	return req, nil
}

func (c *Client) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return fmt.Errorf("sonarr API returned status %d: %s", resp.StatusCode, string(body))
}
