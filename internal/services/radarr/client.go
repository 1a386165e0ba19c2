// Package radarr implements movie deletion through the Radarr v3 API.
package radarr

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

// Movie is the subset of the Radarr movie resource the core needs
type Movie struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	TitleSlug string `json:"titleSlug"`
}

// Client wraps direct Radarr API HTTP calls
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient creates a new Radarr client
func NewClient(cfg *config.Config, logger *logrus.Logger) (*Client, error) {
	if cfg.RadarrURL == "" {
		return nil, fmt.Errorf("radarr URL is required")
	}
	if cfg.RadarrAPIKey == "" {
		return nil, fmt.Errorf("radarr API key is required")
	}

	return &Client{
		baseURL: cfg.RadarrURL,
		apiKey:  cfg.RadarrAPIKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}, nil
}

// TestConnection verifies the Radarr server is reachable
func (c *Client) TestConnection(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v3/system/status")
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("radarr request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp)
	}
	return nil
}

// LookupExternalID finds the Radarr movie id for a title. Exact title and
// slug matches win; otherwise the first case-insensitive substring match is
// used. found is false when nothing matches.
func (c *Client) LookupExternalID(ctx context.Context, title string) (int64, bool, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v3/movie")
	if err != nil {
		return 0, false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, false, fmt.Errorf("radarr request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, false, c.statusError(resp)
	}

	var movies []Movie
	if err := json.NewDecoder(resp.Body).Decode(&movies); err != nil {
		return 0, false, fmt.Errorf("failed to parse radarr response: %w", err)
	}

	for _, movie := range movies {
		if movie.Title == title || movie.TitleSlug == title {
			return movie.ID, true, nil
		}
	}
	lower := strings.ToLower(title)
	for _, movie := range movies {
		if strings.Contains(strings.ToLower(movie.Title), lower) {
			return movie.ID, true, nil
		}
	}
	return 0, false, nil
}

// DeleteByExternalID deletes a movie and its files via Radarr
func (c *Client) DeleteByExternalID(ctx context.Context, id int64) error {
	req, err := c.newRequest(ctx, http.MethodDelete, fmt.Sprintf("/api/v3/movie/%d?deleteFiles=true", id))
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("radarr request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp)
	}

	c.logger.WithField("movie_id", id).Info("Deleted movie via Radarr")
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
	return fmt.Errorf("radarr API returned status %d: %s", resp.StatusCode, string(body))
}
