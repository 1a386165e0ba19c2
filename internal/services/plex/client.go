// Package plex implements the library connector against the Plex Media
// Server HTTP API. All requests authenticate with X-Plex-Token and ask for
// JSON responses.
package plex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/amaumene/sweeparr/internal/config"
	"github.com/sirupsen/logrus"
)

const userAgent = "sweeparr/1.0"

// Client wraps direct Plex API HTTP calls
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient creates a new Plex client
func NewClient(cfg *config.Config, logger *logrus.Logger) (*Client, error) {
	if cfg.PlexURL == "" {
		return nil, fmt.Errorf("plex URL is required")
	}
	if cfg.PlexToken == "" {
		return nil, fmt.Errorf("plex token is required")
	}

	return &Client{
		baseURL: cfg.PlexURL,
		token:   cfg.PlexToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}, nil
}

// TestConnection verifies the server is reachable and the token is valid
func (c *Client) TestConnection(ctx context.Context) error {
	var container sectionsContainer
	return c.get(ctx, "/library/sections", nil, &container)
}

// get performs a GET request against the Plex API and decodes the JSON
// MediaContainer response into dest
func (c *Client) get(ctx context.Context, path string, params url.Values, dest interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, params)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("plex request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to parse plex response: %w", err)
	}
	return nil
}

// send performs a mutating request (PUT/DELETE) and discards the body
func (c *Client) send(ctx context.Context, method, path string, params url.Values) error {
	req, err := c.newRequest(ctx, method, path, params)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("plex request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.statusError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, params url.Values) (*http.Request, error) {
	apiURL, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid plex URL: %w", err)
	}
	if params != nil {
		apiURL.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Plex-Token", c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	return req, nil
}

func (c *Client) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	c.logger.WithFields(logrus.Fields{
		"status_code": resp.StatusCode,
		"url":         resp.Request.URL.Path,
	}).Error("Plex API returned non-OK status")
	return fmt.Errorf("plex API returned status %d: %s", resp.StatusCode, string(body))
}
