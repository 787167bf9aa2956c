// Package geocode is a thin client for a Nominatim-style search API, used
// for address autocomplete and for resolving a saved address to lat/lng.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"cleanops/internal/config"
)

type Result struct {
	DisplayName string  `json:"display_name"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
}

type Client struct {
	baseURL string
	email   string
	http    *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL: cfg.Geocode.BaseURL,
		email:   cfg.Geocode.Email,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// Search returns up to limit candidate addresses for a free-text query.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "jsonv2")
	q.Set("limit", strconv.Itoa(limit))
	if c.email != "" {
		q.Set("email", c.email)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "cleanops")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocode search: status %d", resp.StatusCode)
	}
	var raw []struct {
		DisplayName string `json:"display_name"`
		Lat         string `json:"lat"`
		Lon         string `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("geocode decode: %w", err)
	}
	out := make([]Result, 0, len(raw))
	for _, r := range raw {
		lat, _ := strconv.ParseFloat(r.Lat, 64)
		lng, _ := strconv.ParseFloat(r.Lon, 64)
		out = append(out, Result{DisplayName: r.DisplayName, Lat: lat, Lng: lng})
	}
	return out, nil
}

// Resolve returns the best match for an address, or nil when nothing matched.
func (c *Client) Resolve(ctx context.Context, address string) (*Result, error) {
	results, err := c.Search(ctx, address, 1)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return &results[0], nil
}
