// Package imagesearch resolves a keyword query to image URLs using an
// Unsplash-compatible search endpoint.
package imagesearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const defaultBaseURL = "https://api.unsplash.com/search/photos"

type Config struct {
	BaseURL string
	APIKey  string
	PerPage int
	Timeout time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
	log  zerolog.Logger
}

func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log.With().Str("component", "imagesearch").Logger(),
	}
}

type searchResp struct {
	Results []struct {
		URLs struct {
			Regular string `json:"regular"`
			Small   string `json:"small"`
		} `json:"urls"`
	} `json:"results"`
}

// SearchImages returns up to PerPage URLs in the order the backend ranked them.
// An empty result is not an error here; the caller decides what that means.
func (c *Client) SearchImages(ctx context.Context, query string) ([]string, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("per_page", strconv.Itoa(c.cfg.PerPage))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Client-ID "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image search http error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2*1024))
		return nil, fmt.Errorf("image search: status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var decoded searchResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode image search response: %w", err)
	}

	urls := make([]string, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		u := r.URLs.Regular
		if u == "" {
			u = r.URLs.Small
		}
		if u != "" {
			urls = append(urls, u)
		}
		if len(urls) == c.cfg.PerPage {
			break
		}
	}

	c.log.Debug().Str("query", query).Int("found", len(urls)).Msg("image search done")
	return urls, nil
}
