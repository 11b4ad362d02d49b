// Package music resolves spoken music requests against an external catalog
// service.
package music

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/amparo-ai/amparo/pkg/core"
	"github.com/amparo-ai/amparo/pkg/core/types"
)

const defaultSearchTimeout = 8 * time.Second

// Client talks to the music catalog's search API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: defaultSearchTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}
}

type searchResponse struct {
	Tracks []struct {
		ID     string `json:"id"`
		Title  string `json:"title"`
		Artist string `json:"artist"`
		URL    string `json:"url"`
		Kind   string `json:"kind"`
	} `json:"tracks"`
}

// Search returns the best match for the identifier, or nil when the catalog
// has nothing. kind narrows the lookup ("song", "artist", "genre",
// "station"); empty means any.
func (c *Client) Search(ctx context.Context, identifier, kind string) (*types.Track, error) {
	q := url.Values{}
	q.Set("q", identifier)
	if kind != "" {
		q.Set("kind", kind)
	}
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/search?"+q.Encode(), nil)
	if err != nil {
		return nil, core.NewCollaboratorError("music-catalog", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, core.NewCollaboratorError("music-catalog", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, core.NewCollaboratorError("music-catalog",
			fmt.Errorf("search returned status %d: %s", resp.StatusCode, body))
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, core.NewCollaboratorError("music-catalog", err)
	}
	if len(decoded.Tracks) == 0 {
		return nil, nil
	}

	first := decoded.Tracks[0]
	return &types.Track{
		ID:     first.ID,
		Title:  first.Title,
		Artist: first.Artist,
		URL:    first.URL,
		Kind:   first.Kind,
	}, nil
}
