// Package source provides content source clients for the check pipeline.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pagewatch/shrike/internal/domain"
)

const defaultGraphURL = "https://graph.facebook.com"

// feedFields are the post fields requested from the Graph API, matching
// the text-bearing fields the extractor consumes.
const feedFields = "id,message,story,description,caption,name,type,created_time,permalink_url"

// FacebookClient fetches recent posts from a Facebook page feed.
type FacebookClient struct {
	token   string
	version string
	baseURL string
	client  *http.Client
}

// NewFacebookClient creates a Graph API client.
func NewFacebookClient(cfg domain.SourceConfig) *FacebookClient {
	version := cfg.APIVersion
	if version == "" {
		version = "v19.0"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultGraphURL
	}
	return &FacebookClient{
		token:   cfg.AccessToken,
		version: version,
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type feedResponse struct {
	Data []struct {
		ID          string    `json:"id"`
		Message     string    `json:"message"`
		Story       string    `json:"story"`
		Description string    `json:"description"`
		Caption     string    `json:"caption"`
		Name        string    `json:"name"`
		Type        string    `json:"type"`
		CreatedTime time.Time `json:"created_time"`
		Permalink   string    `json:"permalink_url"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// FetchRecent returns up to limit recent posts from the page feed,
// newest first (ordering owned by the Graph API).
func (c *FacebookClient) FetchRecent(ctx context.Context, pageID string, limit int) ([]*domain.Post, error) {
	if pageID == "" {
		return nil, fmt.Errorf("pageID is required")
	}
	if limit <= 0 {
		limit = 10
	}

	q := url.Values{}
	q.Set("fields", feedFields)
	q.Set("limit", fmt.Sprintf("%d", limit))
	q.Set("access_token", c.token)

	endpoint := fmt.Sprintf("%s/%s/%s/posts?%s", c.baseURL, c.version, url.PathEscape(pageID), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("page feed request failed: %w", err)
	}
	defer resp.Body.Close()

	var feed feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("failed to decode page feed: %w", err)
	}

	if feed.Error != nil {
		return nil, fmt.Errorf("graph api error %d (%s): %s",
			feed.Error.Code, feed.Error.Type, feed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page feed returned status %d", resp.StatusCode)
	}

	posts := make([]*domain.Post, 0, len(feed.Data))
	for _, d := range feed.Data {
		posts = append(posts, &domain.Post{
			ID:          d.ID,
			PageID:      pageID,
			Type:        d.Type,
			Message:     d.Message,
			Story:       d.Story,
			Description: d.Description,
			Caption:     d.Caption,
			Name:        d.Name,
			CreatedTime: d.CreatedTime,
			Permalink:   d.Permalink,
		})
	}
	return posts, nil
}
