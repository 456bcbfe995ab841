// Package social implements the social search source adapter.
package social

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"TGEMonitor/internal/domain"
)

// DefaultBaseURL is the public API root for recent search.
const DefaultBaseURL = "https://api.twitter.com/2"

// Result count bounds accepted by the recent search endpoint.
const (
	MinResults = 10
	MaxResults = 100
)

// Post is one search hit joined with its author.
type Post struct {
	ID        string
	Text      string
	CreatedAt string
	Author    Author
	Retweets  int64
	Likes     int64
}

// Author is the subset of user fields used for scoring.
type Author struct {
	ID        string
	Username  string
	Name      string
	Followers int64
}

// Client calls the recent search endpoint with a bearer token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a client; an empty baseURL selects DefaultBaseURL.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

type searchResponse struct {
	Data []struct {
		ID            string `json:"id"`
		Text          string `json:"text"`
		CreatedAt     string `json:"created_at"`
		AuthorID      string `json:"author_id"`
		PublicMetrics struct {
			RetweetCount int64 `json:"retweet_count"`
			LikeCount    int64 `json:"like_count"`
		} `json:"public_metrics"`
	} `json:"data"`
	Includes struct {
		Users []struct {
			ID            string `json:"id"`
			Username      string `json:"username"`
			Name          string `json:"name"`
			PublicMetrics struct {
				FollowersCount int64 `json:"followers_count"`
			} `json:"public_metrics"`
		} `json:"users"`
	} `json:"includes"`
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

// SearchRecent runs one query. Throttling yields a *domain.RateLimitError;
// other failures yield a *domain.FetchError flagged retryable when transient.
func (c *Client) SearchRecent(ctx context.Context, query string, maxResults int) ([]Post, error) {
	maxResults = min(max(maxResults, MinResults), MaxResults)

	params := url.Values{}
	params.Set("query", query)
	params.Set("max_results", strconv.Itoa(maxResults))
	params.Set("tweet.fields", "created_at,public_metrics,author_id")
	params.Set("expansions", "author_id")
	params.Set("user.fields", "username,name,public_metrics")
	endpoint := c.baseURL + "/tweets/search/recent?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &domain.FetchError{Endpoint: query, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &domain.FetchError{Endpoint: query, Retryable: ctx.Err() == nil, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &domain.RateLimitError{Endpoint: query, RetryAfter: resetAfter(resp.Header)}
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &domain.FetchError{
			Endpoint:   query,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("access denied: %s", strings.TrimSpace(string(body))),
		}
	case resp.StatusCode != http.StatusOK:
		return nil, &domain.FetchError{
			Endpoint:   query,
			StatusCode: resp.StatusCode,
			Retryable:  domain.IsTransientStatus(resp.StatusCode),
			Err:        fmt.Errorf("search returned %s", resp.Status),
		}
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &domain.FetchError{Endpoint: query, Err: &domain.ParseError{Input: query, Err: err}}
	}
	if len(payload.Data) == 0 && len(payload.Errors) > 0 {
		return nil, &domain.FetchError{Endpoint: query, Err: fmt.Errorf("search error: %s", payload.Errors[0].Detail)}
	}

	users := make(map[string]Author, len(payload.Includes.Users))
	for _, u := range payload.Includes.Users {
		users[u.ID] = Author{ID: u.ID, Username: u.Username, Name: u.Name, Followers: u.PublicMetrics.FollowersCount}
	}

	posts := make([]Post, 0, len(payload.Data))
	for _, d := range payload.Data {
		author := users[d.AuthorID]
		if author.ID == "" {
			author.ID = d.AuthorID
		}
		posts = append(posts, Post{
			ID:        d.ID,
			Text:      d.Text,
			CreatedAt: d.CreatedAt,
			Author:    author,
			Retweets:  d.PublicMetrics.RetweetCount,
			Likes:     d.PublicMetrics.LikeCount,
		})
	}
	return posts, nil
}

// resetAfter reads the reset epoch the API sends with a 429.
func resetAfter(h http.Header) time.Duration {
	if v := h.Get("x-rate-limit-reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			if d := time.Until(time.Unix(epoch, 0)); d > 0 {
				return d
			}
		}
	}
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}
