// Package client is a JSON-over-HTTP implementation of the remote store
// contract, talking to a forumd backend.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/carlmjohnson/versioninfo"

	"github.com/rescroll/forumd/engine"
	"github.com/rescroll/forumd/forum"
	"github.com/rescroll/forumd/util/cliutil"
)

type Client struct {
	// Client is an HTTP client to use. If not set, defaults to
	// cliutil.NewHttpClient(), which never retries.
	Client    *http.Client
	Host      string
	UserAgent *string
	Headers   map[string]string
}

var _ engine.RemoteStore = (*Client)(nil)

func (c *Client) getClient() *http.Client {
	if c.Client == nil {
		return cliutil.NewHttpClient()
	}
	return c.Client
}

// ErrorResponse is the JSON error body the forumd server returns alongside a
// non-2xx status.
type ErrorResponse struct {
	ErrStr  string `json:"error"`
	Message string `json:"message"`
}

func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("%s: %s", e.ErrStr, e.Message)
}

type Error struct {
	StatusCode int
	Wrapped    error
}

func (e *Error) Error() string {
	if e.Wrapped == nil {
		return fmt.Sprintf("forumd error %d", e.StatusCode)
	}
	return fmt.Sprintf("forumd error %d: %s", e.StatusCode, e.Wrapped)
}

func (e *Error) Unwrap() error {
	return e.Wrapped
}

func (e *Error) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

func (c *Client) do(ctx context.Context, method string, path string, bodyobj interface{}, out interface{}) error {
	var body io.Reader
	if bodyobj != nil {
		b, err := json.Marshal(bodyobj)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.Host+path, body)
	if err != nil {
		return err
	}

	if bodyobj != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.UserAgent != nil {
		req.Header.Set("User-Agent", *c.UserAgent)
	} else {
		req.Header.Set("User-Agent", "forumd/"+versioninfo.Short())
	}
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.getClient().Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var er ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
			return &Error{StatusCode: resp.StatusCode, Wrapped: fmt.Errorf("failed to decode error message: %w", err)}
		}
		return &Error{StatusCode: resp.StatusCode, Wrapped: &er}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}

// ListPosts fetches the full post set, nested comments included.
func (c *Client) ListPosts(ctx context.Context) ([]forum.Post, error) {
	var out []forum.Post
	if err := c.do(ctx, http.MethodGet, "/posts", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreatePost(ctx context.Context, draft forum.PostDraft) (forum.Post, error) {
	var out forum.Post
	if err := c.do(ctx, http.MethodPost, "/posts", draft, &out); err != nil {
		return forum.Post{}, err
	}
	return out, nil
}

func (c *Client) UpdatePost(ctx context.Context, id string, patch forum.PostPatch) (forum.Post, error) {
	var out forum.Post
	if err := c.do(ctx, http.MethodPut, "/posts/"+url.PathEscape(id), patch, &out); err != nil {
		return forum.Post{}, err
	}
	return out, nil
}

func (c *Client) DeletePost(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/posts/"+url.PathEscape(id), nil, nil)
}

type upvoteResponse struct {
	VoteCount int64 `json:"voteCount"`
}

// UpvotePost increments the post's vote counter and returns the committed
// count. The increment is atomic on the server side.
func (c *Client) UpvotePost(ctx context.Context, id string) (int64, error) {
	var out upvoteResponse
	if err := c.do(ctx, http.MethodPost, "/posts/"+url.PathEscape(id)+"/upvote", nil, &out); err != nil {
		return 0, err
	}
	return out.VoteCount, nil
}

type addCommentBody struct {
	Text string `json:"text"`
}

func (c *Client) AddComment(ctx context.Context, id string, text string) (forum.Comment, error) {
	var out forum.Comment
	if err := c.do(ctx, http.MethodPost, "/posts/"+url.PathEscape(id)+"/comments", addCommentBody{Text: text}, &out); err != nil {
		return forum.Comment{}, err
	}
	return out, nil
}

type HealthStatus struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	PostCount    *int64 `json:"postCount,omitempty"`
	CommentCount *int64 `json:"commentCount,omitempty"`
}

func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var out HealthStatus
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
