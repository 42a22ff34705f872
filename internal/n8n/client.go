// Package n8n is a small client for the workflow server's public REST API.
package n8n

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/roach88/wfkeeper/internal/workflow"
)

const (
	apiKeyHeader = "X-N8N-API-KEY"

	listPath   = "/api/v1/workflows"
	healthPath = "/healthz"

	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 3

	// maxErrorBody bounds how much of an error response is kept.
	maxErrorBody = 512
)

// StatusError reports a non-2xx response.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.URL, e.Code)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.URL, e.Code, e.Body)
}

// IsNotFound reports whether err is a 404 StatusError.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// IsUnauthorized reports whether err is a 401 or 403 StatusError.
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && (se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden)
}

// Client talks to one server.
type Client struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int

	// HTTPClient defaults to a client using Timeout.
	HTTPClient *http.Client
	// Sleep waits between listing retries. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// New returns a client with the default timeout and retry budget.
func New(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		Timeout:    DefaultTimeout,
		MaxRetries: DefaultMaxRetries,
	}
}

type listPage struct {
	Data       []workflow.Summary `json:"data"`
	NextCursor *string            `json:"nextCursor"`
}

// ListWorkflows returns every workflow summary, following nextCursor
// pagination. Each page is retried MaxRetries times with 1s, 2s, 4s
// backoff; an exhausted page fails the whole listing.
func (c *Client) ListWorkflows(ctx context.Context) ([]workflow.Summary, error) {
	all := []workflow.Summary{}
	seen := map[string]bool{}
	cursor := ""
	for {
		page, err := c.listPageWithRetry(ctx, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Data...)
		if page.NextCursor == nil || *page.NextCursor == "" {
			break
		}
		cursor = *page.NextCursor
		if seen[cursor] {
			return nil, fmt.Errorf("list workflows: cursor %q repeated", cursor)
		}
		seen[cursor] = true
	}
	slog.Info("listed workflows", "count", len(all))
	return all, nil
}

func (c *Client) listPageWithRetry(ctx context.Context, cursor string) (*listPage, error) {
	attempts := c.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	u := c.BaseURL + listPath
	if cursor != "" {
		u += "?cursor=" + url.QueryEscape(cursor)
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		var page listPage
		err := c.getJSON(ctx, u, true, &page)
		if err == nil {
			return &page, nil
		}
		lastErr = err
		slog.Warn("list workflows failed", "attempt", attempt+1, "max_attempts", attempts, "error", err)
		if attempt == attempts-1 {
			break
		}
		if err := c.sleep(ctx, time.Duration(1<<attempt)*time.Second); err != nil {
			return nil, fmt.Errorf("list workflows: %w", err)
		}
	}
	slog.Error("list workflows: retries exhausted", "attempts", attempts)
	return nil, fmt.Errorf("list workflows after %d attempts: %w", attempts, lastErr)
}

// GetWorkflow fetches one full workflow definition. It is not retried.
func (c *Client) GetWorkflow(ctx context.Context, id string) (*workflow.Document, error) {
	u := c.BaseURL + listPath + "/" + url.PathEscape(id)
	var doc workflow.Document
	if err := c.getJSON(ctx, u, true, &doc); err != nil {
		return nil, fmt.Errorf("get workflow %s: %w", id, err)
	}
	return &doc, nil
}

func (c *Client) getJSON(ctx context.Context, u string, auth bool, dst any) error {
	resp, err := c.do(ctx, u, auth)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Method: http.MethodGet, URL: u, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", u, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, u string, auth bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if auth {
		req.Header.Set(apiKeyHeader, c.APIKey)
	}
	return c.httpClient().Do(req)
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	if c.Sleep != nil {
		return c.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
