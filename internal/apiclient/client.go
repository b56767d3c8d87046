package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/blackmichael/creator-tasks/internal/domain"
)

const defaultBaseURL = "http://localhost:3000"

// Client is a minimal client for the task engine HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client. If baseURL is empty, it defaults to
// http://localhost:3000.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int    `json:"-"`
	Type    string `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("API error (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("API error (status %d, %s): %s", e.Status, e.Type, e.Message)
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// Assign creates or rotates the daily tasks of one user.
func (c *Client) Assign(ctx context.Context, userID string) (*domain.AssignResult, error) {
	var result domain.AssignResult
	if err := c.do(ctx, http.MethodPost, "/v1/users/"+url.PathEscape(userID)+"/assign", nil, &result); err != nil {
		return nil, fmt.Errorf("assign %s: %w", userID, err)
	}
	return &result, nil
}

// AssignAll runs assignment for every user.
func (c *Client) AssignAll(ctx context.Context) (*domain.AssignAllResult, error) {
	var result domain.AssignAllResult
	if err := c.do(ctx, http.MethodPost, "/v1/admin/assign-all", nil, &result); err != nil {
		return nil, fmt.Errorf("assign all: %w", err)
	}
	return &result, nil
}

// Claim claims the task for an article on behalf of an account.
func (c *Client) Claim(ctx context.Context, req domain.ClaimRequest) (*domain.ClaimResult, error) {
	path := fmt.Sprintf("/v1/users/%s/accounts/%s/tasks/%s/claim",
		url.PathEscape(req.UserID), url.PathEscape(req.AccountID), url.PathEscape(req.ArticleID))

	var result domain.ClaimResult
	if err := c.do(ctx, http.MethodPost, path, nil, &result); err != nil {
		return nil, fmt.Errorf("claim %s: %w", req.ArticleID, err)
	}
	return &result, nil
}

type completionRequest struct {
	ArticleID     string `json:"articleId"`
	Title         string `json:"title,omitempty"`
	TrackCategory int    `json:"trackCategory,omitempty"`
	CallbackURL   string `json:"callbackUrl,omitempty"`
	Views         int64  `json:"views"`
	Likes         int64  `json:"likes"`
	Earnings      string `json:"earnings"`
}

// ReportCompletion records a published post for an account.
func (c *Client) ReportCompletion(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResult, error) {
	path := fmt.Sprintf("/v1/users/%s/accounts/%s/completions",
		url.PathEscape(req.UserID), url.PathEscape(req.AccountID))
	body := completionRequest{
		ArticleID:     req.ArticleID,
		Title:         req.Title,
		TrackCategory: req.TrackCategory,
		CallbackURL:   req.CallbackURL,
		Views:         req.Metrics.Views,
		Likes:         req.Metrics.Likes,
		Earnings:      req.Metrics.Earnings.String(),
	}

	var result domain.CompletionResult
	if err := c.do(ctx, http.MethodPost, path, body, &result); err != nil {
		return nil, fmt.Errorf("report completion of %s: %w", req.ArticleID, err)
	}
	return &result, nil
}

// ListExpired returns the claimed tasks left unfinished past their day.
func (c *Client) ListExpired(ctx context.Context, filter domain.ExpiredFilter) (*domain.ExpiredReport, error) {
	q := url.Values{}
	if filter.UserID != "" {
		q.Set("userId", filter.UserID)
	}
	if filter.AccountID != "" {
		q.Set("accountId", filter.AccountID)
	}
	if filter.TrackCategory > 0 {
		q.Set("trackCategory", strconv.Itoa(filter.TrackCategory))
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	path := "/v1/admin/expired-tasks"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var report domain.ExpiredReport
	if err := c.do(ctx, http.MethodGet, path, nil, &report); err != nil {
		return nil, fmt.Errorf("list expired tasks: %w", err)
	}
	return &report, nil
}

// Sweep rejects the given expired tasks.
func (c *Client) Sweep(ctx context.Context, items []domain.SweepItem) (*domain.SweepResult, error) {
	body := map[string]any{"items": items}

	var result domain.SweepResult
	if err := c.do(ctx, http.MethodPost, "/v1/admin/sweep", body, &result); err != nil {
		return nil, fmt.Errorf("sweep: %w", err)
	}
	return &result, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, result any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(respBody, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}
