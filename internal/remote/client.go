// Package remote talks to the reading-progress API.
//
//	POST /api/progress            {bookId, progress:{cfi, percentage, chapterTitle}}
//	GET  /api/progress/:bookId    {success, progress:{cfi, percentage, chapterTitle, timestamp}}
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Progress is the reading position exchanged with the server.
type Progress struct {
	CFI          string  `json:"cfi"`
	Percentage   float64 `json:"percentage"`
	ChapterTitle string  `json:"chapterTitle"`
	Timestamp    int64   `json:"timestamp,omitempty"`
}

type saveRequest struct {
	BookID   string   `json:"bookId"`
	Progress Progress `json:"progress"`
}

type saveResponse struct {
	Success   bool   `json:"success"`
	Timestamp int64  `json:"timestamp"`
	Error     string `json:"error,omitempty"`
}

type getResponse struct {
	Success  bool      `json:"success"`
	Progress *Progress `json:"progress"`
}

// Client is a progress API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// SaveProgress stores p for bookID and returns the server's timestamp.
func (c *Client) SaveProgress(ctx context.Context, bookID string, p Progress) (int64, error) {
	p.Timestamp = 0
	body, err := json.Marshal(saveRequest{BookID: bookID, Progress: p})
	if err != nil {
		return 0, fmt.Errorf("failed to encode progress: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/progress", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to save progress: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, statusError(resp)
	}

	var out saveResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("failed to decode save response: %w", err)
	}
	if !out.Success {
		return 0, fmt.Errorf("server rejected progress for %s: %s", bookID, out.Error)
	}

	c.logger.Debug("progress synced", "bookId", bookID, "timestamp", out.Timestamp)
	return out.Timestamp, nil
}

// GetProgress fetches the stored progress for bookID. It returns nil, nil when the
// server has none.
func (c *Client) GetProgress(ctx context.Context, bookID string) (*Progress, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/progress/"+url.PathEscape(bookID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch progress: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp)
	}

	var out getResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode progress: %w", err)
	}
	if !out.Success || out.Progress == nil || out.Progress.CFI == "" {
		return nil, nil
	}
	return out.Progress, nil
}

func statusError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("progress api returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
}
