package httpapi

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

	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/types"
)

// APIError is a non-2xx response from the daemon.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("%s (%d)", e.Code, e.Status)
}

// Client talks to a running daemon's control API.
type Client struct {
	base string
	http *http.Client
}

// NewClient accepts "host:port" or a full base URL.
func NewClient(addr string) *Client {
	base := strings.TrimRight(addr, "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{base: base, http: &http.Client{Timeout: 10 * time.Second}}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var er types.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&er); err != nil || er.Error == "" {
			return &APIError{Status: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}
		}
		return &APIError{Status: resp.StatusCode, Code: er.Error, Message: er.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) Status(ctx context.Context) (types.StatusResponse, error) {
	var out types.StatusResponse
	err := c.do(ctx, http.MethodGet, "/v1/status", nil, nil, &out)
	return out, err
}

func (c *Client) SetEnabled(ctx context.Context, enabled bool) (types.Settings, error) {
	var out types.Settings
	err := c.do(ctx, http.MethodPost, "/v1/enabled", nil, types.EnabledRequest{Enabled: &enabled}, &out)
	return out, err
}

func (c *Client) Settings(ctx context.Context) (types.Settings, error) {
	var out types.Settings
	err := c.do(ctx, http.MethodGet, "/v1/settings", nil, nil, &out)
	return out, err
}

func (c *Client) UpdateSettings(ctx context.Context, st types.Settings) (types.Settings, error) {
	var out types.Settings
	err := c.do(ctx, http.MethodPut, "/v1/settings", nil, st, &out)
	return out, err
}

// LogQuery selects access logs. App and Suspicious combine.
type LogQuery struct {
	Limit      int
	Suspicious bool
	App        string
}

func (c *Client) Logs(ctx context.Context, q LogQuery) ([]types.LogEntry, error) {
	v := url.Values{}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Suspicious {
		v.Set("suspicious", "true")
	}
	if q.App != "" {
		v.Set("app", q.App)
	}
	var out []types.LogEntry
	err := c.do(ctx, http.MethodGet, "/v1/logs", v, nil, &out)
	return out, err
}

func (c *Client) Alerts(ctx context.Context, limit int, unacknowledged bool) ([]types.Alert, error) {
	v := url.Values{}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	if unacknowledged {
		v.Set("unacknowledged", "true")
	}
	var out []types.Alert
	err := c.do(ctx, http.MethodGet, "/v1/alerts", v, nil, &out)
	return out, err
}

func (c *Client) Acknowledge(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/v1/alerts/"+url.PathEscape(id)+"/ack", nil, nil, nil)
}

func (c *Client) AcknowledgeAll(ctx context.Context) (int64, error) {
	var out types.AckResponse
	err := c.do(ctx, http.MethodPost, "/v1/alerts/ack-all", nil, nil, &out)
	return out.Acknowledged, err
}

func (c *Client) Stats(ctx context.Context) ([]types.AppStats, error) {
	var out []types.AppStats
	err := c.do(ctx, http.MethodGet, "/v1/stats", nil, nil, &out)
	return out, err
}

func (c *Client) AppStats(ctx context.Context, appID string) (types.AppStats, error) {
	var out types.AppStats
	err := c.do(ctx, http.MethodGet, "/v1/stats/"+url.PathEscape(appID), nil, nil, &out)
	return out, err
}

func (c *Client) TopBackground(ctx context.Context, limit int) ([]types.AppStats, error) {
	v := url.Values{}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	var out []types.AppStats
	err := c.do(ctx, http.MethodGet, "/v1/stats/top-background", v, nil, &out)
	return out, err
}

func (c *Client) Summaries(ctx context.Context, days int) ([]types.DailySummary, error) {
	v := url.Values{}
	if days > 0 {
		v.Set("days", strconv.Itoa(days))
	}
	var out []types.DailySummary
	err := c.do(ctx, http.MethodGet, "/v1/summaries", v, nil, &out)
	return out, err
}

func (c *Client) Clear(ctx context.Context, target string) error {
	return c.do(ctx, http.MethodDelete, "/v1/data/"+url.PathEscape(target), nil, nil, nil)
}
