// Package motion is a client for the Motion REST API. Workspaces act as
// categories, projects as projects and tasks as tasks.
package motion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hochfrequenz/tasklink/internal/domain"
)

// Config configures a Client
type Config struct {
	BaseURL string
	APIKey  string

	// Location decides which calendar day "today" is, default UTC
	Location *time.Location

	// TaskDuration is the duration in minutes given to new tasks
	TaskDuration int

	HTTPClient *http.Client
}

// Client talks to the Motion API with an API key
type Client struct {
	baseURL  string
	apiKey   string
	http     *http.Client
	loc      *time.Location
	duration int
	now      func() time.Time
}

// NewClient creates a new Motion client
func NewClient(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	duration := cfg.TaskDuration
	if duration <= 0 {
		duration = 15
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		http:     hc,
		loc:      loc,
		duration: duration,
		now:      time.Now,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encoding body: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.TransportError(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.TransportError(op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.StatusError("motion "+op, resp.StatusCode, data)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decoding response: %v: %w", op, err, domain.ErrValidation)
	}
	return nil
}

// paginate follows meta.nextCursor until the listing is exhausted
func (c *Client) paginate(ctx context.Context, path string, q url.Values, page func(data []byte) (string, error)) error {
	for {
		var raw json.RawMessage
		if err := c.do(ctx, "GET", path+"?"+q.Encode(), nil, &raw); err != nil {
			return err
		}
		next, err := page(raw)
		if err != nil {
			return err
		}
		if next == "" {
			return nil
		}
		q.Set("cursor", next)
	}
}

func (c *Client) today() domain.Date {
	return domain.DateOf(c.now(), c.loc)
}

func parseTimestamp(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}
