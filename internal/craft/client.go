// Package craft is a client for the Craft REST API. It exposes documents
// as projects, document and inbox tasks as tasks, and collections as a
// mapping backend and notification sink.
package craft

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
	"golang.org/x/oauth2"
)

// InboxContainer addresses the space inbox instead of a document
const InboxContainer = "inbox"

// Config configures a Client
type Config struct {
	BaseURL string
	SpaceID string
	Token   string

	// Location is used for "today" defaults and timestamps, default UTC
	Location *time.Location

	// HTTPClient overrides the oauth2 client built from Token
	HTTPClient *http.Client
}

// Client talks to one Craft space
type Client struct {
	baseURL string
	spaceID string
	http    *http.Client
	loc     *time.Location
	now     func() time.Time
}

// NewClient creates a new Craft client authenticated with a bearer token
func NewClient(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"})
		hc = oauth2.NewClient(context.Background(), src)
		hc.Timeout = 30 * time.Second
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		spaceID: cfg.SpaceID,
		http:    hc,
		loc:     loc,
		now:     time.Now,
	}
}

func (c *Client) spacePath(format string, args ...interface{}) string {
	return "/spaces/" + url.PathEscape(c.spaceID) + fmt.Sprintf(format, args...)
}

// do sends a JSON request and decodes a JSON response into out
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
		return domain.StatusError("craft "+op, resp.StatusCode, data)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decoding response: %v: %w", op, err, domain.ErrValidation)
	}
	return nil
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
