// Package webdriver is a minimal W3C WebDriver client: enough to open a
// session, point it at an app, read its UI tree and grab screenshots.
package webdriver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Error is a WebDriver error payload ({"value": {"error", "message"}}).
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("webdriver: status %d", e.Status)
	}
	return fmt.Sprintf("webdriver: %s: %s", e.Code, e.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	username   string
	accessKey  string
	sessionID  string
}

type Options struct {
	HubURL     string
	Username   string
	AccessKey  string
	HTTPClient *http.Client
}

func NewClient(opt Options) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(opt.HubURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("webdriver: invalid hub url %q", opt.HubURL)
	}
	c := &Client{
		baseURL:    u.String(),
		httpClient: opt.HTTPClient,
		username:   opt.Username,
		accessKey:  opt.AccessKey,
	}
	if u.User != nil {
		// credentials embedded in the URL win over Options
		c.username = u.User.Username()
		c.accessKey, _ = u.User.Password()
		u.User = nil
		c.baseURL = u.String()
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return c, nil
}

func (c *Client) SessionID() string { return c.sessionID }

// NewSession creates a session with the given alwaysMatch capabilities.
func (c *Client) NewSession(ctx context.Context, caps map[string]any) error {
	body := map[string]any{
		"capabilities": map[string]any{"alwaysMatch": caps},
	}
	env, err := c.call(ctx, http.MethodPost, "/session", body)
	if err != nil {
		return err
	}
	var out struct {
		SessionID string `json:"sessionId"`
	}
	_ = json.Unmarshal(env.Value, &out)
	if out.SessionID == "" {
		// legacy JSONWire hubs put it at the top level
		out.SessionID = env.SessionID
	}
	if out.SessionID == "" {
		return errors.New("webdriver: hub returned no session id")
	}
	c.sessionID = out.SessionID
	return nil
}

func (c *Client) Navigate(ctx context.Context, target string) error {
	return c.do(ctx, http.MethodPost, c.sessionPath("/url"), map[string]any{"url": target}, nil)
}

func (c *Client) Title(ctx context.Context) (string, error) {
	var s string
	err := c.do(ctx, http.MethodGet, c.sessionPath("/title"), nil, &s)
	return s, err
}

// Source returns the page source (HTML for browsers, XML UI tree for apps).
func (c *Client) Source(ctx context.Context) (string, error) {
	var s string
	err := c.do(ctx, http.MethodGet, c.sessionPath("/source"), nil, &s)
	return s, err
}

// Screenshot returns PNG bytes.
func (c *Client) Screenshot(ctx context.Context) ([]byte, error) {
	var s string
	if err := c.do(ctx, http.MethodGet, c.sessionPath("/screenshot"), nil, &s); err != nil {
		return nil, err
	}
	png, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("webdriver: decode screenshot: %w", err)
	}
	return png, nil
}

// DeleteSession ends the session. It is a no-op without one.
func (c *Client) DeleteSession(ctx context.Context) error {
	if c.sessionID == "" {
		return nil
	}
	err := c.do(ctx, http.MethodDelete, c.sessionPath(""), nil, nil)
	c.sessionID = ""
	return err
}

func (c *Client) sessionPath(suffix string) string {
	return "/session/" + url.PathEscape(c.sessionID) + suffix
}

type envelope struct {
	Value     json.RawMessage `json:"value"`
	SessionID string          `json:"sessionId"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	env, err := c.call(ctx, method, path, in)
	if err != nil {
		return err
	}
	if out == nil || len(env.Value) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Value, out); err != nil {
		return fmt.Errorf("webdriver: decode value: %w", err)
	}
	return nil
}

func (c *Client) call(ctx context.Context, method, path string, in any) (envelope, error) {
	var env envelope
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return env, fmt.Errorf("webdriver: marshal: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return env, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.accessKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return env, fmt.Errorf("webdriver: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return env, fmt.Errorf("webdriver: read: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode < 300 {
			return env, fmt.Errorf("webdriver: decode: %w", err)
		}
	}
	if resp.StatusCode >= 300 {
		werr := &Error{Status: resp.StatusCode}
		if len(env.Value) > 0 {
			_ = json.Unmarshal(env.Value, werr)
		}
		return env, werr
	}
	return env, nil
}
