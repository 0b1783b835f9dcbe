// Package restclient is the HTTP client for the chat backend's REST endpoints.
//
// Requests carry the session cookie set by /auth/login (or configured as a
// token) so the live channel can reuse the same cookie jar.
package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/Rrens/apex-chat/internal/config"
	"github.com/Rrens/apex-chat/internal/domain"
	"golang.org/x/net/publicsuffix"
)

const defaultMaxResponseBytes = 10 * 1024 * 1024

// Client talks to the auth, session and history services
type Client struct {
	baseURL    *url.URL
	client     *http.Client
	jar        http.CookieJar
	cookieName string
	maxBytes   int64
}

// New creates a client for the configured backend
func New(cfg config.ClientConfig) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxBytes := cfg.MaxResponseBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxResponseBytes
	}

	c := &Client{
		baseURL:    base,
		client:     &http.Client{Timeout: timeout, Jar: jar},
		jar:        jar,
		cookieName: cfg.CookieName,
		maxBytes:   maxBytes,
	}

	if cfg.AuthToken != "" {
		c.SetToken(cfg.AuthToken)
	}

	return c, nil
}

// Jar returns the cookie jar shared with the live channel
func (c *Client) Jar() http.CookieJar {
	return c.jar
}

// BaseURL returns the backend base URL
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// SetToken stores a session token as the backend's auth cookie
func (c *Client) SetToken(token string) {
	c.jar.SetCookies(c.baseURL, []*http.Cookie{{
		Name:  c.cookieName,
		Value: token,
		Path:  "/",
	}})
}

// Token returns the current auth cookie value, if any
func (c *Client) Token() string {
	for _, ck := range c.jar.Cookies(c.baseURL) {
		if ck.Name == c.cookieName {
			return ck.Value
		}
	}
	return ""
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// do sends a JSON request and decodes a JSON response into out (if non-nil)
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	u := c.baseURL.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &domain.APIError{Status: resp.StatusCode}
		var eb errorBody
		if json.Unmarshal(data, &eb) == nil {
			apiErr.Message = eb.Message
			if apiErr.Message == "" {
				apiErr.Message = eb.Error
			}
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
