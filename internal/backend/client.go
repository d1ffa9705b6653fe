// Package backend talks to the energy management backend over its HTTP
// JSON API.
package backend

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

	"energydash/internal/snapshot"

	"go.uber.org/zap"
)

// DefaultTimeout bounds a single request to the backend
const DefaultTimeout = 5 * time.Second

const userAgent = "energydash/1.0"

// maxBodySize limits how much of a response is read
const maxBodySize = 4 << 20

// Backend defines the calls the dashboard makes to the energy backend
type Backend interface {
	// State polls the current state. A non-nil manual request is sent
	// along with the poll.
	State(ctx context.Context, manual *ManualRequest) (snapshot.Doc, error)
	// Set sends a one-shot command and returns the state after it
	Set(ctx context.Context, req SetRequest) (snapshot.Doc, error)
	// Login obtains a session cookie
	Login(ctx context.Context, password string) error
}

type userAgentTransport struct {
	transport http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", userAgent)
	return t.transport.RoundTrip(req)
}

// Client implements Backend
type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a client for the backend at baseURL. The client keeps
// the session cookie in its own jar.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend url %q: scheme must be http or https", baseURL)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &Client{
		baseURL: u,
		http: &http.Client{
			Transport: &userAgentTransport{transport: http.DefaultTransport},
			Jar:       jar,
			Timeout:   timeout,
		},
		logger: logger,
	}, nil
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.String() + path
}

// State polls api/state
func (c *Client) State(ctx context.Context, manual *ManualRequest) (snapshot.Doc, error) {
	if manual == nil {
		return c.doJSON(ctx, http.MethodGet, "/api/state", nil)
	}
	if manual.ManualCmd != "" && !ValidCommand(manual.ManualCmd) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCommand, manual.ManualCmd)
	}
	return c.doJSON(ctx, http.MethodPost, "/api/state", manual)
}

// Set posts a command to api/set
func (c *Client) Set(ctx context.Context, req SetRequest) (snapshot.Doc, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	c.logger.Info("Sending command", zap.String("command", req.String()))
	return c.doJSON(ctx, http.MethodPost, "/api/set", req)
}

// Login posts the password form. The backend answers a successful login
// with a redirect and a session cookie.
func (c *Client) Login(ctx context.Context, password string) error {
	form := url.Values{"password": {password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/login"), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	// same transport and jar, but stop at the redirect
	hc := *c.http
	hc.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))

	if resp.StatusCode >= 400 {
		return fmt.Errorf("login request failed: status %d", resp.StatusCode)
	}
	if !c.hasSession() {
		return ErrLoginFailed
	}

	c.logger.Info("Logged in to backend", zap.String("url", c.baseURL.String()))
	return nil
}

func (c *Client) hasSession() bool {
	for _, cookie := range c.http.Jar.Cookies(c.baseURL) {
		if cookie.Name == SessionCookie && cookie.Value != "" {
			return true
		}
	}
	return false
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any) (snapshot.Doc, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s %s failed: status %d", method, path, resp.StatusCode)
	}

	doc, err := snapshot.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return doc, nil
}
