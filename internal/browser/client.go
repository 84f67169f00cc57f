// Package browser provides the engines that render booking pages: a local
// Chrome driven over DevTools and a client for the headless browser sidecar
// service.
package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/wolfman30/spa-availability/internal/engine"
	"github.com/wolfman30/spa-availability/pkg/logging"
)

// HealthResponse is the health check response from the sidecar.
type HealthResponse struct {
	Status       string `json:"status"` // ok, degraded, error
	Version      string `json:"version"`
	BrowserReady bool   `json:"browserReady"`
	Uptime       int    `json:"uptime"` // seconds
}

// SessionRequest opens a browser context on the sidecar.
type SessionRequest struct {
	Headless  bool     `json:"headless"`
	UserAgent string   `json:"userAgent,omitempty"`
	Viewport  Viewport `json:"viewport"`
	Timeout   int      `json:"timeout,omitempty"` // milliseconds, default 120000
}

// Viewport is the window size in CSS pixels.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type sessionResponse struct {
	envelope
	SessionID string `json:"sessionId"`
}

// ElementRef is a sidecar-issued element handle.
type ElementRef struct {
	ID  string `json:"id"`
	Tag string `json:"tag"`
}

type queryResponse struct {
	envelope
	Elements []ElementRef `json:"elements"`
}

type textResponse struct {
	envelope
	Text string `json:"text"`
}

type attributeResponse struct {
	envelope
	Value   string `json:"value"`
	Present bool   `json:"present"`
}

type evaluateResponse struct {
	envelope
	Result json.RawMessage `json:"result"`
}

type idleResponse struct {
	envelope
	Idle bool `json:"idle"`
}

type htmlResponse struct {
	envelope
	HTML string `json:"html"`
}

// Client is an HTTP client for the browser sidecar service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logging.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new browser sidecar client.
// baseURL should be the sidecar service URL (e.g., "http://localhost:3000").
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logging.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Health checks the health of the browser sidecar.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("browser: create health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("browser: health request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("browser: health check failed with status %d: %s", resp.StatusCode, string(body))
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("browser: decode health response: %w", err)
	}

	return &health, nil
}

// IsReady checks if the browser sidecar is ready to accept requests.
func (c *Client) IsReady(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ready", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// OpenSession starts a browser context on the sidecar. The returned Session
// is an engine.Engine and must be closed.
func (c *Client) OpenSession(ctx context.Context, req SessionRequest) (*Session, error) {
	if req.Timeout == 0 {
		req.Timeout = 120000
	}
	if req.Viewport.Width == 0 {
		req.Viewport = Viewport{Width: 1280, Height: 1024}
	}
	if req.UserAgent == "" {
		req.UserAgent = DefaultUserAgent
	}

	var resp sessionResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/sessions", req, &resp); err != nil {
		return nil, engine.Unusable(err)
	}
	if !resp.Success || resp.SessionID == "" {
		return nil, engine.Unusable(fmt.Errorf("browser: open session: %s", resp.Error))
	}

	c.logger.Info("sidecar session opened", "session_id", resp.SessionID)
	return &Session{client: c, id: resp.SessionID}, nil
}

// doJSON sends body as JSON and decodes the response into out. Connection
// failures and a vanished session are reported as engine.ErrUnusable. A
// request timeout or a stale element handle is an ordinary error: the page
// was slow or re-rendered, the browser is still there.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("browser: marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("browser: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("browser: request cancelled: %w", err)
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("browser: %s %s timed out: %w", method, path, err)
		}
		return engine.Unusable(fmt.Errorf("browser: request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		if isElementPath(path) {
			return fmt.Errorf("browser: %s %s: element is stale (status %d)", method, path, resp.StatusCode)
		}
		return engine.Unusable(fmt.Errorf("browser: %s %s: session gone (status %d)", method, path, resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(resp.Body)
		c.logger.Warn("sidecar request failed", "path", path, "status", resp.StatusCode)
		return fmt.Errorf("browser: %s %s failed with status %d: %s", method, path, resp.StatusCode, string(raw))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("browser: decode response: %w", err)
	}
	return nil
}

func isElementPath(path string) bool {
	return strings.Contains(path, "/elements/")
}

// Session is one sidecar browser context.
type Session struct {
	client *Client
	id     string
}

var _ engine.Engine = (*Session)(nil)

// ID returns the sidecar session id.
func (s *Session) ID() string {
	return s.id
}

func (s *Session) path(suffix string) string {
	return "/api/v1/sessions/" + url.PathEscape(s.id) + suffix
}

func (s *Session) call(ctx context.Context, method, suffix string, body any, out interface{ failure() error }) error {
	if err := s.client.doJSON(ctx, method, s.path(suffix), body, out); err != nil {
		return err
	}
	return out.failure()
}

func (e envelope) failure() error {
	if e.Success {
		return nil
	}
	if e.Error == "" {
		return fmt.Errorf("browser: sidecar reported failure")
	}
	return fmt.Errorf("browser: %s", e.Error)
}

func (s *Session) Navigate(ctx context.Context, target string) error {
	var resp envelope
	return s.call(ctx, http.MethodPost, "/navigate", map[string]any{"url": target}, &resp)
}

func (s *Session) QueryAll(ctx context.Context, xpath string) ([]engine.Element, error) {
	var resp queryResponse
	if err := s.call(ctx, http.MethodPost, "/query", map[string]string{"xpath": xpath}, &resp); err != nil {
		return nil, err
	}
	out := make([]engine.Element, 0, len(resp.Elements))
	for _, ref := range resp.Elements {
		out = append(out, &sidecarElement{session: s, ref: ref})
	}
	return out, nil
}

func (s *Session) QueryOne(ctx context.Context, xpath string) (engine.Element, error) {
	els, err := s.QueryAll(ctx, xpath)
	if err != nil || len(els) == 0 {
		return nil, err
	}
	return els[0], nil
}

func (s *Session) Evaluate(ctx context.Context, expression string, out any) error {
	var resp evaluateResponse
	if err := s.call(ctx, http.MethodPost, "/evaluate", map[string]string{"expression": expression}, &resp); err != nil {
		return err
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("browser: decode evaluate result: %w", err)
	}
	return nil
}

func (s *Session) WaitForNetworkIdle(ctx context.Context, timeout time.Duration) bool {
	var resp idleResponse
	if err := s.call(ctx, http.MethodPost, "/idle", map[string]int64{"timeout": timeout.Milliseconds()}, &resp); err != nil {
		return false
	}
	return resp.Idle
}

func (s *Session) HTML(ctx context.Context) (string, error) {
	var resp htmlResponse
	if err := s.call(ctx, http.MethodGet, "/html", nil, &resp); err != nil {
		return "", err
	}
	return resp.HTML, nil
}

func (s *Session) Screenshot(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.client.baseURL+s.path("/screenshot"), nil)
	if err != nil {
		return fmt.Errorf("browser: create screenshot request: %w", err)
	}
	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("browser: screenshot request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("browser: screenshot failed with status %d", resp.StatusCode)
	}
	png, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("browser: read screenshot: %w", err)
	}
	return os.WriteFile(path, png, 0o644)
}

func (s *Session) DumpHTML(ctx context.Context, path string) error {
	markup, err := s.HTML(ctx)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(markup), 0o644)
}

// Close releases the sidecar session. It uses its own deadline so cleanup
// still happens after the scan context is cancelled.
func (s *Session) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.client.doJSON(ctx, http.MethodDelete, s.path(""), nil, nil); err != nil {
		return fmt.Errorf("browser: close session %s: %w", s.id, err)
	}
	s.client.logger.Info("sidecar session closed", "session_id", s.id)
	return nil
}

type sidecarElement struct {
	session *Session
	ref     ElementRef
}

func (e *sidecarElement) elementPath(suffix string) string {
	return "/elements/" + url.PathEscape(e.ref.ID) + suffix
}

func (e *sidecarElement) Click(ctx context.Context) error {
	var resp envelope
	return e.session.call(ctx, http.MethodPost, e.elementPath("/click"), struct{}{}, &resp)
}

func (e *sidecarElement) Text(ctx context.Context) (string, error) {
	var resp textResponse
	if err := e.session.call(ctx, http.MethodGet, e.elementPath("/text"), nil, &resp); err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (e *sidecarElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	var resp attributeResponse
	if err := e.session.call(ctx, http.MethodGet, e.elementPath("/attributes/"+url.PathEscape(name)), nil, &resp); err != nil {
		return "", false, err
	}
	return resp.Value, resp.Present, nil
}

func (e *sidecarElement) TagName() string {
	return e.ref.Tag
}
