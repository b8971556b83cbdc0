// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud talks to OpenAI-compatible chat-completion servers.
//
// Requests are always streamed. The response body is decoded by the
// Reassembler in stream.go, which merges content and tool-call deltas into a
// single Completion.
package cloud

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jeranaias/aicli/internal/model"
)

// Configuration constants.
const (
	// DefaultConnectTimeout bounds dialing and waiting for response headers.
	DefaultConnectTimeout = 30 * time.Second

	// MaxErrorBodySize caps how much of an error response is read.
	MaxErrorBodySize = 64 * 1024

	// ChatCompletionsPath is the path every endpoint is normalized to end with.
	ChatCompletionsPath = "/v1/chat/completions"
)

// Error variables for common server responses.
var (
	// ErrAuthFailed indicates the server rejected the API key.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates too many requests were made.
	ErrRateLimited = errors.New("rate limited")

	// ErrModelNotFound indicates the endpoint or model does not exist.
	ErrModelNotFound = errors.New("model or endpoint not found")

	// ErrBadRequest indicates the server refused the request body.
	ErrBadRequest = errors.New("bad request")

	// ErrServerError indicates a 5xx response.
	ErrServerError = errors.New("server error")
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
	Err     error // one of the sentinel errors above, or nil
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("HTTP %d [%s]: %s", e.Status, e.Code, msg)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, msg)
}

// Unwrap returns the matching sentinel error.
func (e *APIError) Unwrap() error {
	return e.Err
}

// apiErrorResponse is the OpenAI error envelope.
type apiErrorResponse struct {
	Error struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
	} `json:"error"`
}

// ChatRequest is the body of a streaming chat-completions request. Tools and
// ToolChoice are only sent when tools are advertised.
type ChatRequest struct {
	Model      string           `json:"model"`
	Messages   []model.Message  `json:"messages"`
	Stream     bool             `json:"stream"`
	Tools      []model.ToolSpec `json:"tools,omitempty"`
	ToolChoice string           `json:"tool_choice,omitempty"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client sends chat requests to one endpoint.
type Client struct {
	endpoint   string
	model      string
	apiKey     string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default streaming HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithConnectTimeout sets the dial and response-header timeout of the
// default HTTP client. It has no effect together with WithHTTPClient.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient = newStreamingHTTPClient(d)
	}
}

// NewClient creates a client for baseURL, which is normalized with
// NormalizeEndpoint.
func NewClient(baseURL, modelName, apiKey string, opts ...Option) *Client {
	c := &Client{
		endpoint:   NormalizeEndpoint(baseURL),
		model:      modelName,
		apiKey:     strings.TrimSpace(apiKey),
		userAgent:  "aicli",
		httpClient: newStreamingHTTPClient(DefaultConnectTimeout),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// newStreamingHTTPClient returns a client without an overall timeout. The
// body of a streamed answer is bounded by the request context instead.
func newStreamingHTTPClient(connectTimeout time.Duration) *http.Client {
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   connectTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: connectTimeout,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
}

// NormalizeEndpoint turns a base URL into the chat-completions URL. A URL
// that already ends in /v1/chat/completions is kept, a trailing /v1 gets
// /chat/completions, anything else gets /v1/chat/completions.
func NormalizeEndpoint(baseURL string) string {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	switch {
	case strings.HasSuffix(u, ChatCompletionsPath):
		return u
	case strings.HasSuffix(u, "/v1"):
		return u + "/chat/completions"
	default:
		return u + ChatCompletionsPath
	}
}

// Endpoint returns the normalized request URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Model returns the model name sent with each request.
func (c *Client) Model() string {
	return c.model
}

// HasAPIKey reports whether requests carry a bearer token.
func (c *Client) HasAPIKey() bool {
	return c.apiKey != ""
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// =============================================================================
// STREAMING CHAT
// =============================================================================

// ChatStream sends messages and drains the streamed answer. Content
// fragments are passed to onContent as they arrive. When tools is non-empty
// they are advertised with tool_choice "auto".
//
// Connection failures and non-2xx responses are returned before any content
// is emitted. A failure while reading the body returns a *StreamError.
func (c *Client) ChatStream(ctx context.Context, messages []model.Message, tools []model.ToolSpec, onContent func(string)) (*Completion, error) {
	reqBody := ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   true,
	}
	if len(tools) > 0 {
		reqBody.Tools = tools
		reqBody.ToolChoice = "auto"
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	c.logger.Debug("chat request",
		"endpoint", c.endpoint,
		"model", c.model,
		"messages", len(messages),
		"tools", len(tools))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxErrorBodySize))
		apiErr := handleErrorResponse(resp.StatusCode, body)
		c.logger.Warn("chat request rejected", "status", resp.StatusCode, "error", apiErr)
		return nil, apiErr
	}

	r := NewReassembler(onContent, c.logger)
	r.startedAt = start
	return r.Consume(ctx, resp.Body)
}

// handleErrorResponse converts an HTTP error response into an *APIError.
func handleErrorResponse(status int, body []byte) error {
	apiErr := &APIError{Status: status}

	var envelope apiErrorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Message = envelope.Error.Message
		apiErr.Code = strings.Trim(string(envelope.Error.Code), `"`)
		if apiErr.Code == "null" {
			apiErr.Code = ""
		}
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		apiErr.Err = ErrAuthFailed
	case status == http.StatusNotFound:
		apiErr.Err = ErrModelNotFound
	case status == http.StatusTooManyRequests:
		apiErr.Err = ErrRateLimited
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		apiErr.Err = ErrBadRequest
	case status >= 500:
		apiErr.Err = ErrServerError
	}
	return apiErr
}
