// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/aicli/internal/model"
)

// sseHandler writes each line followed by a newline and flushes after each.
func sseHandler(lines ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n", line)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func contentChunk(s string) string {
	b, _ := json.Marshal(s)
	return fmt.Sprintf(`data: {"choices":[{"index":0,"delta":{"content":%s}}]}`, b)
}

// =============================================================================
// ENDPOINT NORMALIZATION TESTS
// =============================================================================

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://localhost:7867", "http://localhost:7867/v1/chat/completions"},
		{"http://localhost:7867/", "http://localhost:7867/v1/chat/completions"},
		{"https://api.openai.com/v1", "https://api.openai.com/v1/chat/completions"},
		{"https://api.openai.com/v1/", "https://api.openai.com/v1/chat/completions"},
		{"https://host/v1/chat/completions", "https://host/v1/chat/completions"},
		{"https://host/proxy", "https://host/proxy/v1/chat/completions"},
		{"  http://host:1  ", "http://host:1/v1/chat/completions"},
	}
	for _, tc := range tests {
		if got := NormalizeEndpoint(tc.in); got != tc.want {
			t.Errorf("NormalizeEndpoint(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

// =============================================================================
// REQUEST TESTS
// =============================================================================

func TestChatStream_RequestShape(t *testing.T) {
	var (
		mu      sync.Mutex
		headers http.Header
		path    string
		body    map[string]interface{}
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		headers = r.Header.Clone()
		path = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		mu.Unlock()
		sseHandler(contentChunk("ok"), "data: [DONE]")(w, r)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-model", "sk-test", WithUserAgent("aicli/test"))
	specs := []model.ToolSpec{{
		Type: "function",
		Function: model.ToolSpecFunction{
			Name:       "read_file",
			Parameters: json.RawMessage(`{"type":"object","properties":{}}`),
		},
	}}

	completion, err := client.ChatStream(context.Background(), []model.Message{model.NewUserMessage("hi")}, specs, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", completion.Content)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/v1/chat/completions", path)
	assert.Equal(t, "application/json", headers.Get("Content-Type"))
	assert.Equal(t, "text/event-stream", headers.Get("Accept"))
	assert.Equal(t, "Bearer sk-test", headers.Get("Authorization"))
	assert.Equal(t, "aicli/test", headers.Get("User-Agent"))

	assert.Equal(t, "test-model", body["model"])
	assert.Equal(t, true, body["stream"])
	assert.Equal(t, "auto", body["tool_choice"])
	require.Len(t, body["tools"], 1)
	msgs := body["messages"].([]interface{})
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].(map[string]interface{})["role"])
}

func TestChatStream_NoKeyNoTools(t *testing.T) {
	var (
		mu      sync.Mutex
		headers http.Header
		body    map[string]interface{}
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		headers = r.Header.Clone()
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		mu.Unlock()
		sseHandler("data: [DONE]")(w, r)
	}))
	defer server.Close()

	client := NewClient(server.URL+"/v1", "m", "")
	assert.False(t, client.HasAPIKey())

	completion, err := client.ChatStream(context.Background(), []model.Message{model.NewUserMessage("hi")}, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, completion.Content)
	assert.Empty(t, completion.ToolCalls)

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, headers.Get("Authorization"))
	_, hasTools := body["tools"]
	_, hasChoice := body["tool_choice"]
	assert.False(t, hasTools)
	assert.False(t, hasChoice)
}

// =============================================================================
// STREAMING TESTS
// =============================================================================

func TestChatStream_EmitsContentLive(t *testing.T) {
	server := httptest.NewServer(sseHandler(
		contentChunk("Hel"),
		"",
		contentChunk("lo"),
		"",
		"data: [DONE]",
	))
	defer server.Close()

	var emitted []string
	client := NewClient(server.URL, "m", "")
	completion, err := client.ChatStream(context.Background(), nil, nil, func(s string) {
		emitted = append(emitted, s)
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello", completion.Content)
	assert.Equal(t, []string{"Hel", "lo"}, emitted)
	assert.Equal(t, 5, completion.Stats.Chars)
}

func TestChatStream_DoneStopsWithConnectionOpen(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sseHandler(contentChunk("done"), "data: [DONE]")(w, r)
		// Keep the connection open with more bytes pending.
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"late\"}}]}")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(server.URL, "m", "")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	completion, err := client.ChatStream(ctx, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "done", completion.Content)
}

// =============================================================================
// ERROR TESTS
// =============================================================================

func TestChatStream_ErrorResponses(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		wantMsg string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key","code":"invalid_api_key"}}`, ErrAuthFailed, "bad key"},
		{"not found", http.StatusNotFound, `not here`, ErrModelNotFound, "not here"},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, ErrRateLimited, "slow down"},
		{"bad request", http.StatusBadRequest, `{"error":{"message":"tools unsupported","code":null}}`, ErrBadRequest, "tools unsupported"},
		{"server error", http.StatusBadGateway, ``, ErrServerError, "Bad Gateway"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer server.Close()

			emitted := false
			client := NewClient(server.URL, "m", "k")
			_, err := client.ChatStream(context.Background(), nil, nil, func(string) { emitted = true })
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.wantErr), "got %v", err)
			assert.Contains(t, err.Error(), tc.wantMsg)
			assert.False(t, emitted)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tc.status, apiErr.Status)
		})
	}
}

func TestAPIError_CodeParsing(t *testing.T) {
	err := handleErrorResponse(401, []byte(`{"error":{"message":"nope","code":"invalid_api_key"}}`))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "invalid_api_key", apiErr.Code)
	assert.Equal(t, "HTTP 401 [invalid_api_key]: nope", apiErr.Error())

	err = handleErrorResponse(400, []byte(`{"error":{"message":"m","code":null}}`))
	require.True(t, errors.As(err, &apiErr))
	assert.Empty(t, apiErr.Code)
}

func TestChatStream_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(url, "m", "", WithConnectTimeout(time.Second))
	_, err := client.ChatStream(context.Background(), nil, nil, nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "request failed"), "got %v", err)
}

func TestChatStream_ContextCanceledMidStream(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sseHandler(contentChunk("partial"))(w, r)
		close(started)
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	client := NewClient(server.URL, "m", "")
	_, err := client.ChatStream(ctx, nil, nil, nil)
	require.Error(t, err)

	var streamErr *StreamError
	require.True(t, errors.As(err, &streamErr), "got %T: %v", err, err)
	assert.Equal(t, "partial", streamErr.Partial)
	assert.True(t, errors.Is(err, context.Canceled))
}
