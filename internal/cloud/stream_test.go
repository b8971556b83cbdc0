// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func consume(t *testing.T, stream string) (*Completion, []string) {
	t.Helper()
	var emitted []string
	r := NewReassembler(func(s string) { emitted = append(emitted, s) }, nil)
	completion, err := r.Consume(context.Background(), strings.NewReader(stream))
	require.NoError(t, err)
	return completion, emitted
}

// =============================================================================
// SSE READER TESTS
// =============================================================================

func TestSSEReader_Next(t *testing.T) {
	input := ": keep-alive comment\n" +
		"event: message\n" +
		"data: first\r\n" +
		"\n" +
		"id: 7\n" +
		"data:second\n" +
		"data: last-without-newline"

	reader := NewSSEReader(strings.NewReader(input))
	var got []string
	for {
		payload, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, string(payload))
	}
	assert.Equal(t, []string{"first", "second", "last-without-newline"}, got)
}

// =============================================================================
// CONTENT REASSEMBLY TESTS
// =============================================================================

func TestReassembler_ContentConcatenation(t *testing.T) {
	stream := strings.Join([]string{
		contentChunk("The "),
		"",
		contentChunk("quick "),
		contentChunk("brown 狐狸"),
		"data: [DONE]",
		"",
	}, "\n")

	completion, emitted := consume(t, stream)
	assert.Equal(t, "The quick brown 狐狸", completion.Content)
	assert.Equal(t, []string{"The ", "quick ", "brown 狐狸"}, emitted)
	assert.Equal(t, 18, completion.Stats.Chars)
	assert.Empty(t, completion.ToolCalls)
}

func TestReassembler_DoneStopsConsumption(t *testing.T) {
	stream := contentChunk("before") + "\ndata: [DONE]\n" + contentChunk("after") + "\n"
	completion, emitted := consume(t, stream)
	assert.Equal(t, "before", completion.Content)
	assert.Equal(t, []string{"before"}, emitted)
}

func TestReassembler_EndsWithoutDone(t *testing.T) {
	completion, _ := consume(t, contentChunk("no terminator")+"\n")
	assert.Equal(t, "no terminator", completion.Content)
}

func TestReassembler_MalformedChunkIsSkipped(t *testing.T) {
	stream := strings.Join([]string{
		contentChunk("a"),
		`data: {"choices":[{"delta":{"content":"b"`,
		contentChunk("c"),
		"data: [DONE]",
	}, "\n")

	completion, _ := consume(t, stream)
	assert.Equal(t, "ac", completion.Content)
	assert.Equal(t, 1, completion.Malformed)
}

func TestReassembler_DegradesToEmpty(t *testing.T) {
	tests := map[string]string{
		"empty stream":     "",
		"no choices":       `data: {"id":"x","object":"chat.completion.chunk"}` + "\n",
		"empty choices":    `data: {"choices":[]}` + "\n",
		"no delta":         `data: {"choices":[{"index":0}]}` + "\n",
		"non-data lines":   "event: ping\n: comment\n\n",
		"error object":     `data: {"error":{"message":"overloaded"}}` + "\n",
		"null content":     `data: {"choices":[{"delta":{"content":null}}]}` + "\n",
		"json array":       "data: [1,2,3]\n",
		"done immediately": "data: [DONE]\n",
	}
	for name, stream := range tests {
		t.Run(name, func(t *testing.T) {
			completion, emitted := consume(t, stream)
			assert.Empty(t, completion.Content)
			assert.Empty(t, completion.ToolCalls)
			assert.Empty(t, emitted)
		})
	}
}

// =============================================================================
// TOOL CALL REASSEMBLY TESTS
// =============================================================================

func TestReassembler_ToolCallFragments(t *testing.T) {
	stream := strings.Join([]string{
		`data: {"choices":[{"delta":{"role":"assistant","tool_calls":[{"index":0,"id":"call_a","type":"function","function":{"name":"read_file","arguments":""}}]}}]}`,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"pa"}}]}}]}`,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_ignored","function":{"name":"ignored","arguments":"th\":\"a.txt\"}"}}]}}]}`,
		`data: {"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
		`data: [DONE]`,
	}, "\n")

	completion, _ := consume(t, stream)
	require.Len(t, completion.ToolCalls, 1)
	call := completion.ToolCalls[0]
	assert.Equal(t, "call_a", call.ID)
	assert.Equal(t, "function", call.Type)
	assert.Equal(t, "read_file", call.Function.Name)
	assert.Equal(t, `{"path":"a.txt"}`, call.Function.Arguments)
	assert.Equal(t, "tool_calls", completion.FinishReason)
	assert.True(t, completion.HasToolCalls())
}

func TestReassembler_MultipleToolCallsOrderedByIndex(t *testing.T) {
	stream := strings.Join([]string{
		`data: {"choices":[{"delta":{"tool_calls":[{"index":1,"id":"call_b","function":{"name":"list_dir","arguments":"{\"path\":"}}]}}]}`,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_a","function":{"name":"exec_cmd","arguments":"{\"cmd\":"}}]}}]}`,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":1,"function":{"arguments":"\".\"}"}},{"index":0,"function":{"arguments":"\"ls\"}"}}]}}]}`,
		`data: [DONE]`,
	}, "\n")

	completion, _ := consume(t, stream)
	require.Len(t, completion.ToolCalls, 2)
	assert.Equal(t, "call_a", completion.ToolCalls[0].ID)
	assert.Equal(t, `{"cmd":"ls"}`, completion.ToolCalls[0].Function.Arguments)
	assert.Equal(t, "call_b", completion.ToolCalls[1].ID)
	assert.Equal(t, `{"path":"."}`, completion.ToolCalls[1].Function.Arguments)
}

func TestReassembler_MixedContentAndToolCalls(t *testing.T) {
	stream := strings.Join([]string{
		contentChunk("Let me check. "),
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"id":"c1","function":{"name":"list_dir","arguments":"{}"}}]}}]}`,
		`data: [DONE]`,
	}, "\n")

	completion, emitted := consume(t, stream)
	assert.Equal(t, "Let me check. ", completion.Content)
	assert.Equal(t, []string{"Let me check. "}, emitted)
	require.Len(t, completion.ToolCalls, 1)
	assert.Equal(t, "list_dir", completion.ToolCalls[0].Function.Name)
}

func TestReassembler_FragmentWithoutIndexUsesPosition(t *testing.T) {
	stream := `data: {"choices":[{"delta":{"tool_calls":[` +
		`{"id":"x","function":{"name":"read_file","arguments":"{\"path\":\"a\"}"}},` +
		`{"id":"y","function":{"name":"read_file","arguments":"{\"path\":\"b\"}"}}]}}]}` + "\n"

	completion, _ := consume(t, stream)
	require.Len(t, completion.ToolCalls, 2)
	assert.Equal(t, "x", completion.ToolCalls[0].ID)
	assert.Equal(t, "y", completion.ToolCalls[1].ID)
}

func TestReassembler_ObjectArguments(t *testing.T) {
	stream := `data: {"choices":[{"delta":{"tool_calls":[{"index":0,"id":"x","function":{"name":"list_dir","arguments":{"path":"src"}}}]}}]}` + "\n"

	completion, _ := consume(t, stream)
	require.Len(t, completion.ToolCalls, 1)
	assert.JSONEq(t, `{"path":"src"}`, completion.ToolCalls[0].Function.Arguments)
}

// =============================================================================
// FAILURE TESTS
// =============================================================================

type failingReader struct {
	data string
	read bool
}

func (f *failingReader) Read(p []byte) (int, error) {
	if !f.read {
		f.read = true
		return copy(p, f.data), nil
	}
	return 0, errors.New("connection reset")
}

func TestReassembler_ReadErrorKeepsPartial(t *testing.T) {
	r := NewReassembler(nil, nil)
	_, err := r.Consume(context.Background(), &failingReader{data: contentChunk("half") + "\n"})
	require.Error(t, err)

	var streamErr *StreamError
	require.True(t, errors.As(err, &streamErr))
	assert.Equal(t, "half", streamErr.Partial)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestReassembler_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewReassembler(nil, nil)
	_, err := r.Consume(ctx, strings.NewReader(contentChunk("x")+"\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

// =============================================================================
// STATS TESTS
// =============================================================================

func TestStats(t *testing.T) {
	s := Stats{FirstToken: 200 * time.Millisecond, Generation: 2 * time.Second, Total: 2200 * time.Millisecond, Chars: 100}
	assert.InDelta(t, 50.0, s.CharsPerSecond(), 0.001)
	assert.Contains(t, s.String(), "first token 200ms")
	assert.Contains(t, s.String(), "50.0 chars/s")

	short := Stats{Generation: time.Millisecond, Chars: 10}
	assert.Zero(t, short.CharsPerSecond())
	assert.NotContains(t, short.String(), "chars/s")

	sum := Stats{}.Add(s).Add(Stats{FirstToken: time.Second, Generation: time.Second, Total: time.Second, Chars: 50})
	assert.Equal(t, 200*time.Millisecond, sum.FirstToken)
	assert.Equal(t, 150, sum.Chars)
	assert.Equal(t, 3*time.Second, sum.Generation)
}
