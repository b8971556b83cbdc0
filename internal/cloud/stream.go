// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/jeranaias/aicli/internal/model"
	"github.com/jeranaias/aicli/internal/util"
)

// =============================================================================
// STREAMING TYPES
// =============================================================================

// DoneMarker is the payload that terminates a stream.
const DoneMarker = "[DONE]"

// Completion is the reassembled result of one streamed answer.
type Completion struct {
	Content      string
	ToolCalls    []model.ToolCall // ordered by stream index
	FinishReason string
	Malformed    int // chunks skipped because they were not valid JSON
	Stats        Stats
}

// HasToolCalls reports whether structured tool-call deltas arrived.
func (c *Completion) HasToolCalls() bool {
	return len(c.ToolCalls) > 0
}

// StreamError is a failure while reading a response body. Partial holds the
// content received before the failure.
type StreamError struct {
	Partial string
	Err     error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// =============================================================================
// SSE READER
// =============================================================================

// SSEReader yields the data payloads of a Server-Sent Events stream one line
// at a time. Blank lines and other fields (event:, id:, retry:, comments)
// are skipped.
type SSEReader struct {
	reader *bufio.Reader
}

// NewSSEReader creates a new SSE reader from an io.Reader.
func NewSSEReader(r io.Reader) *SSEReader {
	return &SSEReader{
		reader: bufio.NewReader(r),
	}
}

// Next returns the payload of the next data line with the "data:" prefix and
// one optional following space removed. It returns io.EOF at end of input.
func (s *SSEReader) Next() ([]byte, error) {
	for {
		line, err := s.reader.ReadBytes('\n')
		if len(line) == 0 && err != nil {
			return nil, err
		}

		line = bytes.TrimRight(line, "\r\n")
		if payload, ok := dataPayload(line); ok {
			return payload, nil
		}
		if err != nil {
			// Last line had no newline and was not data.
			return nil, err
		}
	}
}

func dataPayload(line []byte) ([]byte, bool) {
	if len(bytes.TrimSpace(line)) == 0 {
		return nil, false
	}
	if !bytes.HasPrefix(line, []byte("data:")) {
		return nil, false
	}
	payload := line[len("data:"):]
	payload = bytes.TrimPrefix(payload, []byte(" "))
	return payload, true
}

// =============================================================================
// REASSEMBLER
// =============================================================================

// Reassembler merges the chunks of one streamed answer. Content fragments are
// concatenated and forwarded to OnContent. Tool-call fragments are merged by
// index: the first non-empty id and name win, argument text is appended in
// arrival order. A Reassembler is used for a single response.
type Reassembler struct {
	onContent func(string)
	logger    *slog.Logger

	content      strings.Builder
	calls        map[int]*model.ToolCall
	finishReason string
	malformed    int

	startedAt  time.Time
	firstToken time.Time
}

// NewReassembler creates a reassembler. onContent and logger may be nil.
func NewReassembler(onContent func(string), logger *slog.Logger) *Reassembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reassembler{
		onContent: onContent,
		logger:    logger,
		calls:     make(map[int]*model.ToolCall),
		startedAt: time.Now(),
	}
}

// Consume reads SSE lines from body until the [DONE] marker or end of input
// and returns the completion. Lines after [DONE] are never read.
func (r *Reassembler) Consume(ctx context.Context, body io.Reader) (*Completion, error) {
	reader := NewSSEReader(body)

	for {
		if err := ctx.Err(); err != nil {
			return nil, &StreamError{Partial: r.content.String(), Err: err}
		}

		payload, err := reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return r.Result(), nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			return nil, &StreamError{Partial: r.content.String(), Err: err}
		}

		if r.HandleData(payload) {
			return r.Result(), nil
		}
	}
}

// HandleData processes one data payload and reports whether it was the
// terminator. Payloads that are not valid JSON are logged and skipped.
func (r *Reassembler) HandleData(payload []byte) bool {
	trimmed := bytes.TrimSpace(payload)
	if string(trimmed) == DoneMarker {
		return true
	}
	if len(trimmed) == 0 {
		return false
	}
	if !gjson.ValidBytes(trimmed) {
		r.malformed++
		r.logger.Warn("skipping malformed stream chunk",
			"chunk", util.TruncateRunes(string(trimmed), 200))
		return false
	}

	chunk := gjson.ParseBytes(trimmed)
	if apiErr := chunk.Get("error.message"); apiErr.Exists() {
		r.logger.Warn("server reported error in stream", "error", apiErr.String())
	}

	choice := chunk.Get("choices.0")
	if !choice.Exists() {
		return false
	}

	delta := choice.Get("delta")
	if content := delta.Get("content"); content.Type == gjson.String && content.Str != "" {
		r.appendContent(content.Str)
	}

	position := 0
	delta.Get("tool_calls").ForEach(func(_, frag gjson.Result) bool {
		r.mergeToolCall(frag, position)
		position++
		return true
	})

	if reason := choice.Get("finish_reason"); reason.Type == gjson.String {
		r.finishReason = reason.Str
	}
	return false
}

func (r *Reassembler) appendContent(text string) {
	if r.firstToken.IsZero() {
		r.firstToken = time.Now()
	}
	r.content.WriteString(text)
	if r.onContent != nil {
		r.onContent(text)
	}
}

// mergeToolCall folds one fragment into the call at its index. A fragment
// without an index is addressed by its position in the chunk's list.
func (r *Reassembler) mergeToolCall(frag gjson.Result, position int) {
	index := position
	if idx := frag.Get("index"); idx.Exists() {
		index = int(idx.Int())
	}

	if r.firstToken.IsZero() {
		r.firstToken = time.Now()
	}

	call, ok := r.calls[index]
	if !ok {
		call = &model.ToolCall{Type: "function"}
		r.calls[index] = call
	}

	if id := frag.Get("id").String(); id != "" && call.ID == "" {
		call.ID = id
	}
	if name := frag.Get("function.name").String(); name != "" && call.Function.Name == "" {
		call.Function.Name = name
	}
	// Servers that send arguments as an object rather than a string get the
	// raw JSON text.
	if args := frag.Get("function.arguments"); args.Exists() {
		call.Function.Arguments += args.String()
	}
}

// Result returns what has been assembled so far.
func (r *Reassembler) Result() *Completion {
	indexes := make([]int, 0, len(r.calls))
	for idx := range r.calls {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	var calls []model.ToolCall
	for _, idx := range indexes {
		calls = append(calls, *r.calls[idx])
	}

	content := r.content.String()
	end := time.Now()
	stats := Stats{
		Total: end.Sub(r.startedAt),
		Chars: len([]rune(content)),
	}
	if !r.firstToken.IsZero() {
		stats.FirstToken = r.firstToken.Sub(r.startedAt)
		stats.Generation = end.Sub(r.firstToken)
	}

	return &Completion{
		Content:      content,
		ToolCalls:    calls,
		FinishReason: r.finishReason,
		Malformed:    r.malformed,
		Stats:        stats,
	}
}
