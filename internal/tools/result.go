// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Result is the outcome of one tool execution. It is encoded as a flat JSON
// object: "ok" first, then "error" on failure, then the payload keys in
// sorted order.
type Result struct {
	OK    bool
	Error string
	Data  map[string]interface{}

	// Truncated marks payloads that were cut to fit the size limits
	Truncated bool

	// Duration is filled in by the Executor and is not encoded
	Duration time.Duration
}

// Success builds a successful result with the given payload.
func Success(data map[string]interface{}) Result {
	return Result{OK: true, Data: data}
}

// Failure builds a failed result.
func Failure(format string, args ...interface{}) Result {
	return Result{OK: false, Error: fmt.Sprintf(format, args...)}
}

// FailureWithData builds a failed result that still carries a payload, such
// as the partial output of a command that timed out.
func FailureWithData(message string, data map[string]interface{}) Result {
	return Result{OK: false, Error: message, Data: data}
}

// MarshalJSON implements json.Marshaler.
func (r Result) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"ok":`)
	if r.OK {
		buf.WriteString("true")
	} else {
		buf.WriteString("false")
	}

	if !r.OK {
		if err := writeField(&buf, "error", r.Error); err != nil {
			return nil, err
		}
	}

	keys := make([]string, 0, len(r.Data))
	for k := range r.Data {
		if k == "ok" || k == "error" || k == "truncated" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := writeField(&buf, k, r.Data[k]); err != nil {
			return nil, err
		}
	}

	if r.Truncated {
		buf.WriteString(`,"truncated":true`)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeField(buf *bytes.Buffer, key string, value interface{}) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	buf.WriteByte(',')
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}

// JSON returns the encoded result. Encoding failures become a failed result
// so the model always receives a parseable reply.
func (r Result) JSON() string {
	data, err := json.Marshal(r)
	if err != nil {
		data, _ = json.Marshal(Failure("encode result: %v", err))
	}
	return string(data)
}

// Summary returns a short human-readable description of the result.
func (r Result) Summary() string {
	if !r.OK {
		return "error: " + r.Error
	}
	switch {
	case r.Data["exit_code"] != nil:
		return fmt.Sprintf("exit code %v", r.Data["exit_code"])
	case r.Data["matches"] != nil:
		return fmt.Sprintf("%d matches", lenOf(r.Data["matches"]))
	case r.Data["files"] != nil:
		return fmt.Sprintf("%d files", lenOf(r.Data["files"]))
	case r.Data["entries"] != nil:
		return fmt.Sprintf("%d entries", lenOf(r.Data["entries"]))
	case r.Data["bytes_written"] != nil:
		return fmt.Sprintf("%v bytes written", r.Data["bytes_written"])
	case r.Data["content"] != nil:
		if s, ok := r.Data["content"].(string); ok {
			return fmt.Sprintf("%d bytes read", len(s))
		}
	}
	return "ok"
}

func lenOf(v interface{}) int {
	switch x := v.(type) {
	case []string:
		return len(x)
	case []Match:
		return len(x)
	case []interface{}:
		return len(x)
	default:
		return 0
	}
}
