// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/jeranaias/aicli/internal/model"
)

// Some models write tool calls into their answer text instead of the
// structured tool_calls field:
//
//	<function=read_file>
//	<parameter=path>
//	notes.txt
//	</parameter>
//	</function>
var (
	functionBlockRegex = regexp.MustCompile(`(?s)<function=([A-Za-z0-9_]+)>(.*?)</function>`)
	parameterRegex     = regexp.MustCompile(`(?s)<parameter=([A-Za-z0-9_]+)>(.*?)</parameter>`)
)

// HasTextualToolCalls reports whether text contains at least one function block.
func HasTextualToolCalls(text string) bool {
	return strings.Contains(text, "<function=") && functionBlockRegex.MatchString(text)
}

// ParseTextualToolCalls extracts the function blocks of text in source order.
// Each call gets a fresh id and its parameters as a JSON object of strings.
// It returns nil when text holds no function block.
func ParseTextualToolCalls(text string) []model.ToolCall {
	if !strings.Contains(text, "<function=") {
		return nil
	}

	blocks := functionBlockRegex.FindAllStringSubmatch(text, -1)
	if len(blocks) == 0 {
		return nil
	}

	calls := make([]model.ToolCall, 0, len(blocks))
	for _, block := range blocks {
		name, body := block[1], block[2]

		params := make(map[string]string)
		for _, p := range parameterRegex.FindAllStringSubmatch(body, -1) {
			params[p[1]] = strings.TrimSpace(p[2])
		}
		args, _ := json.Marshal(params)

		calls = append(calls, model.NewToolCall(generateCallID(), name, string(args)))
	}
	return calls
}

// generateCallID creates an id for a call the server did not assign one to.
func generateCallID() string {
	return "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
