// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestRole_DisplayName(t *testing.T) {
	tests := []struct {
		role Role
		want string
	}{
		{RoleUser, "You"},
		{RoleAssistant, "Assistant"},
		{RoleTool, "Tool"},
		{Role("custom"), "custom"},
	}
	for _, tc := range tests {
		if got := tc.role.DisplayName(); got != tc.want {
			t.Errorf("%q.DisplayName() = %q, want %q", tc.role, got, tc.want)
		}
	}
}

func TestMessage_WireFormat(t *testing.T) {
	t.Run("tool message", func(t *testing.T) {
		data, err := json.Marshal(NewToolMessage("call_1", "read_file", `{"ok":true}`))
		require.NoError(t, err)
		assert.JSONEq(t, `{"role":"tool","content":"{\"ok\":true}","tool_call_id":"call_1","name":"read_file"}`, string(data))
	})

	t.Run("assistant with only tool calls omits content", func(t *testing.T) {
		msg := NewAssistantMessage("", []ToolCall{NewToolCall("c1", "list_dir", `{"path":"."}`)})
		data, err := json.Marshal(msg)
		require.NoError(t, err)

		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &decoded))
		_, hasContent := decoded["content"]
		assert.False(t, hasContent)
		calls := decoded["tool_calls"].([]interface{})
		require.Len(t, calls, 1)
		call := calls[0].(map[string]interface{})
		assert.Equal(t, "function", call["type"])
		assert.Equal(t, "list_dir", call["function"].(map[string]interface{})["name"])
	})

	t.Run("user message has no tool fields", func(t *testing.T) {
		data, err := json.Marshal(NewUserMessage("hi"))
		require.NoError(t, err)
		assert.JSONEq(t, `{"role":"user","content":"hi"}`, string(data))
	})
}

func TestMessage_IsEmpty(t *testing.T) {
	assert.True(t, NewAssistantMessage("", nil).IsEmpty())
	assert.False(t, NewAssistantMessage("x", nil).IsEmpty())
	assert.False(t, NewAssistantMessage("", []ToolCall{{ID: "a"}}).IsEmpty())
}

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestConversation_AppendAndLast(t *testing.T) {
	conv := NewConversation()
	if !conv.IsEmpty() {
		t.Fatal("new conversation should be empty")
	}
	if conv.LastRole() != "" {
		t.Errorf("LastRole() on empty = %q, want empty", conv.LastRole())
	}

	conv.AddUserMessage("hello")
	conv.Append(NewAssistantMessage("hi there", nil))

	last, ok := conv.Last()
	require.True(t, ok)
	assert.Equal(t, RoleAssistant, last.Role)
	assert.Equal(t, "hi there", last.Content)
	assert.False(t, last.Timestamp.IsZero())
	assert.Equal(t, 2, conv.Len())
}

func TestConversation_RollbackTo(t *testing.T) {
	conv := NewConversation()
	conv.AddUserMessage("first")
	conv.Append(NewAssistantMessage("answer", nil))

	mark := conv.Len()
	pos := conv.AddUserMessage("second")
	assert.Equal(t, mark, pos)
	conv.Append(NewAssistantMessage("", []ToolCall{NewToolCall("c", "exec_cmd", "{}")}))
	conv.Append(NewToolMessage("c", "exec_cmd", `{"ok":false}`))

	conv.RollbackTo(mark)
	assert.Equal(t, 2, conv.Len())
	assert.Equal(t, RoleAssistant, conv.LastRole())

	conv.RollbackTo(10)
	assert.Equal(t, 2, conv.Len())

	conv.RollbackTo(-1)
	assert.True(t, conv.IsEmpty())
}

func TestConversation_MessagesIsCopy(t *testing.T) {
	conv := NewConversation()
	conv.AddUserMessage("hello")

	msgs := conv.Messages()
	msgs[0].Content = "changed"

	last, _ := conv.Last()
	assert.Equal(t, "hello", last.Content)
}

func TestConversation_CountByRole(t *testing.T) {
	conv := NewConversation()
	conv.AddUserMessage("a")
	conv.Append(NewAssistantMessage("b", nil))
	conv.AddUserMessage("c")
	assert.Equal(t, 2, conv.CountByRole(RoleUser))
	assert.Equal(t, 1, conv.CountByRole(RoleAssistant))
	assert.Equal(t, 0, conv.CountByRole(RoleTool))

	conv.Clear()
	assert.Equal(t, 0, conv.Len())
}
