// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"time"
)

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is the ordered message history of one session. It only grows,
// except for RollbackTo, which discards a turn whose request failed.
type Conversation struct {
	CreatedAt time.Time
	messages  []Message
}

// NewConversation creates an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{
		CreatedAt: time.Now(),
		messages:  make([]Message, 0, 16),
	}
}

// Append adds a message to the end of the history.
func (c *Conversation) Append(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	c.messages = append(c.messages, msg)
}

// AddUserMessage appends a user message and returns its position.
func (c *Conversation) AddUserMessage(content string) int {
	c.Append(NewUserMessage(content))
	return len(c.messages) - 1
}

// Messages returns a copy of the history suitable for a request body.
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// IsEmpty returns true if the conversation has no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.messages) == 0
}

// Last returns the most recent message.
func (c *Conversation) Last() (Message, bool) {
	if len(c.messages) == 0 {
		return Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}

// LastRole returns the role of the most recent message, or "" when empty.
func (c *Conversation) LastRole() Role {
	if msg, ok := c.Last(); ok {
		return msg.Role
	}
	return ""
}

// RollbackTo truncates the history to its first n messages.
func (c *Conversation) RollbackTo(n int) {
	if n < 0 {
		n = 0
	}
	if n >= len(c.messages) {
		return
	}
	// Clear dropped slots so their tool output can be collected.
	for i := n; i < len(c.messages); i++ {
		c.messages[i] = Message{}
	}
	c.messages = c.messages[:n]
}

// Clear removes every message.
func (c *Conversation) Clear() {
	c.RollbackTo(0)
}

// CountByRole returns how many messages have the given role.
func (c *Conversation) CountByRole(role Role) int {
	n := 0
	for _, msg := range c.messages {
		if msg.Role == role {
			n++
		}
	}
	return n
}
