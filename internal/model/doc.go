// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// # Key Types
//
//   - Message: one turn, encoded in the chat-completions wire format
//   - ToolCall: a model-requested invocation of a local tool
//   - ToolSpec: the advertisement of a tool sent with user turns
//   - Conversation: the ordered history of one session
//
// # Usage
//
//	conv := model.NewConversation()
//	mark := conv.AddUserMessage("list the files here")
//	// request failed:
//	conv.RollbackTo(mark)
package model
