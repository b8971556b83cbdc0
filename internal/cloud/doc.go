// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud talks to OpenAI-compatible chat-completion servers.
//
// # Usage
//
//	client := cloud.NewClient("http://localhost:7867", "Qwen3", "")
//	completion, err := client.ChatStream(ctx, conv.Messages(), specs, func(s string) {
//	    fmt.Print(s)
//	})
//
// # Stream Handling
//
// Only "data:" lines are interpreted. "[DONE]" ends the stream. Chunks that
// are not valid JSON are logged and skipped. Tool-call fragments are merged
// by index and returned in index order.
package cloud
