// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the interactive chat session of aicli.
//
// # Key Types
//
//   - Session: the prompt loop, slash commands and turn handling
//   - LineEditor: line editing and the persistent input history
//   - Renderer: streamed answers, tool notices, stats and errors
//
// # Usage
//
//	editor := cli.NewLineEditor(cfg.UI.HistoryFile, cfg.UI.HistoryLimit)
//	renderer := cli.NewRenderer(os.Stdout, cli.RenderOptions{ShowStats: true})
//	session := cli.NewSession(cli.SessionOptions{
//	    Engine:   engine,
//	    Executor: executor,
//	    Input:    editor,
//	    Renderer: renderer,
//	})
//	err := session.Run(ctx)
//
// # Interactive Commands
//
//	/help               Show available commands
//	/clear              Clear conversation history
//	/tools              List the available tools
//	/history            Show the conversation so far
//	/status             Show endpoint, model and session statistics
//	/audit [n]          Show the n most recent audited tool calls
//	/quit, /exit, /bye  Exit (also: quit, exit, Ctrl+C, Ctrl+D)
//
// Ctrl+C while an answer is streaming cancels the turn.
package cli
