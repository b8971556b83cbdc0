// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tools provides the local tools the model can call, the dispatcher
// that runs them, and the step engine that drives a tool-calling turn.
//
// # Built-in Tools
//
//   - read_file: return the text of a file
//   - write_file: replace or create a file
//   - exec_cmd: run a shell command with a timeout
//   - list_dir: list a directory
//   - search_files: find files by name
//   - search_content: find lines containing a keyword
//
// Every handler receives a typed argument struct that has been checked
// against the tool's schema. Handlers report failure through Result, never
// by returning a Go error or panicking past the Executor.
//
// # Usage
//
//	registry := tools.NewRegistry(tools.DefaultOptions())
//	executor := tools.NewExecutor(registry)
//	engine := tools.NewStepEngine(chat, executor)
//
//	conv.AddUserMessage("what is in main.go?")
//	turn, err := engine.Run(ctx, conv)
package tools
