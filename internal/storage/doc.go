// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists the tool audit trail.
//
// Every tool call the model makes is written to a SQLite database
// (~/.aicli/audit.db by default) with its arguments, outcome and timing.
// The AuditStore satisfies tools.Recorder, so it plugs straight into the
// executor:
//
//	store, err := storage.OpenAuditStore(path)
//	executor.SetRecorder(store)
//
// The /audit command reads the most recent entries back with Recent.
package storage
