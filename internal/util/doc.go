// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the aicli packages.
//
//   - AtomicWriteFile: crash-safe file replacement, used by the write_file tool
//   - TruncateRunes, TruncateWidth: UTF-8 and column aware truncation for
//     tool notices and listings
//
//	err := util.AtomicWriteFile(path, data, 0644)
//	line := util.TruncateWidth(notice, termWidth)
package util
