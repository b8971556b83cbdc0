// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config handles aicli configuration.
//
// # Resolution Order
//
// Later layers override earlier ones:
//
//  1. Built-in defaults (Default)
//  2. ~/.aicli/config.toml, or the file given with --config
//  3. ./.env, falling back to ~/.env (never overriding set variables)
//  4. AI_CLI_* variables, then their OPENAI_* counterparts
//  5. Command-line flags
//
// # Example config.toml
//
//	[endpoint]
//	base_url = "https://api.openai.com/v1"
//	model = "gpt-4o-mini"
//
//	[agent]
//	max_tool_rounds = 20
//
//	[tools]
//	exec_timeout = "30s"
//	disabled = ["exec_cmd"]
package config
