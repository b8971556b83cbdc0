// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/aicli/internal/config"
)

func TestApplyFlags_OnlyChanged(t *testing.T) {
	cmd := newRootCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--model", "llama3", "--no-stats", "--max-tool-rounds", "4"}))

	cfg := config.Default()
	cfg.Endpoint.BaseURL = "http://example.com:9000"
	cfg.UI.RenderMarkdown = true

	var fv flagValues
	fv.model = "llama3"
	fv.noStats = true
	fv.maxToolRounds = 4
	applyFlags(cmd, cfg, &fv)

	assert.Equal(t, "llama3", cfg.Endpoint.Model)
	assert.Equal(t, "http://example.com:9000", cfg.Endpoint.BaseURL)
	assert.False(t, cfg.UI.ShowStats)
	assert.True(t, cfg.UI.RenderMarkdown)
	assert.Equal(t, 4, cfg.Agent.MaxToolRounds)
}

func TestRootCommand_Flags(t *testing.T) {
	cmd := newRootCommand()
	for _, name := range []string{"config", "base_url", "model", "api_key", "log-level", "max-tool-rounds", "no-markdown", "no-stats"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
	assert.Contains(t, cmd.Version, Version)
}

func TestRootCommand_RejectsArgs(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"unexpected"})
	assert.Error(t, cmd.Execute())
}
