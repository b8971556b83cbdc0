// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestDecodeInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"ascii", "hello", "hello"},
		{"utf8", "héllo 你好", "héllo 你好"},
		{"gbk", "\xc4\xe3\xba\xc3", "你好"},
		{"empty", "", ""},
		{"terminal replacement chars kept", "a\uFFFDb", "a\uFFFDb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeInput(tt.input))
		})
	}
}

func TestDecodeInput_AlwaysValidUTF8(t *testing.T) {
	got := DecodeInput("abc\xff")
	assert.True(t, utf8.ValidString(got))
	assert.Contains(t, got, "abc")
}
