// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
)

// DecodeInput returns s as valid UTF-8. Input that is not UTF-8 is decoded
// as GBK, the common encoding of Chinese Windows consoles; anything that
// still fails keeps its valid parts with U+FFFD in place of bad bytes.
//
// The GBK fallback only applies to piped input. On a terminal liner decodes
// keystrokes rune by rune and has already turned invalid bytes into U+FFFD.
func DecodeInput(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	decoded, err := simplifiedchinese.GBK.NewDecoder().String(s)
	if err == nil && utf8.ValidString(decoded) && !strings.ContainsRune(decoded, utf8.RuneError) {
		return decoded
	}
	return strings.ToValidUTF8(s, "�")
}
