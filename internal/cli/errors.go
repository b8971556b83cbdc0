// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/aicli/internal/config"
)

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates startup failed
	ExitGeneralError = 1
)

// DisplayError prints a startup error. Configuration problems are listed
// one per line.
func DisplayError(w io.Writer, err error) {
	if err == nil {
		return
	}
	var verrs config.ValidateErrors
	if errors.As(err, &verrs) {
		fmt.Fprintf(w, "%s invalid configuration\n", ErrorStyle.Render("[Error]"))
		for _, v := range verrs {
			fmt.Fprintf(w, "  %s %s\n", WarningStyle.Render(v.Field+":"), v.Message)
		}
		return
	}
	fmt.Fprintf(w, "%s %v\n", ErrorStyle.Render("[Error]"), err)
}
