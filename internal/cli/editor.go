// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/aicli/internal/util"
)

// lineState is the part of *liner.State the editor uses.
type lineState interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
	ReadHistory(r io.Reader) (int, error)
	WriteHistory(w io.Writer) (int, error)
	Close() error
}

// LineEditor reads input lines with editing and arrow-key history, and
// keeps that history in a file between sessions.
type LineEditor struct {
	state       lineState
	historyFile string
	limit       int
}

// NewLineEditor creates an editor on the terminal. limit caps the number of
// lines written back to historyFile.
func NewLineEditor(historyFile string, limit int) *LineEditor {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	return newLineEditor(line, historyFile, limit)
}

func newLineEditor(state lineState, historyFile string, limit int) *LineEditor {
	if limit <= 0 || limit > liner.HistoryLimit {
		limit = liner.HistoryLimit
	}
	return &LineEditor{
		state:       state,
		historyFile: historyFile,
		limit:       limit,
	}
}

// IsExitInput reports whether err from ReadLine means the user asked to
// leave: Ctrl+C at the prompt or end of input.
func IsExitInput(err error) bool {
	return errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF)
}

// LoadHistory reads the history file. A missing file is not an error.
func (e *LineEditor) LoadHistory() error {
	if e.historyFile == "" {
		return nil
	}
	f, err := os.Open(e.historyFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open history: %w", err)
	}
	defer f.Close()

	if _, err := e.state.ReadHistory(f); err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	return nil
}

// ReadLine prompts for one line and adds it to the history unless blank.
// prompt must be plain text: liner rejects control characters, which rules
// out ANSI styling. On a terminal the line is always valid UTF-8; raw bytes
// (see DecodeInput) only come through when stdin is not a terminal.
func (e *LineEditor) ReadLine(prompt string) (string, error) {
	input, err := e.state.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		e.state.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory writes the newest entries, up to the limit, to the history
// file with owner-only permissions.
func (e *LineEditor) SaveHistory() error {
	if e.historyFile == "" {
		return nil
	}
	var buf bytes.Buffer
	if _, err := e.state.WriteHistory(&buf); err != nil {
		return fmt.Errorf("write history: %w", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		lines = nil
	}
	if len(lines) > e.limit {
		lines = lines[len(lines)-e.limit:]
	}
	data := strings.Join(lines, "\n")
	if data != "" {
		data += "\n"
	}
	return util.AtomicWriteFile(e.historyFile, []byte(data), 0600)
}

// Close saves the history and restores the terminal.
func (e *LineEditor) Close() error {
	saveErr := e.SaveHistory()
	return errors.Join(saveErr, e.state.Close())
}
