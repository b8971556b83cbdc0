// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/dustin/go-humanize"

	"github.com/jeranaias/aicli/internal/cloud"
	"github.com/jeranaias/aicli/internal/model"
	"github.com/jeranaias/aicli/internal/tools"
	"github.com/jeranaias/aicli/internal/util"
)

// maxNoticeArgs caps the argument text shown in a tool notice, in columns.
const maxNoticeArgs = 160

// RenderOptions controls what the Renderer prints.
type RenderOptions struct {
	// ShowStats prints timing after each answer
	ShowStats bool

	// Markdown re-renders the finished answer with glamour
	Markdown bool

	// Width is the wrap width for markdown. 0 means the terminal width.
	Width int
}

// Renderer writes everything the session shows: streamed answer text,
// tool notices, stats, warnings and errors. It implements tools.Observer.
type Renderer struct {
	out      io.Writer
	opts     RenderOptions
	colors   bool
	markdown *glamour.TermRenderer

	mu      sync.Mutex
	midLine bool
}

// NewRenderer creates a renderer writing to out.
func NewRenderer(out io.Writer, opts RenderOptions) *Renderer {
	r := &Renderer{
		out:    out,
		opts:   opts,
		colors: ColorsEnabled(),
	}
	if opts.Markdown {
		width := opts.Width
		if width <= 0 {
			width = GetTerminalWidth()
		}
		style := glamour.WithAutoStyle()
		if !r.colors {
			style = glamour.WithStandardStyle("notty")
		}
		md, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width-2))
		if err == nil {
			r.markdown = md
		}
	}
	return r
}

// =============================================================================
// STREAMED CONTENT
// =============================================================================

// Content writes a piece of streamed answer text as it arrives.
func (r *Renderer) Content(text string) {
	if text == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprint(r.out, text)
	r.midLine = !strings.HasSuffix(text, "\n")
}

// EndLine terminates a partially written line.
func (r *Renderer) EndLine() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endLine()
}

func (r *Renderer) endLine() {
	if r.midLine {
		fmt.Fprintln(r.out)
		r.midLine = false
	}
}

// Answer finishes a turn's answer. With markdown enabled the answer is
// printed again, rendered.
func (r *Renderer) Answer(answer string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endLine()
	if r.markdown == nil || strings.TrimSpace(answer) == "" {
		return
	}
	rendered, err := r.markdown.Render(answer)
	if err != nil {
		return
	}
	fmt.Fprintln(r.out, RenderSeparator())
	fmt.Fprint(r.out, rendered)
}

// Stats prints the dim timing line of a turn when enabled.
func (r *Renderer) Stats(stats cloud.Stats) {
	if !r.opts.ShowStats {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endLine()
	fmt.Fprintln(r.out, DimStyle.Render("["+stats.String()+"]"))
}

// =============================================================================
// TOOL NOTICES
// =============================================================================

// OnToolStart prints the notice for a tool about to run.
func (r *Renderer) OnToolStart(call model.ToolCall, tool *tools.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endLine()

	name := ToolStyle.Render(call.Function.Name)
	if tool != nil && tool.RiskLevel == tools.RiskCritical {
		name = WarningStyle.Render(call.Function.Name)
	}
	args := r.formatArgs(call.Function.Arguments)
	fmt.Fprintf(r.out, "  %s %s %s\n", DimStyle.Render("⚙"), name, args)
}

// OnToolResult prints the outcome of a tool.
func (r *Renderer) OnToolResult(call model.ToolCall, result tools.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	mark := SuccessStyle.Render("✓")
	if !result.OK {
		mark = ErrorStyle.Render("✗")
	}
	line := fmt.Sprintf("  %s %s: %s", mark, call.Function.Name, resultSummary(result))
	if result.Duration > 0 {
		line += DimStyle.Render(fmt.Sprintf(" (%s)", result.Duration.Round(time.Millisecond)))
	}
	fmt.Fprintln(r.out, line)
}

func (r *Renderer) formatArgs(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = "{}"
	}
	var buf bytes.Buffer
	if json.Valid([]byte(raw)) && json.Compact(&buf, []byte(raw)) == nil {
		raw = buf.String()
	} else {
		raw = util.OneLine(raw)
	}
	raw = util.TruncateWidth(raw, maxNoticeArgs)
	if r.colors {
		return highlightJSON(raw)
	}
	return raw
}

// resultSummary describes a result for the notice line.
func resultSummary(result tools.Result) string {
	if !result.OK {
		return util.OneLine(result.Error)
	}
	if n, ok := result.Data["bytes_written"].(int); ok {
		return humanize.Bytes(uint64(n)) + " written"
	}
	if s, ok := result.Data["content"].(string); ok {
		summary := humanize.Bytes(uint64(len(s))) + " read"
		if result.Truncated {
			summary += " (truncated)"
		}
		return summary
	}
	summary := result.Summary()
	if result.Truncated {
		summary += " (truncated)"
	}
	return summary
}

// =============================================================================
// MESSAGES
// =============================================================================

// Error prints an error line.
func (r *Renderer) Error(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endLine()
	fmt.Fprintf(r.out, "%s %v\n", ErrorStyle.Render("[Error]"), err)
}

// Warning prints a warning line.
func (r *Renderer) Warning(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endLine()
	fmt.Fprintln(r.out, WarningStyle.Render(msg))
}

// Println writes a plain line.
func (r *Renderer) Println(a ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endLine()
	fmt.Fprintln(r.out, a...)
}

// Banner prints the startup banner.
func (r *Renderer) Banner(version, endpoint, modelName string, toolNames []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, TitleStyle.Render("aicli "+version))
	fmt.Fprintln(r.out, RenderSeparator(30))
	fmt.Fprintf(r.out, "%s%s\n", RenderLabel("Endpoint:"), ValueStyle.Render(endpoint))
	fmt.Fprintf(r.out, "%s%s\n", RenderLabel("Model:"), ValueStyle.Render(modelName))
	if len(toolNames) > 0 {
		fmt.Fprintf(r.out, "%s%s\n", RenderLabel("Tools:"), ValueStyle.Render(strings.Join(toolNames, ", ")))
	}
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, DimStyle.Render("Type a message and press Enter. /help lists commands, /quit exits."))
	fmt.Fprintln(r.out)
}
