// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jeranaias/aicli/internal/model"
	"github.com/jeranaias/aicli/internal/util"
)

// defaultAuditRows is how many entries /audit shows without an argument.
const defaultAuditRows = 10

var slashCommands = []struct {
	usage string
	desc  string
}{
	{"/help", "Show this help"},
	{"/clear", "Clear conversation history"},
	{"/tools", "List the available tools"},
	{"/history", "Show the conversation so far"},
	{"/status", "Show endpoint, model and session statistics"},
	{"/audit [n]", "Show the n most recent audited tool calls"},
	{"/quit, /exit, /bye", "Exit the session"},
}

// handleCommand runs a slash command.
func (s *Session) handleCommand(ctx context.Context, input string) {
	parts := strings.Fields(input)
	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case "/help", "/?":
		s.printHelp()
	case "/clear":
		s.conv.Clear()
		s.seed()
		s.r.Println(SuccessStyle.Render("[Conversation cleared]"))
	case "/tools":
		s.printTools()
	case "/history":
		s.printHistory()
	case "/status":
		s.printStatus(ctx)
	case "/audit":
		s.printAudit(ctx, args)
	default:
		s.r.Warning(fmt.Sprintf("Unknown command: %s (type /help for commands)", command))
	}
}

func (s *Session) printHelp() {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Commands") + "\n")
	for _, c := range slashCommands {
		fmt.Fprintf(&b, "  %s %s\n", CommandStyle.Render(fmt.Sprintf("%-20s", c.usage)), c.desc)
	}
	b.WriteString(DimStyle.Render("Ctrl+C cancels a running answer. Ctrl+C or Ctrl+D at the prompt exits."))
	s.r.Println(b.String())
}

func (s *Session) printTools() {
	all := s.opts.Executor.Registry().All()
	if len(all) == 0 {
		s.r.Println(DimStyle.Render("[No tools enabled]"))
		return
	}
	width := GetTerminalWidth()
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Tools") + "\n")
	for _, tool := range all {
		desc := util.TruncateWidth(tool.Description, width-34)
		fmt.Fprintf(&b, "  %s %-9s %s\n", ToolStyle.Render(fmt.Sprintf("%-16s", tool.Name)), tool.RiskLevel, desc)
	}
	s.r.Println(strings.TrimRight(b.String(), "\n"))
}

func (s *Session) printHistory() {
	messages := s.conv.Messages()
	if len(messages) == 0 {
		s.r.Println(DimStyle.Render("[No messages yet]"))
		return
	}

	width := GetTerminalWidth() - 16
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Conversation History") + "\n")
	for i, msg := range messages {
		label := msg.Role.DisplayName()
		if style, ok := roleStyles[string(msg.Role)]; ok {
			label = style.Render(label)
		}
		fmt.Fprintf(&b, "  %3d. %s: %s\n", i+1, label, util.TruncateWidth(historyText(msg), width))
	}
	s.r.Println(strings.TrimRight(b.String(), "\n"))
}

// historyText is the one-line form of a message for /history.
func historyText(msg model.Message) string {
	text := util.OneLine(msg.Content)
	if msg.Role == model.RoleTool && msg.Name != "" {
		text = msg.Name + " -> " + text
	}
	for _, call := range msg.ToolCalls {
		if text != "" {
			text += " "
		}
		text += fmt.Sprintf("[%s %s]", call.Function.Name, util.OneLine(call.Function.Arguments))
	}
	return text
}

func (s *Session) printStatus(ctx context.Context) {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Session Status") + "\n")
	row := func(label, value string) {
		fmt.Fprintf(&b, "  %s%s\n", RenderLabel(label), ValueStyle.Render(value))
	}
	row("Endpoint:", s.opts.Endpoint)
	row("Model:", s.opts.Model)
	row("Messages:", strconv.Itoa(s.conv.Len()))
	row("Turns:", fmt.Sprintf("%d (%d failed)", s.turns, s.failed))
	row("Tools:", s.opts.Executor.Stats().String())
	if s.turns > 0 {
		row("Streaming:", s.totals.String())
	}
	if s.opts.Audit != nil {
		if n, err := s.opts.Audit.Count(ctx); err == nil {
			row("Audited:", humanize.Comma(int64(n))+" tool calls")
		}
	}
	row("Uptime:", time.Since(s.started).Round(time.Second).String())
	s.r.Println(strings.TrimRight(b.String(), "\n"))
}

func (s *Session) printAudit(ctx context.Context, args []string) {
	if s.opts.Audit == nil {
		s.r.Warning("Audit store is disabled (audit.enabled = false)")
		return
	}
	limit := defaultAuditRows
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			s.r.Warning(fmt.Sprintf("Invalid count: %s", args[0]))
			return
		}
		limit = n
	}

	entries, err := s.opts.Audit.Recent(ctx, limit)
	if err != nil {
		s.r.Error(err)
		return
	}
	if len(entries) == 0 {
		s.r.Println(DimStyle.Render("[No tool calls recorded]"))
		return
	}

	width := GetTerminalWidth() - 50
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Recent Tool Calls") + "\n")
	for _, e := range entries {
		detail := e.Arguments
		if !e.OK {
			detail = e.Error
		}
		fmt.Fprintf(&b, "  %-16s %-16s %s %8s  %s\n",
			humanize.Time(e.Timestamp),
			e.Tool,
			RenderStatus(e.OK),
			e.Duration.Round(time.Millisecond),
			util.TruncateWidth(util.OneLine(detail), width))
	}
	s.r.Println(strings.TrimRight(b.String(), "\n"))
}
