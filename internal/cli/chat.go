// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - The interactive chat session.
//
// Each non-command line becomes a user message and is handed to the step
// engine, which streams the answer and runs any requested tools. Ctrl+C
// while a turn runs cancels that turn; Ctrl+C or Ctrl+D at the prompt exits.

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jeranaias/aicli/internal/cloud"
	"github.com/jeranaias/aicli/internal/model"
	"github.com/jeranaias/aicli/internal/storage"
	"github.com/jeranaias/aicli/internal/tools"
)

// Prompt is the input prompt. It is plain text; see LineEditor.ReadLine.
const Prompt = "you> "

// =============================================================================
// COLLABORATORS
// =============================================================================

// Engine resolves one user turn.
type Engine interface {
	Run(ctx context.Context, conv *model.Conversation) (*tools.TurnResult, error)
}

// InputReader reads prompted lines. *LineEditor implements it.
type InputReader interface {
	ReadLine(prompt string) (string, error)
}

// AuditReader reads the audit trail. *storage.AuditStore implements it.
type AuditReader interface {
	Recent(ctx context.Context, limit int) ([]storage.AuditEntry, error)
	Count(ctx context.Context) (int, error)
}

// Streamer sends one streaming chat request. *cloud.Client implements it.
type Streamer interface {
	ChatStream(ctx context.Context, messages []model.Message, specs []model.ToolSpec, onContent func(string)) (*cloud.Completion, error)
}

// StreamingChat adapts a Streamer to the step engine, printing answer text
// through r as it arrives.
func StreamingChat(client Streamer, r *Renderer) tools.ChatFunc {
	return func(ctx context.Context, messages []model.Message, specs []model.ToolSpec) (*cloud.Completion, error) {
		completion, err := client.ChatStream(ctx, messages, specs, r.Content)
		r.EndLine()
		return completion, err
	}
}

// =============================================================================
// SESSION
// =============================================================================

// SessionOptions wires a Session.
type SessionOptions struct {
	Version      string
	Endpoint     string
	Model        string
	SystemPrompt string

	Engine   Engine
	Executor *tools.Executor
	Input    InputReader
	Renderer *Renderer

	// Audit is nil when the audit store is disabled
	Audit AuditReader

	// Interrupt derives the context of one turn. The default cancels it on
	// SIGINT.
	Interrupt func(ctx context.Context) (context.Context, context.CancelFunc)

	Logger *slog.Logger
}

// Session is one interactive chat session.
type Session struct {
	opts    SessionOptions
	conv    *model.Conversation
	r       *Renderer
	logger  *slog.Logger
	started time.Time

	turns  int
	failed int
	totals cloud.Stats
}

// NewSession creates a session with an empty conversation, seeded with the
// system prompt when one is configured.
func NewSession(opts SessionOptions) *Session {
	if opts.Interrupt == nil {
		opts.Interrupt = func(ctx context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(ctx, os.Interrupt)
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		opts:    opts,
		conv:    model.NewConversation(),
		r:       opts.Renderer,
		logger:  logger,
		started: time.Now(),
	}
	s.seed()
	return s
}

func (s *Session) seed() {
	if prompt := strings.TrimSpace(s.opts.SystemPrompt); prompt != "" {
		s.conv.Append(model.NewSystemMessage(prompt))
	}
}

// Conversation returns the session history.
func (s *Session) Conversation() *model.Conversation {
	return s.conv
}

// Run reads and handles lines until the user exits or ctx is done.
func (s *Session) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := s.opts.Input.ReadLine(Prompt)
		if err != nil {
			if IsExitInput(err) {
				s.r.Println()
				s.goodbye()
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		if s.HandleLine(ctx, line) {
			s.goodbye()
			return nil
		}
	}
}

// HandleLine processes one input line and reports whether the session
// should end.
func (s *Session) HandleLine(ctx context.Context, line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return false
	}
	if isExitCommand(input) {
		return true
	}
	if strings.HasPrefix(input, "/") {
		s.handleCommand(ctx, input)
		return false
	}

	s.runTurn(ctx, DecodeInput(input))
	return false
}

func isExitCommand(input string) bool {
	switch strings.ToLower(input) {
	case "/quit", "/exit", "/bye", "quit", "exit":
		return true
	}
	return false
}

// runTurn sends input and prints the outcome. A failed turn has already
// been rolled back by the engine, so the loop simply continues.
func (s *Session) runTurn(ctx context.Context, input string) {
	turnCtx, stop := s.opts.Interrupt(ctx)
	defer stop()

	s.conv.AddUserMessage(input)
	turn, err := s.opts.Engine.Run(turnCtx, s.conv)

	if turn != nil {
		s.turns++
		s.totals = s.totals.Add(turn.Stats)
		s.r.Answer(turn.Answer)
		s.r.Stats(turn.Stats)
	} else {
		s.r.EndLine()
	}

	if err == nil {
		return
	}
	switch {
	case errors.Is(err, context.Canceled):
		s.failed++
		s.r.Warning("[Cancelled]")
	case errors.Is(err, tools.ErrMaxRoundsReached):
		s.r.Warning(fmt.Sprintf("[Stopped: %v]", err))
	default:
		s.failed++
		s.r.Error(err)
	}
	s.logger.Info("turn ended with error", "error", err, "messages", s.conv.Len())
}

// goodbye prints the exit summary.
func (s *Session) goodbye() {
	if s.turns > 0 {
		stats := s.opts.Executor.Stats()
		s.r.Println(DimStyle.Render(fmt.Sprintf("%d turns | %s | %s chars | %s",
			s.turns,
			stats.String(),
			humanize.Comma(int64(s.totals.Chars)),
			time.Since(s.started).Round(time.Second))))
	}
	s.r.Println("Goodbye!")
}
