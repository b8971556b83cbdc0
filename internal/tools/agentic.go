// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/jeranaias/aicli/internal/cloud"
	"github.com/jeranaias/aicli/internal/model"
)

// =============================================================================
// STEP ENGINE TYPES
// =============================================================================

// ChatFunc sends the conversation and returns the reassembled answer. specs
// is nil when tools should not be advertised.
type ChatFunc func(ctx context.Context, messages []model.Message, specs []model.ToolSpec) (*cloud.Completion, error)

// ErrMaxRoundsReached is returned when a turn uses up its tool rounds.
var ErrMaxRoundsReached = errors.New("maximum tool rounds reached")

// ErrNoUserMessage is returned when a turn is started without a user message.
var ErrNoUserMessage = errors.New("conversation does not end with a user message")

// TurnResult describes a completed turn.
type TurnResult struct {
	// Answer is the final assistant text. It was already streamed.
	Answer string

	// Requests is the number of chat requests made
	Requests int

	// ToolCalls is the number of tool calls dispatched
	ToolCalls int

	// TextualCalls counts calls recovered from <function=...> text
	TextualCalls int

	// Stats accumulates the timing of every request in the turn
	Stats cloud.Stats
}

// StepEngine drives one user turn: it sends the history, dispatches any
// requested tools and repeats until the model answers without tools.
type StepEngine struct {
	chat     ChatFunc
	executor *Executor
	logger   *slog.Logger

	// maxRounds caps tool rounds per turn; 0 means unbounded
	maxRounds int

	// limiter paces requests within a turn; nil means unpaced
	limiter *rate.Limiter
}

// NewStepEngine creates a step engine.
func NewStepEngine(chat ChatFunc, executor *Executor) *StepEngine {
	return &StepEngine{
		chat:     chat,
		executor: executor,
		logger:   slog.Default(),
	}
}

// SetMaxRounds caps the tool rounds of a single turn. 0 disables the cap.
func (s *StepEngine) SetMaxRounds(n int) {
	if n < 0 {
		n = 0
	}
	s.maxRounds = n
}

// SetRequestsPerSecond paces the requests of a turn. 0 disables pacing.
func (s *StepEngine) SetRequestsPerSecond(rps float64) {
	if rps <= 0 {
		s.limiter = nil
		return
	}
	s.limiter = rate.NewLimiter(rate.Limit(rps), 1)
}

// SetLogger sets the diagnostic logger.
func (s *StepEngine) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// =============================================================================
// RUN LOOP
// =============================================================================

// Run resolves the turn started by the last (user) message of conv.
//
// Each iteration sends the history, advertising tools only when the last
// message is the user's. Structured tool calls are used when present;
// otherwise <function=...> blocks in the text are parsed and replace it.
// The assistant message is recorded when it has content or calls. Calls are
// dispatched in order and their replies appended before the next iteration.
//
// If any request fails, conv is rolled back to before the user message and
// the error is returned.
func (s *StepEngine) Run(ctx context.Context, conv *model.Conversation) (*TurnResult, error) {
	if conv.LastRole() != model.RoleUser {
		return nil, ErrNoUserMessage
	}
	mark := conv.Len() - 1
	turn := &TurnResult{}
	rounds := 0

	for {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				conv.RollbackTo(mark)
				return nil, fmt.Errorf("request cancelled: %w", err)
			}
		}

		var specs []model.ToolSpec
		if conv.LastRole() == model.RoleUser {
			specs = s.executor.Registry().Specs()
		}

		completion, err := s.chat(ctx, conv.Messages(), specs)
		turn.Requests++
		if err != nil {
			conv.RollbackTo(mark)
			s.logger.Warn("chat request failed, turn rolled back",
				"error", err,
				"requests", turn.Requests)
			return nil, err
		}
		turn.Stats = turn.Stats.Add(completion.Stats)
		if completion.Malformed > 0 {
			s.logger.Warn("stream contained malformed chunks", "count", completion.Malformed)
		}

		content := completion.Content
		calls := completion.ToolCalls
		if len(calls) == 0 {
			if parsed := ParseTextualToolCalls(content); len(parsed) > 0 {
				s.logger.Debug("parsed textual tool calls", "count", len(parsed))
				calls = parsed
				content = ""
				turn.TextualCalls += len(parsed)
			}
		}
		calls = normalizeCalls(calls)

		assistant := model.NewAssistantMessage(content, calls)
		if !assistant.IsEmpty() {
			conv.Append(assistant)
		}

		if len(calls) == 0 {
			turn.Answer = content
			return turn, nil
		}

		for _, call := range calls {
			conv.Append(s.executor.Dispatch(ctx, call))
			turn.ToolCalls++
		}

		rounds++
		if s.maxRounds > 0 && rounds >= s.maxRounds {
			return turn, fmt.Errorf("%w: %d", ErrMaxRoundsReached, s.maxRounds)
		}
	}
}

// normalizeCalls fills in ids and types that the server left empty so each
// tool reply can reference its call.
func normalizeCalls(calls []model.ToolCall) []model.ToolCall {
	for i := range calls {
		if calls[i].ID == "" {
			calls[i].ID = generateCallID()
		}
		if calls[i].Type == "" {
			calls[i].Type = "function"
		}
	}
	return calls
}
