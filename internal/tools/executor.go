// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/aicli/internal/model"
)

// DefaultToolTimeout is applied to a dispatch whose context has no deadline.
// exec_cmd enforces its own, shorter timeout.
const DefaultToolTimeout = 2 * time.Minute

// maxHistorySize limits the in-memory execution history.
const maxHistorySize = 1000

// =============================================================================
// EXECUTION RECORD
// =============================================================================

// ExecutionRecord describes one dispatched tool call.
type ExecutionRecord struct {
	ID        string
	CallID    string
	ToolName  string
	Arguments string
	Result    Result
	Timestamp time.Time
	Duration  time.Duration
}

// Recorder persists execution records, e.g. to the audit store.
type Recorder interface {
	Record(ctx context.Context, rec ExecutionRecord) error
}

// Observer is told about each dispatch. OnToolStart runs before the tool
// does.
type Observer interface {
	OnToolStart(call model.ToolCall, tool *Tool)
	OnToolResult(call model.ToolCall, result Result)
}

// =============================================================================
// EXECUTOR
// =============================================================================

// Executor dispatches tool calls to the registry. Every failure, including
// unknown tools, bad arguments and handler panics, becomes a failed Result.
type Executor struct {
	registry *Registry
	observer Observer
	recorder Recorder
	logger   *slog.Logger
	timeout  time.Duration

	mu      sync.Mutex
	history []ExecutionRecord
}

// NewExecutor creates a new tool executor with the given registry.
func NewExecutor(registry *Registry) *Executor {
	return &Executor{
		registry: registry,
		logger:   slog.Default(),
		timeout:  DefaultToolTimeout,
		history:  make([]ExecutionRecord, 0),
	}
}

// SetObserver sets the progress observer.
func (e *Executor) SetObserver(o Observer) {
	e.observer = o
}

// SetRecorder sets where execution records are persisted.
func (e *Executor) SetRecorder(r Recorder) {
	e.recorder = r
}

// SetLogger sets the diagnostic logger.
func (e *Executor) SetLogger(logger *slog.Logger) {
	if logger != nil {
		e.logger = logger
	}
}

// SetTimeout sets the timeout used when the dispatch context has no deadline.
func (e *Executor) SetTimeout(d time.Duration) {
	if d > 0 {
		e.timeout = d
	}
}

// Registry returns the tool registry.
func (e *Executor) Registry() *Registry {
	return e.registry
}

// History returns a copy of the execution history.
func (e *Executor) History() []ExecutionRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	result := make([]ExecutionRecord, len(e.history))
	copy(result, e.history)
	return result
}

// ClearHistory clears the execution history.
func (e *Executor) ClearHistory() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = make([]ExecutionRecord, 0)
}

// Dispatch executes call and returns the tool-role message answering it.
func (e *Executor) Dispatch(ctx context.Context, call model.ToolCall) model.Message {
	result := e.Execute(ctx, call)
	return model.NewToolMessage(call.ID, call.Function.Name, result.JSON())
}

// Execute runs a tool call and returns its result.
func (e *Executor) Execute(ctx context.Context, call model.ToolCall) Result {
	start := time.Now()
	name := call.Function.Name
	tool, found := e.registry.Get(name)

	if e.observer != nil {
		e.observer.OnToolStart(call, tool)
	}

	var result Result
	if !found {
		result = Failure("Unknown tool: %s", name)
	} else if params, err := ParseArguments(call.Function.Arguments); err != nil {
		result = Failure("invalid arguments for %s: %v", name, err)
	} else {
		result = e.run(ctx, tool, params)
	}
	result.Duration = time.Since(start)

	e.logger.Info("tool executed",
		"tool", name,
		"call_id", call.ID,
		"ok", result.OK,
		"duration", result.Duration)
	if !result.OK {
		e.logger.Debug("tool failed", "tool", name, "error", result.Error)
	}

	record := ExecutionRecord{
		ID:        uuid.NewString(),
		CallID:    call.ID,
		ToolName:  name,
		Arguments: call.Function.Arguments,
		Result:    result,
		Timestamp: start,
		Duration:  result.Duration,
	}
	e.addToHistory(record)
	if e.recorder != nil {
		if err := e.recorder.Record(context.WithoutCancel(ctx), record); err != nil {
			e.logger.Warn("failed to record tool execution", "tool", name, "error", err)
		}
	}

	if e.observer != nil {
		e.observer.OnToolResult(call, result)
	}
	return result
}

// run calls the tool in its own goroutine so that a handler that ignores its
// context cannot block the session past the timeout. On timeout the goroutine
// is abandoned, not stopped: only exec_cmd and the directory walkers watch
// ctx, so a blocked read_file (a FIFO, say) keeps its descriptor and a slow
// write_file may still complete after the failure was reported.
func (e *Executor) run(ctx context.Context, tool *Tool, params map[string]interface{}) Result {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	resultCh := make(chan Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("tool panicked", "tool", tool.Name, "panic", r)
				resultCh <- Failure("tool %s failed: %v", tool.Name, r)
			}
		}()

		result, err := tool.Execute(ctx, params)
		if err != nil {
			result = Failure("invalid arguments for %s: %v", tool.Name, err)
		}
		resultCh <- result
	}()

	select {
	case result := <-resultCh:
		return result
	case <-ctx.Done():
		return Failure("tool %s did not finish: %v", tool.Name, ctx.Err())
	}
}

// addToHistory adds an execution record to the history.
func (e *Executor) addToHistory(record ExecutionRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.history) >= maxHistorySize {
		e.history = e.history[len(e.history)-maxHistorySize+1:]
	}
	e.history = append(e.history, record)
}

// ExecutionStats summarizes the execution history.
type ExecutionStats struct {
	Total     int
	Succeeded int
	Failed    int
	ByTool    map[string]int
}

// Stats returns counts over the in-memory history.
func (e *Executor) Stats() ExecutionStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := ExecutionStats{ByTool: make(map[string]int)}
	for _, rec := range e.history {
		stats.Total++
		if rec.Result.OK {
			stats.Succeeded++
		} else {
			stats.Failed++
		}
		stats.ByTool[rec.ToolName]++
	}
	return stats
}

// String formats the stats on one line.
func (s ExecutionStats) String() string {
	return fmt.Sprintf("%d tool calls (%d ok, %d failed)", s.Total, s.Succeeded, s.Failed)
}
