// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/jeranaias/aicli/internal/model"
)

// =============================================================================
// RISK LEVELS
// =============================================================================

// RiskLevel indicates how dangerous a tool operation is.
type RiskLevel int

const (
	// RiskLow - Read-only operations, no side effects
	RiskLow RiskLevel = iota

	// RiskMedium - Modifies files
	RiskMedium

	// RiskCritical - Runs arbitrary commands
	RiskCritical
)

// String returns the string representation of a risk level.
func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "Low"
	case RiskMedium:
		return "Medium"
	case RiskCritical:
		return "Critical"
	default:
		return "Unknown"
	}
}

// =============================================================================
// TOOL DEFINITION
// =============================================================================

// Tool is one entry of the registry.
type Tool struct {
	// Name is the identifier the model uses (e.g. "read_file")
	Name string

	// Description is sent to the model with the schema
	Description string

	// Schema defines the tool's parameters
	Schema Schema

	// RiskLevel indicates how dangerous the tool is
	RiskLevel RiskLevel

	// run decodes params into the tool's argument struct and calls the handler
	run func(ctx context.Context, params map[string]interface{}) (Result, error)
}

// Execute validates params against the schema, decodes them into the tool's
// typed arguments and runs the handler. A non-nil error means the arguments
// were rejected and the handler never ran.
func (t *Tool) Execute(ctx context.Context, params map[string]interface{}) (Result, error) {
	return t.run(ctx, params)
}

// Schema defines a tool's parameters.
type Schema struct {
	Parameters []Parameter
}

// Parameter defines a single tool parameter.
type Parameter struct {
	// Name of the parameter
	Name string

	// Type is the JSON type ("string", "number", "boolean", "array")
	Type string

	// Required indicates if the parameter must be provided
	Required bool

	// Description explains the parameter
	Description string

	// Default is used when the parameter is omitted
	Default interface{}
}

// newTool builds a Tool whose handler receives a typed argument struct A.
// A's fields carry json tags matching the schema's parameter names.
func newTool[A any](name, description string, risk RiskLevel, schema Schema, handler func(ctx context.Context, args A) Result) *Tool {
	return &Tool{
		Name:        name,
		Description: description,
		Schema:      schema,
		RiskLevel:   risk,
		run: func(ctx context.Context, params map[string]interface{}) (Result, error) {
			var args A
			if err := decodeArgs(schema, params, &args); err != nil {
				return Result{}, err
			}
			return handler(ctx, args), nil
		},
	}
}

// Spec returns the function definition advertised to the model.
func (t *Tool) Spec() model.ToolSpec {
	properties := make(map[string]interface{}, len(t.Schema.Parameters))
	required := make([]string, 0)
	for _, p := range t.Schema.Parameters {
		prop := map[string]interface{}{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	params := map[string]interface{}{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
	raw, _ := json.Marshal(params)

	return model.ToolSpec{
		Type: "function",
		Function: model.ToolSpecFunction{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  raw,
		},
	}
}

// =============================================================================
// TOOL REGISTRY
// =============================================================================

// Options configures the built-in tools.
type Options struct {
	// ExecTimeout bounds each exec_cmd invocation
	ExecTimeout time.Duration

	// WorkDir is where exec_cmd runs. Empty means the process directory.
	WorkDir string
}

// DefaultOptions returns the built-in tool settings.
func DefaultOptions() Options {
	return Options{ExecTimeout: DefaultExecTimeout}
}

// Registry holds the available tools in registration order.
type Registry struct {
	tools map[string]*Tool
	order []string
}

// NewRegistry creates a registry with the built-in tools.
func NewRegistry(opts Options) *Registry {
	r := &Registry{
		tools: make(map[string]*Tool),
	}
	r.RegisterBuiltins(opts)
	return r
}

// NewEmptyRegistry creates a registry without tools.
func NewEmptyRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// RegisterBuiltins registers all built-in tools.
func (r *Registry) RegisterBuiltins(opts Options) {
	if opts.ExecTimeout <= 0 {
		opts.ExecTimeout = DefaultExecTimeout
	}
	r.Register(ReadFileTool())
	r.Register(WriteFileTool())
	r.Register(ExecCmdTool(opts.ExecTimeout, opts.WorkDir))
	r.Register(ListDirTool())
	r.Register(SearchFilesTool())
	r.Register(SearchContentTool())
}

// Register adds a tool, replacing any tool with the same name.
func (r *Registry) Register(tool *Tool) {
	if _, exists := r.tools[tool.Name]; !exists {
		r.order = append(r.order, tool.Name)
	}
	r.tools[tool.Name] = tool
}

// Disable removes the named tools. Unknown names are ignored.
func (r *Registry) Disable(names ...string) {
	for _, name := range names {
		name = strings.TrimSpace(name)
		if _, ok := r.tools[name]; !ok {
			continue
		}
		delete(r.tools, name)
		for i, n := range r.order {
			if n == name {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (*Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// All returns all registered tools in registration order.
func (r *Registry) All() []*Tool {
	result := make([]*Tool, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.tools[name])
	}
	return result
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Specs returns the schema of every tool for a request body.
func (r *Registry) Specs() []model.ToolSpec {
	specs := make([]model.ToolSpec, 0, len(r.order))
	for _, tool := range r.All() {
		specs = append(specs, tool.Spec())
	}
	return specs
}
