// Package rules evaluates optional visibility expressions attached to action
// descriptors. Expressions are CEL, evaluated against the row the action
// would apply to; page-scoped actions see an empty row.
package rules

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"metaview/internal/schema"
	"metaview/pkg/logger"
)

// Engine compiles and caches visibility programs keyed by expression text.
type Engine struct {
	env      *cel.Env
	mu       sync.RWMutex
	programs map[string]cel.Program
}

// New creates an Engine. The evaluation environment exposes a single `row`
// variable holding the record the action targets.
func New() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("row", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}
	return &Engine{env: env, programs: make(map[string]cel.Program)}, nil
}

// Visible reports whether the action should be offered for the row. Actions
// without a rule are always visible. A rule that fails to compile or
// evaluate fails open (visible) and is logged: a broken expression must not
// hide operations the schema declares.
func (e *Engine) Visible(ctx context.Context, action schema.ActionDescriptor, row map[string]any) bool {
	if action.When == "" {
		return true
	}

	prg, err := e.program(action.When)
	if err != nil {
		logger.Warn(ctx, "visibility rule does not compile",
			"action", action.Label, "rule", action.When, "error", err)
		return true
	}

	if row == nil {
		row = map[string]any{}
	}
	out, _, err := prg.Eval(map[string]any{"row": row})
	if err != nil {
		logger.Warn(ctx, "visibility rule evaluation failed",
			"action", action.Label, "rule", action.When, "error", err)
		return true
	}
	visible, ok := out.Value().(bool)
	if !ok {
		logger.Warn(ctx, "visibility rule is not boolean",
			"action", action.Label, "rule", action.When)
		return true
	}
	return visible
}

// Filter returns the actions visible for the row, preserving order.
func (e *Engine) Filter(ctx context.Context, actions []schema.ActionDescriptor, row map[string]any) []schema.ActionDescriptor {
	out := make([]schema.ActionDescriptor, 0, len(actions))
	for _, a := range actions {
		if e.Visible(ctx, a, row) {
			out = append(out, a)
		}
	}
	return out
}

func (e *Engine) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, ok := e.programs[expr]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.programs[expr] = prg
	e.mu.Unlock()
	return prg, nil
}
