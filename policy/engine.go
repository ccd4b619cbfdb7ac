// Package policy gates rollback plans with OPA rego rules, so protected
// packages are never touched by an automated rollback.
package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/rs/zerolog"

	"github.com/pkgtools/aptrewind/types"
)

// Input is the document each policy evaluates.
type Input struct {
	Action    types.RollbackAction `json:"action"`
	Protected []string             `json:"protected"`
}

// Verdict is one policy's answer for one action.
type Verdict struct {
	Allowed  bool     `json:"allowed"`
	Denials  []string `json:"denials,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Vetoed pairs a rejected action with the denial reasons.
type Vetoed struct {
	Action  types.RollbackAction `json:"action"`
	Reasons []string             `json:"reasons"`
}

// Engine evaluates compiled rego policies against plan actions.
type Engine struct {
	queries   map[string]rego.PreparedEvalQuery
	protected []string
	logger    zerolog.Logger
}

// NewEngine creates a policy engine. protected lists package names the
// built-in policy refuses to remove.
func NewEngine(logger zerolog.Logger, protected []string) *Engine {
	return &Engine{
		queries:   make(map[string]rego.PreparedEvalQuery),
		protected: protected,
		logger:    logger,
	}
}

// LoadDefault compiles the built-in protection policy.
func (e *Engine) LoadDefault(ctx context.Context) error {
	return e.LoadPolicy(ctx, "builtin.rego", defaultPolicy)
}

// LoadPolicy compiles one rego module and registers it for evaluation.
func (e *Engine) LoadPolicy(ctx context.Context, name string, regoCode string) error {
	query := rego.New(
		rego.Query("data.aptrewind"),
		rego.Module(name, regoCode),
	)
	prepared, err := query.PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("failed to compile policy %s: %w", name, err)
	}
	e.queries[name] = prepared

	e.logger.Debug().Str("policy", name).Msg("policy loaded")
	return nil
}

// LoadDir compiles every .rego file in dir.
func (e *Engine) LoadDir(ctx context.Context, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".rego") {
			return nil
		}
		content, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return fmt.Errorf("failed to read policy file %s: %w", path, err)
		}
		return e.LoadPolicy(ctx, filepath.Base(path), string(content))
	})
}

// EvaluateAction runs every loaded policy against one action.
func (e *Engine) EvaluateAction(ctx context.Context, action types.RollbackAction) (Verdict, error) {
	verdict := Verdict{Allowed: true}
	input := Input{Action: action, Protected: e.protected}

	for name, query := range e.queries {
		results, err := query.Eval(ctx, rego.EvalInput(input))
		if err != nil {
			return Verdict{}, fmt.Errorf("policy %s evaluation failed: %w", name, err)
		}
		denials, warnings := extractMessages(results)
		verdict.Denials = append(verdict.Denials, denials...)
		verdict.Warnings = append(verdict.Warnings, warnings...)
	}

	verdict.Allowed = len(verdict.Denials) == 0
	return verdict, nil
}

// FilterPlan evaluates the whole plan, splitting it into permitted actions
// and vetoed ones. Warnings are logged and do not block.
func (e *Engine) FilterPlan(ctx context.Context, plan []types.RollbackAction) ([]types.RollbackAction, []Vetoed, error) {
	var allowed []types.RollbackAction
	var vetoed []Vetoed

	for _, action := range plan {
		verdict, err := e.EvaluateAction(ctx, action)
		if err != nil {
			return nil, nil, err
		}
		for _, warning := range verdict.Warnings {
			e.logger.Warn().Str("package", action.Key()).Msg(warning)
		}
		if !verdict.Allowed {
			vetoed = append(vetoed, Vetoed{Action: action, Reasons: verdict.Denials})
			continue
		}
		allowed = append(allowed, action)
	}
	return allowed, vetoed, nil
}

// extractMessages pulls deny/warn sets out of the evaluated document.
// Policies attach arbitrary shapes, so this walks generic JSON: the same
// trade-off OPA itself makes.
func extractMessages(results rego.ResultSet) (denials, warnings []string) {
	for _, result := range results {
		for _, expr := range result.Expressions {
			doc, ok := expr.Value.(map[string]interface{})
			if !ok {
				continue
			}
			denials = append(denials, stringSet(doc["deny"])...)
			warnings = append(warnings, stringSet(doc["warn"])...)
		}
	}
	return denials, warnings
}

func stringSet(value interface{}) []string {
	items, ok := value.([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
