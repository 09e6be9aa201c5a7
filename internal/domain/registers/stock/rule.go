package stock

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// DefaultLowStockRule flags materials below their minimum stock.
const DefaultLowStockRule = "min_stock > 0.0 && on_hand < min_stock"

// Rule is a compiled CEL expression over on_hand, min_stock and
// reorder_point (all doubles) that decides whether a level is low.
type Rule struct {
	expr string
	prg  cel.Program
}

// NewRule compiles expr. The expression must evaluate to bool.
func NewRule(expr string) (*Rule, error) {
	env, err := cel.NewEnv(
		cel.Variable("on_hand", cel.DoubleType),
		cel.Variable("min_stock", cel.DoubleType),
		cel.Variable("reorder_point", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss.Err() != nil {
		return nil, fmt.Errorf("compile low stock rule: %w", iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("low stock rule must return bool, got %s", ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build low stock program: %w", err)
	}
	return &Rule{expr: expr, prg: prg}, nil
}

// MustRule compiles expr and panics on error. Use for constants.
func MustRule(expr string) *Rule {
	r, err := NewRule(expr)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Rule) String() string { return r.expr }

// Matches evaluates the rule for one stock level.
func (r *Rule) Matches(level StockLevel) (bool, error) {
	out, _, err := r.prg.Eval(map[string]any{
		"on_hand":       level.OnHand.Float64(),
		"min_stock":     level.MinStock.Float64(),
		"reorder_point": level.ReorderPoint.Float64(),
	})
	if err != nil {
		return false, fmt.Errorf("evaluate low stock rule: %w", err)
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("low stock rule returned %T", out.Value())
	}
	return matched, nil
}
