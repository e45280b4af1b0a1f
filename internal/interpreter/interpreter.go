// Package interpreter implements the direct tree-walking backend of spec
// §4.5: it shares the Expression IR and the optimizer's output with the
// bytecode VM and evaluates every node kind identically, but additionally
// records which operand decided each logical node's outcome, building a
// human-readable reason string. It is not the performance path; parity
// with the VM is (spec §4.5's parity invariant).
package interpreter

import (
	"fmt"

	"hantei/internal/expr"
	"hantei/internal/herrors"
	"hantei/internal/value"
)

// Env supplies the runtime data one Decide call needs: static measurements
// by name, and the current dynamic binding as event type -> case name ->
// value (one chosen instance per event type, from the evaluator's
// Cartesian product driver).
type Env struct {
	Statics map[string]value.Value
	Binding map[string]map[string]value.Value
}

// Interpreter walks expr.Expr trees, sharing a subroutine pool with the
// optimizer's CSE output.
type Interpreter struct {
	pool      []expr.Expr
	subCache  map[int]value.Value
}

// New builds an Interpreter bound to a compiled recipe's subroutine pool.
func New(pool []expr.Expr) *Interpreter {
	it := &Interpreter{pool: pool}
	it.ResetForEval()
	return it
}

// ResetForEval clears the per-evaluation subroutine memoization cache,
// mirroring the VM's per-call reset (spec §4.6, shared by both backends).
func (it *Interpreter) ResetForEval() {
	it.subCache = map[int]value.Value{}
}

// Decide evaluates e to a boolean and returns the winning value plus a
// reason string naming the deciding operand, per spec §4.7's interpreter
// reason-string format.
func (it *Interpreter) Decide(e expr.Expr, env *Env) (bool, string, error) {
	d, err := it.decide(e, env)
	if err != nil {
		return false, "", err
	}
	return d.result, d.describe(), nil
}

// decision records a boolean outcome and the node that decided it.
type decision struct {
	result   bool
	operator string
	operand  string
}

func (d decision) describe() string {
	return fmt.Sprintf("%s on %s", d.operator, d.operand)
}

func (it *Interpreter) decide(e expr.Expr, env *Env) (decision, error) {
	switch n := e.(type) {
	case *expr.Binary:
		switch n.K {
		case expr.KindAnd:
			left, err := it.decide(n.Left, env)
			if err != nil {
				return decision{}, err
			}
			if !left.result {
				return decision{false, "And", left.operand}, nil
			}
			right, err := it.decide(n.Right, env)
			if err != nil {
				return decision{}, err
			}
			return decision{right.result, "And", right.operand}, nil

		case expr.KindOr:
			left, err := it.decide(n.Left, env)
			if err != nil {
				return decision{}, err
			}
			if left.result {
				return decision{true, "Or", left.operand}, nil
			}
			right, err := it.decide(n.Right, env)
			if err != nil {
				return decision{}, err
			}
			return decision{right.result, "Or", right.operand}, nil
		}

	case *expr.Unary:
		if n.K == expr.KindNot {
			inner, err := it.decide(n.Arg, env)
			if err != nil {
				return decision{}, err
			}
			return decision{!inner.result, "Not", inner.operand}, nil
		}
	}

	v, err := it.eval(e, env)
	if err != nil {
		return decision{}, err
	}
	b, ok := v.Bool()
	if !ok {
		return decision{}, herrors.NewTypeMismatch(fmt.Sprintf("expected Bool, got %s", v.Kind()))
	}
	return decision{b, e.Kind().String(), e.String()}, nil
}

// eval evaluates e to a Value, for nodes that are not themselves logical
// And/Or/Not (those go through decide for the reason-string bookkeeping).
func (it *Interpreter) eval(e expr.Expr, env *Env) (value.Value, error) {
	switch n := e.(type) {
	case *expr.Literal:
		return n.Value, nil

	case *expr.Input:
		if n.Source.Static {
			v, ok := env.Statics[n.Source.Name]
			if !ok {
				return value.Value{}, herrors.NewInputNotFound(n.Source.Name)
			}
			return v, nil
		}
		instance, ok := env.Binding[n.Source.EventType]
		if !ok {
			return value.Value{}, herrors.NewInputNotFound(n.Source.EventType)
		}
		v, ok := instance[n.Source.CaseName]
		if !ok {
			return value.Value{}, herrors.NewInputNotFound(n.Source.EventType + "." + n.Source.CaseName)
		}
		return v, nil

	case *expr.SubroutineRef:
		if v, ok := it.subCache[n.ID]; ok {
			return v, nil
		}
		v, err := it.eval(it.pool[n.ID], env)
		if err != nil {
			return value.Value{}, err
		}
		it.subCache[n.ID] = v
		return v, nil

	case *expr.Unary:
		v, err := it.eval(n.Arg, env)
		if err != nil {
			return value.Value{}, err
		}
		return applyUnary(n.K, v)

	case *expr.Binary:
		left, err := it.eval(n.Left, env)
		if err != nil {
			return value.Value{}, err
		}
		right, err := it.eval(n.Right, env)
		if err != nil {
			return value.Value{}, err
		}
		return applyBinary(n.K, left, right)
	}
	return value.Value{}, herrors.NewTypeMismatch(fmt.Sprintf("unrecognized node %s", e.Kind()))
}

func applyUnary(k expr.Kind, v value.Value) (value.Value, error) {
	if k != expr.KindNot {
		return value.Value{}, herrors.NewTypeMismatch(fmt.Sprintf("unrecognized unary node %s", k))
	}
	result, err := value.Not(v)
	if err != nil {
		return value.Value{}, asEvaluationError(err)
	}
	return result, nil
}

func applyBinary(k expr.Kind, left, right value.Value) (value.Value, error) {
	var result value.Value
	var err error
	switch {
	case k.IsArithmetic():
		result, err = value.Arithmetic(k.BinOp(), left, right)
	case k == expr.KindEq || k == expr.KindNeq:
		eq := value.Equal(left, right)
		if k == expr.KindNeq {
			eq = !eq
		}
		return value.NewBool(eq), nil
	case k.IsComparison():
		result, err = value.Compare(k.BinOp(), left, right)
	case k.IsLogicalBinary():
		result, err = value.Logical(k.BinOp(), left, right)
	default:
		return value.Value{}, herrors.NewTypeMismatch(fmt.Sprintf("unrecognized binary node %s", k))
	}
	if err != nil {
		return value.Value{}, asEvaluationError(err)
	}
	return result, nil
}

func asEvaluationError(err error) error {
	switch err.(type) {
	case *value.DivideByZeroError:
		return herrors.NewDivideByZero()
	default:
		return herrors.NewTypeMismatch(err.Error())
	}
}
