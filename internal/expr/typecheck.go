package expr

import "fmt"

// ValueType is the static type an Expression node produces, tracked
// separately from runtime value.Kind because SubroutineRef and Input nodes
// need a type without evaluating anything.
type ValueType int

const (
	TypeNumber ValueType = iota
	TypeBool
)

func (t ValueType) String() string {
	if t == TypeBool {
		return "Bool"
	}
	return "Number"
}

// TypeInvariantError reports a violation of the IR's static type invariants
// (spec §3: "Types at every IR node are consistent"). This is a fatal,
// internal-bug-class error — it should never surface from well-formed
// frontend output, only from an optimizer pass that mis-rewrote a tree.
type TypeInvariantError struct {
	Node Expr
	Msg  string
}

func (e *TypeInvariantError) Error() string {
	return fmt.Sprintf("type invariant violated at %s: %s", e.Node.String(), e.Msg)
}

// SubroutineTyper resolves the type a SubroutineRef evaluates to, so the
// checker can validate trees containing them without re-deriving the whole
// subroutine pool's types on every call.
type SubroutineTyper func(id int) (ValueType, error)

// InputTyper resolves the static type of an Input's source (spec: static
// inputs and dynamic event cases both have a fixed type per the flow graph
// that produced them); nil means "assume Number", matching an untyped
// sample-data map.
type InputTyper func(src Source) (ValueType, error)

// Check walks e bottom-up, asserting every invariant from spec §3: children
// of arithmetic/comparison nodes are Number-producing, children of logical
// nodes are Bool-producing, Not takes Bool. It returns the type of e or the
// first *TypeInvariantError encountered.
func Check(e Expr, subType SubroutineTyper, inType InputTyper) (ValueType, error) {
	switch n := e.(type) {
	case *Literal:
		if _, ok := n.Value.Bool(); ok {
			return TypeBool, nil
		}
		return TypeNumber, nil
	case *Input:
		if inType != nil {
			return inType(n.Source)
		}
		return TypeNumber, nil
	case *SubroutineRef:
		if subType == nil {
			return TypeNumber, nil
		}
		return subType(n.ID)
	case *Binary:
		lt, err := Check(n.Left, subType, inType)
		if err != nil {
			return 0, err
		}
		rt, err := Check(n.Right, subType, inType)
		if err != nil {
			return 0, err
		}
		switch {
		case n.K.IsArithmetic():
			if lt != TypeNumber {
				return 0, &TypeInvariantError{Node: n.Left, Msg: "arithmetic operand must be Number"}
			}
			if rt != TypeNumber {
				return 0, &TypeInvariantError{Node: n.Right, Msg: "arithmetic operand must be Number"}
			}
			return TypeNumber, nil
		case n.K.IsComparison():
			if n.K == KindEq || n.K == KindNeq {
				if lt != rt {
					return 0, &TypeInvariantError{Node: n, Msg: "Eq/Neq operands must share a type"}
				}
				return TypeBool, nil
			}
			if lt != TypeNumber {
				return 0, &TypeInvariantError{Node: n.Left, Msg: "ordering comparison operand must be Number"}
			}
			if rt != TypeNumber {
				return 0, &TypeInvariantError{Node: n.Right, Msg: "ordering comparison operand must be Number"}
			}
			return TypeBool, nil
		case n.K.IsLogicalBinary():
			if lt != TypeBool {
				return 0, &TypeInvariantError{Node: n.Left, Msg: "logical operand must be Bool"}
			}
			if rt != TypeBool {
				return 0, &TypeInvariantError{Node: n.Right, Msg: "logical operand must be Bool"}
			}
			return TypeBool, nil
		default:
			return 0, &TypeInvariantError{Node: n, Msg: "unknown binary kind"}
		}
	case *Unary:
		if n.K != KindNot {
			return 0, &TypeInvariantError{Node: n, Msg: "unknown unary kind"}
		}
		at, err := Check(n.Arg, subType, inType)
		if err != nil {
			return 0, err
		}
		if at != TypeBool {
			return 0, &TypeInvariantError{Node: n.Arg, Msg: "Not operand must be Bool"}
		}
		return TypeBool, nil
	default:
		return 0, &TypeInvariantError{Node: e, Msg: "unhandled expression node"}
	}
}
