// Package vm implements the register virtual machine of spec §4.6:
// single-threaded execution of one compiled path at a time, reused across
// evaluations with its per-call state reset at entry, and a per-evaluation
// subroutine memoization cache. It keeps no value stack; And/Or
// short-circuiting runs through jump instructions over registers.
package vm

import (
	"hantei/internal/bytecode"
	"hantei/internal/herrors"
	"hantei/internal/value"
)

// Binding supplies, for every event type id the current path references,
// the chosen instance's case values indexed by case id. The evaluator
// builds one Binding per point in the Cartesian product (spec §4.7).
type Binding [][]value.Value

// VM executes compiled bytecode.Path instruction streams. One instance is
// reused across many evaluations; ResetForEval clears the per-evaluation
// subroutine cache, the only state that must not leak between evaluations.
type VM struct {
	pool      []bytecode.Routine
	subCache  []value.Value
	subCached []bool

	// regs is a VM-owned register file reused across Run calls, so the
	// per-binding hot path (spec §4.7's Cartesian product loop) does not
	// allocate a new backing array on every call.
	regs []value.Value
}

// New builds a VM bound to a compiled recipe's subroutine pool.
func New(pool []bytecode.Routine) *VM {
	vm := &VM{pool: pool}
	vm.ResetForEval()
	return vm
}

// ResetForEval clears the subroutine memoization cache. Call once per
// top-level .eval() call, before running any path (spec §4.6).
func (vm *VM) ResetForEval() {
	vm.subCache = make([]value.Value, len(vm.pool))
	vm.subCached = make([]bool, len(vm.pool))
}

// Run executes one path to completion against the given static inputs
// (indexed by input id) and dynamic binding (indexed by event id, then case
// id), returning the Value its Return instruction yields.
func (vm *VM) Run(path *bytecode.Path, statics []value.Value, binding Binding) (value.Value, error) {
	if cap(vm.regs) < path.Registers {
		vm.regs = make([]value.Value, path.Registers)
	}
	regs := vm.regs[:path.Registers]
	for i := range regs {
		regs[i] = value.Value{}
	}
	return vm.exec(path.Instructions, regs, statics, binding)
}

func (vm *VM) exec(instrs []bytecode.Instruction, regs []value.Value, statics []value.Value, binding Binding) (value.Value, error) {
	pc := 0
	for pc < len(instrs) {
		switch ins := instrs[pc].(type) {
		case *bytecode.LoadLit:
			regs[ins.Dst] = ins.Value

		case *bytecode.LoadStatic:
			if ins.InputID >= len(statics) {
				return value.Value{}, herrors.NewInputNotFound("static input")
			}
			regs[ins.Dst] = statics[ins.InputID]

		case *bytecode.LoadDyn:
			if ins.EventID >= len(binding) || ins.CaseID >= len(binding[ins.EventID]) {
				return value.Value{}, herrors.NewInputNotFound("dynamic input")
			}
			regs[ins.Dst] = binding[ins.EventID][ins.CaseID]

		case *bytecode.Arith:
			a, b := regs[ins.A], regs[ins.B]
			result, err := value.Arithmetic(ins.Op, a, b)
			if err != nil {
				return value.Value{}, asEvaluationError(err)
			}
			regs[ins.Dst] = result

		case *bytecode.Cmp:
			a, b := regs[ins.A], regs[ins.B]
			var result value.Value
			var err error
			if ins.Op == "==" || ins.Op == "!=" {
				eq := value.Equal(a, b)
				if ins.Op == "!=" {
					eq = !eq
				}
				result = value.NewBool(eq)
			} else {
				result, err = value.Compare(ins.Op, a, b)
			}
			if err != nil {
				return value.Value{}, asEvaluationError(err)
			}
			regs[ins.Dst] = result

		case *bytecode.CmpStaticGtImm:
			if ins.InputID >= len(statics) {
				return value.Value{}, herrors.NewInputNotFound("static input")
			}
			n, ok := statics[ins.InputID].Number()
			if !ok {
				return value.Value{}, herrors.NewTypeMismatch("CmpStaticGtImm expects a Number static input")
			}
			regs[ins.Dst] = value.NewBool(n > ins.K)

		case *bytecode.NotInstr:
			result, err := value.Not(regs[ins.A])
			if err != nil {
				return value.Value{}, asEvaluationError(err)
			}
			regs[ins.Dst] = result

		case *bytecode.JumpIfFalse:
			b, ok := regs[ins.Cond].Bool()
			if !ok {
				return value.Value{}, herrors.NewTypeMismatch("JumpIfFalse expects a Bool condition")
			}
			if !b {
				pc = ins.Target
				continue
			}

		case *bytecode.JumpIfTrue:
			b, ok := regs[ins.Cond].Bool()
			if !ok {
				return value.Value{}, herrors.NewTypeMismatch("JumpIfTrue expects a Bool condition")
			}
			if b {
				pc = ins.Target
				continue
			}

		case *bytecode.Jump:
			pc = ins.Target
			continue

		case *bytecode.Call:
			result, err := vm.callSubroutine(ins.SubID, statics)
			if err != nil {
				return value.Value{}, err
			}
			regs[ins.Dst] = result

		case *bytecode.Return:
			return regs[ins.Src], nil
		}
		pc++
	}
	return value.Value{}, herrors.NewTypeMismatch("instruction stream fell off the end without a Return")
}

// callSubroutine runs (or returns the cached result of) pool entry id.
// Subroutines are pure over static inputs only, so no Binding is threaded
// through (spec §4.6).
func (vm *VM) callSubroutine(id int, statics []value.Value) (value.Value, error) {
	if vm.subCached[id] {
		return vm.subCache[id], nil
	}
	routine := vm.pool[id]
	regs := make([]value.Value, routine.Registers)
	result, err := vm.exec(routine.Instructions, regs, statics, nil)
	if err != nil {
		return value.Value{}, err
	}
	vm.subCache[id] = result
	vm.subCached[id] = true
	return result, nil
}

func asEvaluationError(err error) error {
	switch err.(type) {
	case *value.DivideByZeroError:
		return herrors.NewDivideByZero()
	case *value.TypeError:
		return herrors.NewTypeMismatch(err.Error())
	default:
		return herrors.NewTypeMismatch(err.Error())
	}
}
