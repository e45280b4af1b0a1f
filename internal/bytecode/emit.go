package bytecode

import (
	"fmt"

	"hantei/internal/expr"
	"hantei/internal/flow"
	"hantei/internal/herrors"
	"hantei/internal/optimizer"
)

// Routine is a compiled, pure subroutine-pool entry: its own register
// window, invoked via Call (spec §4.4 "subroutines receive their own
// register window").
type Routine struct {
	Registers    int
	Instructions []Instruction
}

// Path is one quality's compiled instruction stream.
type Path struct {
	Quality      flow.Quality
	Registers    int
	Instructions []Instruction
	// Footprint lists the dynamic event types this path references, in
	// first-occurrence order — the evaluator's Cartesian-product driver
	// iterates these in this exact order (spec §4.7).
	Footprint []string
}

// IsStatic reports whether p references no dynamic event type.
func (p *Path) IsStatic() bool { return len(p.Footprint) == 0 }

// Program is the full compiled bytecode bundle for a recipe: the input-id
// table, the subroutine pool, and one Path per quality.
type Program struct {
	Inputs *InputTable
	Pool   []Routine
	Paths  []Path
}

// Compile lowers an optimized optimizer.Program into bytecode, in the
// quality declaration order of opt.Paths (the evaluator sorts by priority
// separately — spec §4.7). It never enforces a register budget; callers
// that must (spec §7's "register budget exceeded" backend error) should use
// CompileWithBudget instead.
func Compile(opt *optimizer.Program) *Program {
	prog, err := CompileWithBudget(opt, 0)
	if err != nil {
		// A zero budget never triggers the budget check below; Compile
		// cannot actually fail.
		panic(err)
	}
	return prog
}

// CompileWithBudget behaves like Compile but rejects any routine or path
// whose register count exceeds budget (budget <= 0 means unbounded).
func CompileWithBudget(opt *optimizer.Program, budget int) (*Program, error) {
	inputs := NewInputTable()
	pool := make([]Routine, len(opt.Pool))
	for i, sub := range opt.Pool {
		pool[i] = compileRoutine(sub, inputs)
		if err := checkBudget(budget, pool[i].Registers, fmt.Sprintf("subroutine %d", i)); err != nil {
			return nil, err
		}
	}

	paths := make([]Path, len(opt.Paths))
	for i, p := range opt.Paths {
		em := newEmitter(inputs)
		dst := em.emit(p.Expr)
		em.push(&Return{Src: dst})
		paths[i] = Path{
			Quality:      p.Quality,
			Registers:    int(em.next),
			Instructions: Peephole(link(em.instrs)),
			Footprint:    expr.EventTypesInOrder(p.Expr),
		}
		if err := checkBudget(budget, paths[i].Registers, fmt.Sprintf("quality %q", p.Quality.Name)); err != nil {
			return nil, err
		}
	}

	return &Program{Inputs: inputs, Pool: pool, Paths: paths}, nil
}

func checkBudget(budget, registers int, who string) error {
	if budget <= 0 || registers <= budget {
		return nil
	}
	return &herrors.CompilationError{
		Stage:   herrors.StageBackend,
		Code:    herrors.CodeRegisterBudget,
		Message: fmt.Sprintf("%s needs %d registers, budget is %d", who, registers, budget),
	}
}

func compileRoutine(e expr.Expr, inputs *InputTable) Routine {
	em := newEmitter(inputs)
	dst := em.emit(e)
	em.push(&Return{Src: dst})
	return Routine{Registers: int(em.next), Instructions: Peephole(link(em.instrs))}
}

type emitter struct {
	instrs []Instruction
	next   Reg
	labels int
	inputs *InputTable
}

func newEmitter(inputs *InputTable) *emitter {
	return &emitter{inputs: inputs}
}

func (em *emitter) push(i Instruction) { em.instrs = append(em.instrs, i) }

func (em *emitter) alloc() Reg {
	r := em.next
	em.next++
	return r
}

func (em *emitter) newLabel() int {
	l := em.labels
	em.labels++
	return l
}

func (em *emitter) emit(e expr.Expr) Reg {
	dst := em.alloc()
	em.emitInto(e, dst)
	return dst
}

func (em *emitter) emitInto(e expr.Expr, dst Reg) {
	switch n := e.(type) {
	case *expr.Literal:
		em.push(&LoadLit{Dst: dst, Value: n.Value})

	case *expr.Input:
		if n.Source.Static {
			id := em.inputs.InternStatic(n.Source.Name)
			em.push(&LoadStatic{Dst: dst, InputID: id})
		} else {
			eid, cid := em.inputs.InternEventCase(n.Source.EventType, n.Source.CaseName)
			em.push(&LoadDyn{Dst: dst, EventID: eid, CaseID: cid})
		}

	case *expr.SubroutineRef:
		em.push(&Call{Dst: dst, SubID: n.ID})

	case *expr.Unary:
		a := em.emit(n.Arg)
		em.push(&NotInstr{Dst: dst, A: a})

	case *expr.Binary:
		if n.K == expr.KindAnd || n.K == expr.KindOr {
			em.emitInto(n.Left, dst)
			lbl := em.newLabel()
			if n.K == expr.KindAnd {
				em.push(&JumpIfFalse{Target: lbl, Cond: dst})
			} else {
				em.push(&JumpIfTrue{Target: lbl, Cond: dst})
			}
			em.emitInto(n.Right, dst)
			em.push(&labelMark{id: lbl})
			return
		}
		a := em.emit(n.Left)
		b := em.emit(n.Right)
		switch {
		case n.K.IsArithmetic():
			em.push(&Arith{Op: n.K.BinOp(), Dst: dst, A: a, B: b})
		case n.K.IsComparison():
			em.push(&Cmp{Op: n.K.BinOp(), Dst: dst, A: a, B: b})
		}
	}
}

// link resolves labelMark positions into concrete instruction indices and
// rewrites Jump/JumpIfTrue/JumpIfFalse targets from label id to final PC,
// dropping the labelMark pseudo-instructions from the stream.
func link(instrs []Instruction) []Instruction {
	pcOf := map[int]int{}
	out := make([]Instruction, 0, len(instrs))
	for _, ins := range instrs {
		if lm, ok := ins.(*labelMark); ok {
			pcOf[lm.id] = len(out)
			continue
		}
		out = append(out, ins)
	}
	for _, ins := range out {
		switch i := ins.(type) {
		case *Jump:
			i.Target = pcOf[i.Target]
		case *JumpIfTrue:
			i.Target = pcOf[i.Target]
		case *JumpIfFalse:
			i.Target = pcOf[i.Target]
		}
	}
	return out
}
