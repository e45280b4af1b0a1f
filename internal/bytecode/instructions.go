// Package bytecode implements the register-based backend of spec §4.4: a
// linear instruction stream per quality path, an input-id table so inputs
// are addressed by integer rather than string, and a pool of pure
// subroutines shared across paths for CSE reuse.
package bytecode

import (
	"fmt"

	"hantei/internal/value"
)

// Reg names a slot in a path's register file.
type Reg int

// Instruction is one opcode in a path's or subroutine's instruction stream.
type Instruction interface {
	fmt.Stringer
	isInstruction()
}

// LoadLit writes a compile-time constant into Dst.
type LoadLit struct {
	Dst   Reg
	Value value.Value
}

func (*LoadLit) isInstruction() {}
func (i *LoadLit) String() string { return fmt.Sprintf("LoadLit r%d, %s", i.Dst, i.Value.String()) }

// LoadStatic reads static_data[InputID] into Dst.
type LoadStatic struct {
	Dst     Reg
	InputID int
}

func (*LoadStatic) isInstruction() {}
func (i *LoadStatic) String() string {
	return fmt.Sprintf("LoadStatic r%d, #%d", i.Dst, i.InputID)
}

// LoadDyn reads the current event binding's EventID/CaseID case value into Dst.
type LoadDyn struct {
	Dst     Reg
	EventID int
	CaseID  int
}

func (*LoadDyn) isInstruction() {}
func (i *LoadDyn) String() string {
	return fmt.Sprintf("LoadDyn r%d, event#%d, case#%d", i.Dst, i.EventID, i.CaseID)
}

// Arith performs one of +, -, *, / on two Number registers.
type Arith struct {
	Op       string
	Dst, A, B Reg
}

func (*Arith) isInstruction() {}
func (i *Arith) String() string { return fmt.Sprintf("%s r%d, r%d, r%d", opName(i.Op), i.Dst, i.A, i.B) }

// Cmp performs one of >, <, >=, <= on two Number registers, or == / != on
// any two registers (compared with value.Equal), producing a Bool.
type Cmp struct {
	Op       string
	Dst, A, B Reg
}

func (*Cmp) isInstruction() {}
func (i *Cmp) String() string { return fmt.Sprintf("%s r%d, r%d, r%d", opName(i.Op), i.Dst, i.A, i.B) }

// NotInstr negates a Bool register.
type NotInstr struct {
	Dst, A Reg
}

func (*NotInstr) isInstruction() {}
func (i *NotInstr) String() string { return fmt.Sprintf("Not r%d, r%d", i.Dst, i.A) }

// JumpIfFalse branches to Target when Cond holds a false Bool (the And
// short-circuit).
type JumpIfFalse struct {
	Target int
	Cond   Reg
}

func (*JumpIfFalse) isInstruction() {}
func (i *JumpIfFalse) String() string { return fmt.Sprintf("JumpIfFalse @%d, r%d", i.Target, i.Cond) }

// JumpIfTrue branches to Target when Cond holds a true Bool (the Or
// short-circuit).
type JumpIfTrue struct {
	Target int
	Cond   Reg
}

func (*JumpIfTrue) isInstruction() {}
func (i *JumpIfTrue) String() string { return fmt.Sprintf("JumpIfTrue @%d, r%d", i.Target, i.Cond) }

// Jump branches unconditionally to Target.
type Jump struct {
	Target int
}

func (*Jump) isInstruction() {}
func (i *Jump) String() string { return fmt.Sprintf("Jump @%d", i.Target) }

// Call invokes the pool subroutine SubID, storing its result in Dst.
type Call struct {
	Dst   Reg
	SubID int
}

func (*Call) isInstruction() {}
func (i *Call) String() string { return fmt.Sprintf("Call r%d, sub#%d", i.Dst, i.SubID) }

// Return terminates the path, yielding Src's value.
type Return struct {
	Src Reg
}

func (*Return) isInstruction() {}
func (i *Return) String() string { return fmt.Sprintf("Return r%d", i.Src) }

// labelMark is a pre-link pseudo-instruction marking a jump target's
// position; link() resolves it away (spec §4.4 leaves label resolution
// to the emitter, not the VM).
type labelMark struct{ id int }

func (*labelMark) isInstruction() {}
func (l *labelMark) String() string { return fmt.Sprintf("L%d:", l.id) }

func opName(op string) string {
	switch op {
	case "+":
		return "Add"
	case "-":
		return "Sub"
	case "*":
		return "Mul"
	case "/":
		return "Div"
	case ">":
		return "Gt"
	case "<":
		return "Lt"
	case ">=":
		return "Gte"
	case "<=":
		return "Lte"
	case "==":
		return "Eq"
	case "!=":
		return "Neq"
	default:
		return op
	}
}
