package bytecode

// CmpStaticGtImm is the fused form of LoadStatic + LoadLit + Gt that the
// peephole pass emits when a static input is immediately compared against a
// literal (spec §4.4 (i)).
type CmpStaticGtImm struct {
	Dst     Reg
	InputID int
	K       float64
}

func (*CmpStaticGtImm) isInstruction() {}
func (i *CmpStaticGtImm) String() string {
	return "CmpStaticGtImm " + regName(i.Dst) + ", #" + itoa(i.InputID)
}

func regName(r Reg) string { return "r" + itoa(int(r)) }

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// Peephole runs the three local rewrites of spec §4.4 over a linked
// instruction stream until a full pass makes no further change.
func Peephole(instrs []Instruction) []Instruction {
	for {
		next, changed := fuseStaticCmp(instrs)
		if changed {
			instrs = next
			continue
		}
		next, changed = collapseJumpChains(instrs)
		if changed {
			instrs = next
			continue
		}
		next, changed = dropOverwrittenLoads(instrs)
		if changed {
			instrs = next
			continue
		}
		break
	}
	return instrs
}

// fuseStaticCmp fuses "LoadStatic d,id ; LoadLit d2,k ; Gt d3,d,d2" into
// "CmpStaticGtImm d3,id,k" when d and d2 are dead after the comparison
// (i.e. this exact triple, with no other instruction reading d or d2 past
// this point).
func fuseStaticCmp(instrs []Instruction) ([]Instruction, bool) {
	for i := 0; i+2 < len(instrs); i++ {
		ls, ok1 := instrs[i].(*LoadStatic)
		ll, ok2 := instrs[i+1].(*LoadLit)
		gt, ok3 := instrs[i+2].(*Cmp)
		if !ok1 || !ok2 || !ok3 || gt.Op != ">" || gt.A != ls.Dst || gt.B != ll.Dst {
			continue
		}
		k, isNum := ll.Value.Number()
		if !isNum {
			continue
		}
		if regReadAfter(instrs[i+3:], ls.Dst) || regReadAfter(instrs[i+3:], ll.Dst) {
			continue
		}
		fused := &CmpStaticGtImm{Dst: gt.Dst, InputID: ls.InputID, K: k}
		return spliceReplace(instrs, i, 3, fused), true
	}
	return instrs, false
}

// collapseJumpChains rewrites a Jump/JumpIfTrue/JumpIfFalse whose target PC
// is itself an unconditional Jump to point directly at that Jump's target.
func collapseJumpChains(instrs []Instruction) ([]Instruction, bool) {
	changed := false
	for _, ins := range instrs {
		switch j := ins.(type) {
		case *Jump:
			if t, ok := instrs[j.Target].(*Jump); ok && j.Target != t.Target {
				j.Target = t.Target
				changed = true
			}
		case *JumpIfTrue:
			if t, ok := instrs[j.Target].(*Jump); ok {
				j.Target = t.Target
				changed = true
			}
		case *JumpIfFalse:
			if t, ok := instrs[j.Target].(*Jump); ok {
				j.Target = t.Target
				changed = true
			}
		}
	}
	return instrs, changed
}

// dropOverwrittenLoads removes a Load* instruction whose destination
// register is overwritten by the very next instruction without having been
// read by anything in between (a dead store).
func dropOverwrittenLoads(instrs []Instruction) ([]Instruction, bool) {
	for i := 0; i+1 < len(instrs); i++ {
		dst, ok := loadDst(instrs[i])
		if !ok {
			continue
		}
		nextDst, ok := anyDst(instrs[i+1])
		if !ok || nextDst != dst {
			continue
		}
		if instructionReads(instrs[i+1], dst) {
			continue
		}
		return spliceRemove(instrs, i, 1), true
	}
	return instrs, false
}

// spliceReplace removes the count instructions at index i and puts repl in
// their place (repl occupies exactly one slot), shifting every jump target
// that pointed past the removed range by -(count-1) and leaving targets
// pointing before i untouched. No removed instruction may itself be a
// jump target (true for the fixed-shape triples this pass matches).
func spliceReplace(instrs []Instruction, i, count int, repl Instruction) []Instruction {
	out := make([]Instruction, 0, len(instrs)-count+1)
	out = append(out, instrs[:i]...)
	out = append(out, repl)
	out = append(out, instrs[i+count:]...)
	shiftJumpTargets(out, i+1, count-1)
	return out
}

// spliceRemove removes the count instructions at index i, shifting every
// jump target past the removed range by -count.
func spliceRemove(instrs []Instruction, i, count int) []Instruction {
	out := make([]Instruction, 0, len(instrs)-count)
	out = append(out, instrs[:i]...)
	out = append(out, instrs[i+count:]...)
	shiftJumpTargets(out, i, count)
	return out
}

// shiftJumpTargets decrements by delta every jump target in out (still
// holding its pre-splice value) that lies at or past threshold+delta — i.e.
// every target that referred to an instruction after the removed range in
// the pre-splice stream. Targets below that are left unchanged.
func shiftJumpTargets(out []Instruction, threshold, delta int) {
	if delta == 0 {
		return
	}
	adjust := func(t int) int {
		if t >= threshold+delta {
			return t - delta
		}
		return t
	}
	for _, ins := range out {
		switch j := ins.(type) {
		case *Jump:
			j.Target = adjust(j.Target)
		case *JumpIfTrue:
			j.Target = adjust(j.Target)
		case *JumpIfFalse:
			j.Target = adjust(j.Target)
		}
	}
}

func loadDst(ins Instruction) (Reg, bool) {
	switch i := ins.(type) {
	case *LoadLit:
		return i.Dst, true
	case *LoadStatic:
		return i.Dst, true
	case *LoadDyn:
		return i.Dst, true
	default:
		return 0, false
	}
}

func anyDst(ins Instruction) (Reg, bool) {
	switch i := ins.(type) {
	case *LoadLit:
		return i.Dst, true
	case *LoadStatic:
		return i.Dst, true
	case *LoadDyn:
		return i.Dst, true
	case *Arith:
		return i.Dst, true
	case *Cmp:
		return i.Dst, true
	case *NotInstr:
		return i.Dst, true
	case *Call:
		return i.Dst, true
	case *CmpStaticGtImm:
		return i.Dst, true
	default:
		return 0, false
	}
}

func instructionReads(ins Instruction, r Reg) bool {
	switch i := ins.(type) {
	case *Arith:
		return i.A == r || i.B == r
	case *Cmp:
		return i.A == r || i.B == r
	case *NotInstr:
		return i.A == r
	case *JumpIfFalse:
		return i.Cond == r
	case *JumpIfTrue:
		return i.Cond == r
	case *Return:
		return i.Src == r
	default:
		return false
	}
}

// regReadAfter reports whether any instruction in instrs reads register r.
func regReadAfter(instrs []Instruction, r Reg) bool {
	for _, ins := range instrs {
		if instructionReads(ins, r) {
			return true
		}
	}
	return false
}
