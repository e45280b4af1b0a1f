package artifact

import (
	"fmt"
	"io"

	"hantei/internal/bytecode"
)

const (
	tagLoadLit = iota
	tagLoadStatic
	tagLoadDyn
	tagArith
	tagCmp
	tagNot
	tagJumpIfFalse
	tagJumpIfTrue
	tagJump
	tagCall
	tagReturn
	tagCmpStaticGtImm
)

func writeInstructions(w io.Writer, instrs []bytecode.Instruction) error {
	if err := writeUint32(w, uint32(len(instrs))); err != nil {
		return err
	}
	for _, ins := range instrs {
		if err := writeInstruction(w, ins); err != nil {
			return err
		}
	}
	return nil
}

func readInstructions(r io.Reader) ([]bytecode.Instruction, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, truncated("instruction count", err)
	}
	out := make([]bytecode.Instruction, n)
	for i := range out {
		out[i], err = readInstruction(r)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func writeInstruction(w io.Writer, ins bytecode.Instruction) error {
	switch i := ins.(type) {
	case *bytecode.LoadLit:
		return writeAll(w, byte(tagLoadLit), reg(i.Dst), func() error { return writeValue(w, i.Value) })
	case *bytecode.LoadStatic:
		return writeAll(w, byte(tagLoadStatic), reg(i.Dst), regU32(uint32(i.InputID)))
	case *bytecode.LoadDyn:
		return writeAll(w, byte(tagLoadDyn), reg(i.Dst), regU32(uint32(i.EventID)), regU32(uint32(i.CaseID)))
	case *bytecode.Arith:
		return writeAll(w, byte(tagArith), []byte{opCode(i.Op)}, reg(i.Dst), reg(i.A), reg(i.B))
	case *bytecode.Cmp:
		return writeAll(w, byte(tagCmp), []byte{opCode(i.Op)}, reg(i.Dst), reg(i.A), reg(i.B))
	case *bytecode.NotInstr:
		return writeAll(w, byte(tagNot), reg(i.Dst), reg(i.A))
	case *bytecode.JumpIfFalse:
		return writeAll(w, byte(tagJumpIfFalse), regU32(uint32(i.Target)), reg(i.Cond))
	case *bytecode.JumpIfTrue:
		return writeAll(w, byte(tagJumpIfTrue), regU32(uint32(i.Target)), reg(i.Cond))
	case *bytecode.Jump:
		return writeAll(w, byte(tagJump), regU32(uint32(i.Target)))
	case *bytecode.Call:
		return writeAll(w, byte(tagCall), reg(i.Dst), regU32(uint32(i.SubID)))
	case *bytecode.Return:
		return writeAll(w, byte(tagReturn), reg(i.Src))
	case *bytecode.CmpStaticGtImm:
		return writeAll(w, byte(tagCmpStaticGtImm), reg(i.Dst), regU32(uint32(i.InputID)), func() error { return writeFloat64(w, i.K) })
	default:
		return fmt.Errorf("artifact: unknown instruction type %T", ins)
	}
}

func readInstruction(r io.Reader) (bytecode.Instruction, error) {
	var tagBuf [1]byte
	if _, err := io.ReadFull(r, tagBuf[:]); err != nil {
		return nil, truncated("opcode tag", err)
	}
	switch int(tagBuf[0]) {
	case tagLoadLit:
		dst, err := readReg(r)
		if err != nil {
			return nil, err
		}
		v, err := readValue(r)
		if err != nil {
			return nil, truncated("LoadLit value", err)
		}
		return &bytecode.LoadLit{Dst: dst, Value: v}, nil
	case tagLoadStatic:
		dst, err := readReg(r)
		if err != nil {
			return nil, err
		}
		id, err := readUint32(r)
		if err != nil {
			return nil, truncated("LoadStatic id", err)
		}
		return &bytecode.LoadStatic{Dst: dst, InputID: int(id)}, nil
	case tagLoadDyn:
		dst, err := readReg(r)
		if err != nil {
			return nil, err
		}
		eid, err := readUint32(r)
		if err != nil {
			return nil, truncated("LoadDyn event id", err)
		}
		cid, err := readUint32(r)
		if err != nil {
			return nil, truncated("LoadDyn case id", err)
		}
		return &bytecode.LoadDyn{Dst: dst, EventID: int(eid), CaseID: int(cid)}, nil
	case tagArith:
		op, err := readOp(r)
		if err != nil {
			return nil, err
		}
		dst, a, b, err := readThreeRegs(r)
		if err != nil {
			return nil, err
		}
		return &bytecode.Arith{Op: op, Dst: dst, A: a, B: b}, nil
	case tagCmp:
		op, err := readOp(r)
		if err != nil {
			return nil, err
		}
		dst, a, b, err := readThreeRegs(r)
		if err != nil {
			return nil, err
		}
		return &bytecode.Cmp{Op: op, Dst: dst, A: a, B: b}, nil
	case tagNot:
		dst, err := readReg(r)
		if err != nil {
			return nil, err
		}
		a, err := readReg(r)
		if err != nil {
			return nil, err
		}
		return &bytecode.NotInstr{Dst: dst, A: a}, nil
	case tagJumpIfFalse:
		target, err := readUint32(r)
		if err != nil {
			return nil, truncated("JumpIfFalse target", err)
		}
		cond, err := readReg(r)
		if err != nil {
			return nil, err
		}
		return &bytecode.JumpIfFalse{Target: int(target), Cond: cond}, nil
	case tagJumpIfTrue:
		target, err := readUint32(r)
		if err != nil {
			return nil, truncated("JumpIfTrue target", err)
		}
		cond, err := readReg(r)
		if err != nil {
			return nil, err
		}
		return &bytecode.JumpIfTrue{Target: int(target), Cond: cond}, nil
	case tagJump:
		target, err := readUint32(r)
		if err != nil {
			return nil, truncated("Jump target", err)
		}
		return &bytecode.Jump{Target: int(target)}, nil
	case tagCall:
		dst, err := readReg(r)
		if err != nil {
			return nil, err
		}
		sub, err := readUint32(r)
		if err != nil {
			return nil, truncated("Call sub id", err)
		}
		return &bytecode.Call{Dst: dst, SubID: int(sub)}, nil
	case tagReturn:
		src, err := readReg(r)
		if err != nil {
			return nil, err
		}
		return &bytecode.Return{Src: src}, nil
	case tagCmpStaticGtImm:
		dst, err := readReg(r)
		if err != nil {
			return nil, err
		}
		id, err := readUint32(r)
		if err != nil {
			return nil, truncated("CmpStaticGtImm id", err)
		}
		k, err := readFloat64(r)
		if err != nil {
			return nil, truncated("CmpStaticGtImm literal", err)
		}
		return &bytecode.CmpStaticGtImm{Dst: dst, InputID: int(id), K: k}, nil
	default:
		return nil, fmt.Errorf("artifact: unknown opcode tag %d", tagBuf[0])
	}
}

func readThreeRegs(r io.Reader) (dst, a, b bytecode.Reg, err error) {
	if dst, err = readReg(r); err != nil {
		return
	}
	if a, err = readReg(r); err != nil {
		return
	}
	b, err = readReg(r)
	return
}

func reg(r bytecode.Reg) []byte { return regU32(uint32(r)) }

func regU32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func readReg(r io.Reader) (bytecode.Reg, error) {
	v, err := readUint32(r)
	if err != nil {
		return 0, truncated("register operand", err)
	}
	return bytecode.Reg(v), nil
}

// writeAll writes a leading tag byte followed by each remaining part, which
// may be a []byte or a func() error (for variable-width fields like Value).
func writeAll(w io.Writer, tag byte, parts ...interface{}) error {
	if _, err := w.Write([]byte{tag}); err != nil {
		return err
	}
	for _, p := range parts {
		switch v := p.(type) {
		case []byte:
			if _, err := w.Write(v); err != nil {
				return err
			}
		case func() error:
			if err := v(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("artifact: unsupported instruction part %T", p)
		}
	}
	return nil
}

func opCode(op string) byte {
	switch op {
	case "+":
		return 0
	case "-":
		return 1
	case "*":
		return 2
	case "/":
		return 3
	case ">":
		return 4
	case "<":
		return 5
	case ">=":
		return 6
	case "<=":
		return 7
	case "==":
		return 8
	case "!=":
		return 9
	default:
		return 255
	}
}

func readOp(r io.Reader) (string, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return "", truncated("operator code", err)
	}
	switch buf[0] {
	case 0:
		return "+", nil
	case 1:
		return "-", nil
	case 2:
		return "*", nil
	case 3:
		return "/", nil
	case 4:
		return ">", nil
	case 5:
		return "<", nil
	case 6:
		return ">=", nil
	case 7:
		return "<=", nil
	case 8:
		return "==", nil
	case 9:
		return "!=", nil
	default:
		return "", fmt.Errorf("artifact: unknown operator code %d", buf[0])
	}
}
