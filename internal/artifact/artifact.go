// Package artifact implements the versioned binary CompiledRecipe format of
// spec §6: magic "HNTI", a u16 format version, the input-id table, the
// subroutine pool, and per-quality entries, so a compiled recipe can be
// loaded and evaluated without re-running the frontend or optimizer.
package artifact

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"hantei/internal/bytecode"
	"hantei/internal/flow"
	"hantei/internal/herrors"
	"hantei/internal/value"
)

var magic = [4]byte{'H', 'N', 'T', 'I'}

// FormatVersion is the only version this package writes and reads; a
// mismatched version byte is a hard error (spec §6: "not backward-compatible
// unless the version byte matches").
const FormatVersion uint16 = 1

// Save serializes prog to w in the CompiledRecipe binary format.
func Save(w io.Writer, prog *bytecode.Program) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(magic[:]); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, FormatVersion); err != nil {
		return err
	}
	if err := writeInputTable(bw, prog.Inputs); err != nil {
		return err
	}
	if err := writeUint32(bw, uint32(len(prog.Pool))); err != nil {
		return err
	}
	for _, r := range prog.Pool {
		if err := writeRoutine(bw, r); err != nil {
			return err
		}
	}
	if err := writeUint32(bw, uint32(len(prog.Paths))); err != nil {
		return err
	}
	for _, p := range prog.Paths {
		if err := writePath(bw, p); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Load deserializes a CompiledRecipe previously written by Save.
func Load(r io.Reader) (*bytecode.Program, error) {
	br := bufio.NewReader(r)
	var got [4]byte
	if _, err := io.ReadFull(br, got[:]); err != nil {
		return nil, &herrors.CompilationError{Stage: herrors.StageArtifact, Code: herrors.CodeTruncated, Message: "truncated magic"}
	}
	if got != magic {
		return nil, &herrors.CompilationError{Stage: herrors.StageArtifact, Code: herrors.CodeMagicMismatch, Message: fmt.Sprintf("bad magic: %q", got)}
	}
	var version uint16
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return nil, &herrors.CompilationError{Stage: herrors.StageArtifact, Code: herrors.CodeTruncated, Message: "truncated version"}
	}
	if version != FormatVersion {
		return nil, &herrors.CompilationError{Stage: herrors.StageArtifact, Code: herrors.CodeVersionMismatch, Message: fmt.Sprintf("version %d unsupported", version)}
	}

	inputs, err := readInputTable(br)
	if err != nil {
		return nil, err
	}
	poolLen, err := readUint32(br)
	if err != nil {
		return nil, err
	}
	pool := make([]bytecode.Routine, poolLen)
	for i := range pool {
		pool[i], err = readRoutine(br)
		if err != nil {
			return nil, err
		}
	}
	pathLen, err := readUint32(br)
	if err != nil {
		return nil, err
	}
	paths := make([]bytecode.Path, pathLen)
	for i := range paths {
		paths[i], err = readPath(br)
		if err != nil {
			return nil, err
		}
	}
	return &bytecode.Program{Inputs: inputs, Pool: pool, Paths: paths}, nil
}

func writeInputTable(w io.Writer, t *bytecode.InputTable) error {
	if err := writeStringSlice(w, t.Statics); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(len(t.Events))); err != nil {
		return err
	}
	for i, ev := range t.Events {
		if err := writeString(w, ev); err != nil {
			return err
		}
		if err := writeStringSlice(w, t.Cases[i]); err != nil {
			return err
		}
	}
	return nil
}

func readInputTable(r io.Reader) (*bytecode.InputTable, error) {
	t := bytecode.NewInputTable()
	statics, err := readStringSlice(r)
	if err != nil {
		return nil, truncated("statics", err)
	}
	for _, s := range statics {
		t.InternStatic(s)
	}
	eventCount, err := readUint32(r)
	if err != nil {
		return nil, truncated("event count", err)
	}
	for i := uint32(0); i < eventCount; i++ {
		eventType, err := readString(r)
		if err != nil {
			return nil, truncated("event type", err)
		}
		cases, err := readStringSlice(r)
		if err != nil {
			return nil, truncated("cases", err)
		}
		for _, c := range cases {
			t.InternEventCase(eventType, c)
		}
	}
	return t, nil
}

func writeRoutine(w io.Writer, r bytecode.Routine) error {
	if err := writeUint32(w, uint32(r.Registers)); err != nil {
		return err
	}
	return writeInstructions(w, r.Instructions)
}

func readRoutine(r io.Reader) (bytecode.Routine, error) {
	regs, err := readUint32(r)
	if err != nil {
		return bytecode.Routine{}, truncated("routine registers", err)
	}
	instrs, err := readInstructions(r)
	if err != nil {
		return bytecode.Routine{}, err
	}
	return bytecode.Routine{Registers: int(regs), Instructions: instrs}, nil
}

func writePath(w io.Writer, p bytecode.Path) error {
	if err := writeString(w, p.Quality.Name); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(p.Quality.Priority)); err != nil {
		return err
	}
	negated := byte(0)
	if p.Quality.Negated {
		negated = 1
	}
	if _, err := w.Write([]byte{negated}); err != nil {
		return err
	}
	if err := writeStringSlice(w, p.Footprint); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(p.Registers)); err != nil {
		return err
	}
	return writeInstructions(w, p.Instructions)
}

func readPath(r io.Reader) (bytecode.Path, error) {
	name, err := readString(r)
	if err != nil {
		return bytecode.Path{}, truncated("quality name", err)
	}
	priority, err := readUint32(r)
	if err != nil {
		return bytecode.Path{}, truncated("priority", err)
	}
	var negByte [1]byte
	if _, err := io.ReadFull(r, negByte[:]); err != nil {
		return bytecode.Path{}, truncated("negated flag", err)
	}
	footprint, err := readStringSlice(r)
	if err != nil {
		return bytecode.Path{}, truncated("footprint", err)
	}
	regs, err := readUint32(r)
	if err != nil {
		return bytecode.Path{}, truncated("path registers", err)
	}
	instrs, err := readInstructions(r)
	if err != nil {
		return bytecode.Path{}, err
	}
	return bytecode.Path{
		Quality:      flow.Quality{Name: name, Priority: int(priority), Negated: negByte[0] != 0},
		Registers:    int(regs),
		Instructions: instrs,
		Footprint:    footprint,
	}, nil
}

// --- low-level primitives ---

func writeUint32(w io.Writer, v uint32) error { return binary.Write(w, binary.LittleEndian, v) }

func readUint32(r io.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func writeFloat64(w io.Writer, v float64) error {
	return binary.Write(w, binary.LittleEndian, math.Float64bits(v))
}

func readFloat64(r io.Reader) (float64, error) {
	var bits uint64
	if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

func writeString(w io.Writer, s string) error {
	if err := writeUint32(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

func readString(r io.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeStringSlice(w io.Writer, ss []string) error {
	if err := writeUint32(w, uint32(len(ss))); err != nil {
		return err
	}
	for _, s := range ss {
		if err := writeString(w, s); err != nil {
			return err
		}
	}
	return nil
}

func readStringSlice(r io.Reader) ([]string, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		out[i], err = readString(r)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func writeValue(w io.Writer, v value.Value) error {
	switch v.Kind() {
	case value.Number:
		n, _ := v.Number()
		if _, err := w.Write([]byte{0}); err != nil {
			return err
		}
		return writeFloat64(w, n)
	case value.Bool:
		b, _ := v.Bool()
		tag := byte(1)
		flag := byte(0)
		if b {
			flag = 1
		}
		_, err := w.Write([]byte{tag, flag})
		return err
	default:
		_, err := w.Write([]byte{2})
		return err
	}
}

func readValue(r io.Reader) (value.Value, error) {
	var tag [1]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return value.Value{}, err
	}
	switch tag[0] {
	case 0:
		n, err := readFloat64(r)
		if err != nil {
			return value.Value{}, err
		}
		return value.NewNumber(n), nil
	case 1:
		var flag [1]byte
		if _, err := io.ReadFull(r, flag[:]); err != nil {
			return value.Value{}, err
		}
		return value.NewBool(flag[0] != 0), nil
	default:
		return value.NewNull(), nil
	}
}

func truncated(what string, err error) error {
	return &herrors.CompilationError{
		Stage:   herrors.StageArtifact,
		Code:    herrors.CodeTruncated,
		Message: fmt.Sprintf("truncated stream reading %s: %v", what, err),
	}
}
