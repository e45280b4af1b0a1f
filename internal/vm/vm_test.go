package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hantei/internal/bytecode"
	"hantei/internal/expr"
	"hantei/internal/flow"
	"hantei/internal/optimizer"
	"hantei/internal/value"
)

func TestRunEvaluatesLoadLitAndReturn(t *testing.T) {
	path := &bytecode.Path{
		Registers: 1,
		Instructions: []bytecode.Instruction{
			&bytecode.LoadLit{Dst: 0, Value: value.NewBool(true)},
			&bytecode.Return{Src: 0},
		},
	}
	m := New(nil)
	v, err := m.Run(path, nil, nil)
	require.NoError(t, err)
	b, ok := v.Bool()
	require.True(t, ok)
	assert.True(t, b)
}

func TestRunReadsStaticAndDynamicInputs(t *testing.T) {
	path := &bytecode.Path{
		Registers: 3,
		Instructions: []bytecode.Instruction{
			&bytecode.LoadStatic{Dst: 0, InputID: 0},
			&bytecode.LoadDyn{Dst: 1, EventID: 0, CaseID: 0},
			&bytecode.Arith{Op: "+", Dst: 2, A: 0, B: 1},
			&bytecode.Return{Src: 2},
		},
	}
	m := New(nil)
	statics := []value.Value{value.NewNumber(10)}
	binding := Binding{{value.NewNumber(5)}}
	v, err := m.Run(path, statics, binding)
	require.NoError(t, err)
	n, ok := v.Number()
	require.True(t, ok)
	assert.Equal(t, 15.0, n)
}

func TestRunDivideByZeroReturnsEvaluationError(t *testing.T) {
	path := &bytecode.Path{
		Registers: 3,
		Instructions: []bytecode.Instruction{
			&bytecode.LoadLit{Dst: 0, Value: value.NewNumber(10)},
			&bytecode.LoadLit{Dst: 1, Value: value.NewNumber(0)},
			&bytecode.Arith{Op: "/", Dst: 2, A: 0, B: 1},
			&bytecode.Return{Src: 2},
		},
	}
	m := New(nil)
	_, err := m.Run(path, nil, nil)
	require.Error(t, err)
}

func TestCallMemoizesSubroutineResultWithinOneEval(t *testing.T) {
	pool := []bytecode.Routine{
		{
			Registers: 1,
			Instructions: []bytecode.Instruction{
				&bytecode.LoadLit{Dst: 0, Value: value.NewNumber(7)},
				&bytecode.Return{Src: 0},
			},
		},
	}
	path := &bytecode.Path{
		Registers: 3,
		Instructions: []bytecode.Instruction{
			&bytecode.Call{Dst: 0, SubID: 0},
			&bytecode.Call{Dst: 1, SubID: 0},
			&bytecode.Arith{Op: "+", Dst: 2, A: 0, B: 1},
			&bytecode.Return{Src: 2},
		},
	}
	m := New(pool)
	v, err := m.Run(path, nil, nil)
	require.NoError(t, err)
	n, _ := v.Number()
	assert.Equal(t, 14.0, n)
}

func TestResetForEvalClearsSubroutineCacheBetweenEvaluations(t *testing.T) {
	pool := []bytecode.Routine{
		{
			Registers: 1,
			Instructions: []bytecode.Instruction{
				&bytecode.LoadStatic{Dst: 0, InputID: 0},
				&bytecode.Return{Src: 0},
			},
		},
	}
	path := &bytecode.Path{
		Registers: 1,
		Instructions: []bytecode.Instruction{
			&bytecode.Call{Dst: 0, SubID: 0},
			&bytecode.Return{Src: 0},
		},
	}
	m := New(pool)

	m.ResetForEval()
	v1, err := m.Run(path, []value.Value{value.NewNumber(1)}, nil)
	require.NoError(t, err)
	n1, _ := v1.Number()
	assert.Equal(t, 1.0, n1)

	m.ResetForEval()
	v2, err := m.Run(path, []value.Value{value.NewNumber(2)}, nil)
	require.NoError(t, err)
	n2, _ := v2.Number()
	assert.Equal(t, 2.0, n2)
}

func TestRunReusesRegisterBufferAcrossCallsWithoutLeakingStaleValues(t *testing.T) {
	// First path uses 3 registers and leaves nonzero values behind; the
	// second reuses a single register the VM's buffer already backs, and
	// must not see the first run's leftovers.
	wide := &bytecode.Path{
		Registers: 3,
		Instructions: []bytecode.Instruction{
			&bytecode.LoadLit{Dst: 0, Value: value.NewNumber(11)},
			&bytecode.LoadLit{Dst: 1, Value: value.NewNumber(22)},
			&bytecode.LoadLit{Dst: 2, Value: value.NewNumber(33)},
			&bytecode.Return{Src: 2},
		},
	}
	narrow := &bytecode.Path{
		Registers: 1,
		Instructions: []bytecode.Instruction{
			&bytecode.LoadStatic{Dst: 0, InputID: 0},
			&bytecode.Return{Src: 0},
		},
	}

	m := New(nil)
	_, err := m.Run(wide, nil, nil)
	require.NoError(t, err)

	v, err := m.Run(narrow, []value.Value{value.NewNumber(5)}, nil)
	require.NoError(t, err)
	n, ok := v.Number()
	require.True(t, ok)
	assert.Equal(t, 5.0, n)
}

func TestShortCircuitAndSkipsRightOperandOnFalseLeft(t *testing.T) {
	e := expr.NewBinary(expr.KindAnd,
		expr.NewBinary(expr.KindGt, expr.NewInput(expr.StaticSource("x")), expr.NewLiteral(value.NewNumber(100))),
		expr.NewBinary(expr.KindDiv, expr.NewLiteral(value.NewNumber(1)), expr.NewLiteral(value.NewNumber(0))))
	opt := optimizer.NewProgram([]optimizer.Path{{Quality: flow.Quality{Name: "Q", Priority: 1}, Expr: e}})
	prog := bytecode.Compile(opt)

	m := New(prog.Pool)
	v, err := m.Run(&prog.Paths[0], []value.Value{value.NewNumber(1)}, nil)
	require.NoError(t, err, "the right-hand Div-by-zero must never execute once the left Gt is false")
	b, ok := v.Bool()
	require.True(t, ok)
	assert.False(t, b)
}
