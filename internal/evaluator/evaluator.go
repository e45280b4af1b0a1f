// Package evaluator implements the cross-product arbitration driver of
// spec §4.7: it iterates compiled paths in ascending quality.priority
// order, enumerates the Cartesian product of each path's dynamic
// footprint, and reports the first quality whose path evaluates to true.
// Two backends share this driver: BytecodeEvaluator runs compiled paths
// through the register VM, InterpreterEvaluator walks Expression trees
// directly. Both must return identical quality_name/quality_priority for
// the same (recipe, data) (spec §8, backend parity).
package evaluator

import (
	"fmt"
	"sort"
	"time"

	"hantei/internal/bytecode"
	"hantei/internal/expr"
	"hantei/internal/flow"
	"hantei/internal/herrors"
	"hantei/internal/interpreter"
	"hantei/internal/obslog"
	"hantei/internal/optimizer"
	"hantei/internal/value"
	"hantei/internal/vm"
)

// Result is the outcome of one Evaluate call (spec §4.7, §6).
type Result struct {
	QualityName     *string
	QualityPriority *int
	Reason          string
}

func noTrigger() Result {
	return Result{Reason: "no quality triggered"}
}

// DynamicData is one event type's ordered list of instances, each a
// case_name -> Value map, as produced by jsonflow.ConvertSampleData.
type DynamicData map[string][]map[string]value.Value

// BytecodeEvaluator evaluates a compiled bytecode.Program through a reused
// vm.VM, resetting its subroutine cache once at the start of each Evaluate.
type BytecodeEvaluator struct {
	prog  *bytecode.Program
	vm    *vm.VM
	order []int
	log   *obslog.Logger
}

// NewBytecodeEvaluator builds an evaluator for prog, precomputing the
// ascending-priority path order once.
func NewBytecodeEvaluator(prog *bytecode.Program) *BytecodeEvaluator {
	return &BytecodeEvaluator{
		prog:  prog,
		vm:    vm.New(prog.Pool),
		order: priorityOrder(len(prog.Paths), func(i int) int { return prog.Paths[i].Quality.Priority }),
	}
}

// WithLogger attaches an observability sink; nil (the default) disables
// logging entirely.
func (be *BytecodeEvaluator) WithLogger(l *obslog.Logger) *BytecodeEvaluator {
	be.log = l
	return be
}

// Evaluate runs the compiled paths in ascending priority order against the
// given static and dynamic data, returning the first triggering quality.
func (be *BytecodeEvaluator) Evaluate(staticData map[string]value.Value, dynamicData DynamicData) (Result, error) {
	start := time.Now()
	statics, err := resolveStatics(be.prog.Inputs, staticData)
	if err != nil {
		return Result{}, err
	}
	be.vm.ResetForEval()
	for _, idx := range be.order {
		path := &be.prog.Paths[idx]
		pathStart := time.Now()
		triggered, desc, err := be.evaluatePath(path, statics, dynamicData)
		if be.log != nil {
			be.log.PathEvaluated(path.Quality.Name, path.Quality.Priority, triggered, time.Since(pathStart))
		}
		if err != nil {
			return Result{}, err
		}
		if triggered {
			result := resultFor(path.Quality, desc)
			if be.log != nil {
				be.log.Result(result.QualityName, result.QualityPriority, result.Reason, time.Since(start))
			}
			return result, nil
		}
	}
	result := noTrigger()
	if be.log != nil {
		be.log.Result(nil, nil, result.Reason, time.Since(start))
	}
	return result, nil
}

func (be *BytecodeEvaluator) evaluatePath(path *bytecode.Path, statics []value.Value, dynamicData DynamicData) (bool, string, error) {
	if path.IsStatic() {
		ok, err := be.runBool(path, statics, nil)
		if err != nil {
			return false, "", err
		}
		return ok, "", nil
	}

	lens, err := footprintLengths(path.Footprint, dynamicData)
	if err != nil {
		return false, "", err
	}

	triggered, indices, err := forEachCombination(lens, func(indices []int) (bool, error) {
		binding, err := buildBinding(be.prog.Inputs, dynamicData, path.Footprint, indices)
		if err != nil {
			return false, err
		}
		return be.runBool(path, statics, binding)
	})
	if err != nil {
		return false, "", err
	}
	if !triggered {
		return false, "", nil
	}
	return true, describeIndices(path.Footprint, indices), nil
}

func (be *BytecodeEvaluator) runBool(path *bytecode.Path, statics []value.Value, binding vm.Binding) (bool, error) {
	v, err := be.vm.Run(path, statics, binding)
	if err != nil {
		return false, err
	}
	b, ok := v.Bool()
	if !ok {
		return false, herrors.NewTypeMismatch(fmt.Sprintf("path %q did not evaluate to Bool", path.Quality.Name))
	}
	return b, nil
}

// InterpreterEvaluator evaluates an optimizer.Program directly, via a
// reused interpreter.Interpreter.
type InterpreterEvaluator struct {
	prog  *optimizer.Program
	it    *interpreter.Interpreter
	order []int
	log   *obslog.Logger
}

// NewInterpreterEvaluator builds an evaluator for prog.
func NewInterpreterEvaluator(prog *optimizer.Program) *InterpreterEvaluator {
	return &InterpreterEvaluator{
		prog:  prog,
		it:    interpreter.New(prog.Pool),
		order: priorityOrder(len(prog.Paths), func(i int) int { return prog.Paths[i].Quality.Priority }),
	}
}

// WithLogger attaches an observability sink; nil (the default) disables
// logging entirely.
func (ie *InterpreterEvaluator) WithLogger(l *obslog.Logger) *InterpreterEvaluator {
	ie.log = l
	return ie
}

// Evaluate runs the optimizer's paths in ascending priority order.
func (ie *InterpreterEvaluator) Evaluate(staticData map[string]value.Value, dynamicData DynamicData) (Result, error) {
	start := time.Now()
	ie.it.ResetForEval()
	for _, idx := range ie.order {
		path := ie.prog.Paths[idx]
		pathStart := time.Now()
		triggered, reason, err := ie.evaluatePath(path, staticData, dynamicData)
		if ie.log != nil {
			ie.log.PathEvaluated(path.Quality.Name, path.Quality.Priority, triggered, time.Since(pathStart))
		}
		if err != nil {
			return Result{}, err
		}
		if triggered {
			result := resultFor(path.Quality, reason)
			if ie.log != nil {
				ie.log.Result(result.QualityName, result.QualityPriority, result.Reason, time.Since(start))
			}
			return result, nil
		}
	}
	result := noTrigger()
	if ie.log != nil {
		ie.log.Result(nil, nil, result.Reason, time.Since(start))
	}
	return result, nil
}

func (ie *InterpreterEvaluator) evaluatePath(path *optimizer.Path, staticData map[string]value.Value, dynamicData DynamicData) (bool, string, error) {
	footprint := expr.EventTypesInOrder(path.Expr)
	if len(footprint) == 0 {
		ok, reason, err := ie.it.Decide(path.Expr, &interpreter.Env{Statics: staticData})
		if err != nil {
			return false, "", err
		}
		return ok, reason, nil
	}

	lens, err := footprintLengths(footprint, dynamicData)
	if err != nil {
		return false, "", err
	}

	var reason string
	triggered, indices, err := forEachCombination(lens, func(indices []int) (bool, error) {
		binding := make(map[string]map[string]value.Value, len(footprint))
		for i, eventType := range footprint {
			binding[eventType] = dynamicData[eventType][indices[i]]
		}
		ok, r, err := ie.it.Decide(path.Expr, &interpreter.Env{Statics: staticData, Binding: binding})
		if err != nil {
			return false, err
		}
		if ok {
			reason = r
		}
		return ok, nil
	})
	if err != nil {
		return false, "", err
	}
	if !triggered {
		return false, "", nil
	}
	return true, fmt.Sprintf("%s (%s)", reason, describeIndices(footprint, indices)), nil
}

// --- shared helpers ---

func resultFor(q flow.Quality, desc string) Result {
	name := q.Name
	priority := q.Priority
	reason := fmt.Sprintf("%s triggered by %s", name, desc)
	if desc == "" {
		reason = fmt.Sprintf("%s triggered", name)
	}
	return Result{QualityName: &name, QualityPriority: &priority, Reason: reason}
}

// priorityOrder returns indices [0,n) sorted ascending by priorityOf(i),
// ties broken by original index (stable), per spec §3 "first triggered by
// priority wins ties".
func priorityOrder(n int, priorityOf func(int) int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return priorityOf(order[i]) < priorityOf(order[j])
	})
	return order
}

func resolveStatics(inputs *bytecode.InputTable, staticData map[string]value.Value) ([]value.Value, error) {
	statics := make([]value.Value, len(inputs.Statics))
	for i, name := range inputs.Statics {
		v, ok := staticData[name]
		if !ok {
			return nil, herrors.NewInputNotFound(name)
		}
		statics[i] = v
	}
	return statics, nil
}

// footprintLengths resolves each event type in footprint to the length of
// its instance array, erroring if the event type is absent from
// dynamicData entirely (spec §7: input-not-found). A present-but-empty
// array is not an error; forEachCombination treats a zero length as an
// immediate non-trigger (spec §8 property 5, empty-event skip).
func footprintLengths(footprint []string, dynamicData DynamicData) ([]int, error) {
	lens := make([]int, len(footprint))
	for i, eventType := range footprint {
		instances, ok := dynamicData[eventType]
		if !ok {
			return nil, herrors.NewInputNotFound(eventType)
		}
		lens[i] = len(instances)
	}
	return lens, nil
}

// buildBinding converts the chosen instance at each footprint position into
// a vm.Binding indexed by the compiled program's integer event/case ids.
func buildBinding(inputs *bytecode.InputTable, dynamicData DynamicData, footprint []string, indices []int) (vm.Binding, error) {
	binding := make(vm.Binding, len(inputs.Events))
	for i, eventType := range footprint {
		eventID, ok := inputs.EventID(eventType)
		if !ok {
			continue
		}
		instance := dynamicData[eventType][indices[i]]
		cases := inputs.Cases[eventID]
		vals := make([]value.Value, len(cases))
		for ci, caseName := range cases {
			v, ok := instance[caseName]
			if !ok {
				return nil, herrors.NewInputNotFound(eventType + "." + caseName)
			}
			vals[ci] = v
		}
		binding[eventID] = vals
	}
	return binding, nil
}

// forEachCombination enumerates the Cartesian product of lens in
// lexicographic order (the first entry is the slowest-varying, matching
// spec §4.7's "e₁…eₖ ordered by first-occurrence"), calling try with the
// chosen index per position. Enumeration stops at the first true result.
// A zero-length lens entry short-circuits to false with zero evaluations.
func forEachCombination(lens []int, try func(indices []int) (bool, error)) (bool, []int, error) {
	for _, n := range lens {
		if n == 0 {
			return false, nil, nil
		}
	}
	indices := make([]int, len(lens))
	if len(lens) == 0 {
		ok, err := try(indices)
		if err != nil {
			return false, nil, err
		}
		return ok, indices, nil
	}

	total := 1
	for _, n := range lens {
		total *= n
	}
	for c := 0; c < total; c++ {
		rem := c
		for i := len(lens) - 1; i >= 0; i-- {
			indices[i] = rem % lens[i]
			rem /= lens[i]
		}
		ok, err := try(indices)
		if err != nil {
			return false, nil, err
		}
		if ok {
			return true, append([]int(nil), indices...), nil
		}
	}
	return false, nil, nil
}

func describeIndices(footprint []string, indices []int) string {
	s := ""
	for i, eventType := range footprint {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s[%d]", eventType, indices[i])
	}
	return s
}
