// Package optimizer implements the fixed-point rewrite pipeline of spec
// §4.3: constant folding, algebraic identities, comparison normalization,
// dead-branch elimination, boolean restructuring (De Morgan), and common
// subexpression elimination.
//
// Passes are pure tree-to-tree rewriters over the immutable expr.Expr tree,
// each reporting whether it changed anything so the pipeline can iterate to
// a fixed point.
package optimizer

import (
	"hantei/internal/expr"
	"hantei/internal/flow"
)

// DefaultPassCap is the fixed-point loop's iteration ceiling (spec §4.3).
const DefaultPassCap = 16

// Path is one quality's expression, tracked through the pipeline.
type Path struct {
	Quality flow.Quality
	Expr    expr.Expr
}

// Program is the full set of per-quality expressions the optimizer rewrites
// together, plus the subroutine pool CSE populates.
type Program struct {
	Paths []*Path
	Pool  []expr.Expr
}

// NewProgram builds a Program from frontend output, with an empty pool.
func NewProgram(paths []Path) *Program {
	p := &Program{Paths: make([]*Path, len(paths))}
	for i := range paths {
		path := paths[i]
		p.Paths[i] = &path
	}
	return p
}

// Pass is a single optimization transformation over the whole Program.
type Pass interface {
	Name() string
	Description() string
	// Apply rewrites p in place and reports whether anything changed.
	Apply(p *Program) bool
}

// PassLogger receives per-sweep and per-pipeline observability events.
// obslog.Logger satisfies this interface without either package importing
// the other.
type PassLogger interface {
	PassApplied(pass string, sweep int, changed bool, nodesBefore, nodesAfter int)
	PipelineDone(sweeps int, reachedCap bool)
}

// Pipeline runs a sequence of passes to a fixed point.
type Pipeline struct {
	passes []Pass
	cap    int
	logger PassLogger
}

// NewPipeline builds the default pipeline, in spec §4.3's (a)-(f) order.
func NewPipeline() *Pipeline {
	return &Pipeline{
		passes: []Pass{
			&ConstantFolding{},
			&AlgebraicIdentities{},
			&ComparisonNormalization{},
			&DeadBranchElimination{},
			&BooleanRestructuring{},
			&CommonSubexpressionElimination{},
		},
		cap: DefaultPassCap,
	}
}

// WithPassCap overrides the default pass cap (internal/config wires this
// from OptimizerConfig).
func (pl *Pipeline) WithPassCap(n int) *Pipeline {
	pl.cap = n
	return pl
}

// WithLogger attaches an observability sink; nil (the default) disables
// logging entirely.
func (pl *Pipeline) WithLogger(l PassLogger) *Pipeline {
	pl.logger = l
	return pl
}

// Run executes the pipeline to a fixed point: repeated full sweeps of every
// pass until one sweep makes no change, or the pass cap is reached. It
// returns the number of sweeps actually run.
func (pl *Pipeline) Run(p *Program) int {
	sweeps := 0
	for ; sweeps < pl.cap; sweeps++ {
		changed := false
		for _, pass := range pl.passes {
			before := totalNodes(p)
			passChanged := pass.Apply(p)
			if pl.logger != nil {
				pl.logger.PassApplied(pass.Name(), sweeps, passChanged, before, totalNodes(p))
			}
			if passChanged {
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	if pl.logger != nil {
		pl.logger.PipelineDone(sweeps, sweeps >= pl.cap)
	}
	return sweeps
}

// totalNodes sums the node count across every path's current expression
// tree, for the optimizer logger's before/after bookkeeping.
func totalNodes(p *Program) int {
	n := 0
	for _, path := range p.Paths {
		n += measure(path.Expr).nodes
	}
	return n
}

// rewriteAll applies f to every path's expression tree via expr.Fold,
// returning true if any path's canonical form changed.
func rewriteAll(p *Program, pre, post func(expr.Expr) expr.Expr) bool {
	changed := false
	for _, path := range p.Paths {
		before := canonicalKey(path.Expr)
		path.Expr = expr.Fold(path.Expr, pre, post)
		if canonicalKey(path.Expr) != before {
			changed = true
		}
	}
	return changed
}
