package herrors

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Reporter renders CompilationError and EvaluationError values for CLI
// output. Unlike a textual-language compiler, a recipe has no source lines
// to annotate with a caret — nodes are identified by id (spec §7: "reported
// with the offending node id(s) and stage") — so the format favors a
// structured, colorized header over a source-excerpt view.
type Reporter struct{}

// NewReporter builds a Reporter. It holds no state; Format is pure.
func NewReporter() *Reporter { return &Reporter{} }

// Format renders a *CompilationError in an "error[CODE]: message" style,
// followed by a dim stage line and, if present, the offending node ids.
func (r *Reporter) Format(err *CompilationError) string {
	var b strings.Builder

	levelColor := color.New(color.FgRed, color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	b.WriteString(fmt.Sprintf("%s[%s]: %s\n", levelColor("error"), err.Code, err.Message))
	b.WriteString(fmt.Sprintf("  %s %s\n", dim("-->"), err.Stage))

	if len(err.NodeIDs) > 0 {
		cyan := color.New(color.FgCyan).SprintFunc()
		b.WriteString(fmt.Sprintf("  %s %s\n", dim("nodes:"), cyan(strings.Join(err.NodeIDs, ", "))))
	}

	return b.String()
}

// FormatEvaluation renders an *EvaluationError the same way, without a
// stage line (evaluation errors are not stage-scoped).
func (r *Reporter) FormatEvaluation(err *EvaluationError) string {
	levelColor := color.New(color.FgRed, color.Bold).SprintFunc()
	return fmt.Sprintf("%s[%s]: %s\n", levelColor("error"), err.Code, err.Message)
}
