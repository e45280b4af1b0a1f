// Package obslog is the compiler and evaluator's structured logging
// wrapper: a thin field-tagging layer over logrus.Entry — one tagged
// "system" entry, one message constant per event kind, fields attached per
// call.
package obslog

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Logger tags every entry it emits with a fixed "system" field.
type Logger struct {
	entry *logrus.Entry
}

// New wraps l, tagging every entry emitted through the returned Logger with
// system.
func New(l *logrus.Logger, system string) *Logger {
	return &Logger{entry: l.WithField("system", system)}
}

// Default builds a *logrus.Logger with the package's baseline
// configuration: text formatting, INFO level, stderr output (logrus's own
// default writer).
func Default() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

const (
	msgPassApplied    = "optimizer pass applied"
	msgPipelineDone   = "optimizer pipeline reached fixed point"
	msgPathEvaluated  = "path evaluated"
	msgQualityWon     = "quality triggered"
	msgNoQualityWon   = "no quality triggered"
	msgEvaluationFail = "evaluation aborted"
)

// PassApplied logs one optimizer sweep's effect on a single pass.
func (l *Logger) PassApplied(pass string, sweep int, changed bool, nodesBefore, nodesAfter int) {
	l.entry.WithFields(logrus.Fields{
		"pass":         pass,
		"sweep":        sweep,
		"changed":      changed,
		"nodes_before": nodesBefore,
		"nodes_after":  nodesAfter,
	}).Debug(msgPassApplied)
}

// PipelineDone logs the optimizer pipeline's overall result.
func (l *Logger) PipelineDone(sweeps int, reachedCap bool) {
	l.entry.WithFields(logrus.Fields{
		"sweeps":      sweeps,
		"reached_cap": reachedCap,
	}).Info(msgPipelineDone)
}

// PathEvaluated logs one compiled path's evaluation, win or lose.
func (l *Logger) PathEvaluated(quality string, priority int, triggered bool, d time.Duration) {
	l.entry.WithFields(logrus.Fields{
		"quality":   quality,
		"priority":  priority,
		"triggered": triggered,
		"duration":  d,
	}).Debug(msgPathEvaluated)
}

// Result logs the evaluator's final arbitration outcome.
func (l *Logger) Result(qualityName *string, qualityPriority *int, reason string, d time.Duration) {
	fields := logrus.Fields{
		"reason":   reason,
		"duration": d,
	}
	if qualityName == nil {
		l.entry.WithFields(fields).Info(msgNoQualityWon)
		return
	}
	fields["quality"] = *qualityName
	fields["priority"] = *qualityPriority
	l.entry.WithFields(fields).Info(msgQualityWon)
}

// EvaluationError logs an aborted evaluation (spec §7: no later quality is
// tried after an evaluation error).
func (l *Logger) EvaluationError(err error) {
	l.entry.WithError(err).Warn(msgEvaluationFail)
}
