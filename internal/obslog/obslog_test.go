package obslog

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() (*Logger, *logrustest.Hook) {
	base, hook := logrustest.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	return New(base, "evaluator"), hook
}

func TestResultTagsEveryEntryWithSystemField(t *testing.T) {
	l, hook := newTestLogger()
	name := "TooDeep"
	priority := 1
	l.Result(&name, &priority, "TooDeep triggered by hole[0]", 2*time.Millisecond)

	require.Len(t, hook.AllEntries(), 1)
	entry := hook.LastEntry()
	assert.Equal(t, "evaluator", entry.Data["system"])
	assert.Equal(t, "TooDeep", entry.Data["quality"])
	assert.Equal(t, 1, entry.Data["priority"])
	assert.Equal(t, msgQualityWon, entry.Message)
}

func TestResultWithNoQualityLogsNoQualityWon(t *testing.T) {
	l, hook := newTestLogger()
	l.Result(nil, nil, "no quality triggered", time.Millisecond)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, msgNoQualityWon, entry.Message)
	_, hasQuality := entry.Data["quality"]
	assert.False(t, hasQuality)
}

func TestPassAppliedLogsAtDebugLevel(t *testing.T) {
	l, hook := newTestLogger()
	l.PassApplied("ConstantFolding", 0, true, 10, 7)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.DebugLevel, entry.Level)
	assert.Equal(t, "ConstantFolding", entry.Data["pass"])
	assert.Equal(t, 10, entry.Data["nodes_before"])
	assert.Equal(t, 7, entry.Data["nodes_after"])
}

func TestEvaluationErrorLogsAtWarnLevelWithError(t *testing.T) {
	l, hook := newTestLogger()
	l.EvaluationError(assert.AnError)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, msgEvaluationFail, entry.Message)
}
