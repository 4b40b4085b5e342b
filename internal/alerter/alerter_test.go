package alerter

import (
	"context"
	"errors"
	"testing"

	"FlowTagger/internal/config"
	"FlowTagger/internal/logger"
	"FlowTagger/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	subjects []string
	bodies   []string
	err      error
}

func (f *fakeNotifier) Send(subject, body string) error {
	f.subjects = append(f.subjects, subject)
	f.bodies = append(f.bodies, body)
	return f.err
}

func sampleReport() *model.Report {
	counts := model.NewCounts()
	counts.Tags["sv_P1"] = 2
	counts.Tags["email"] = 3
	counts.Tags[model.Untagged] = 5
	return &model.Report{Counts: counts, Lines: 12, Skipped: 2, Timestamp: "2026-10-17_10-00-00"}
}

func TestCheck(t *testing.T) {
	assert.True(t, check(2, 1, ">"))
	assert.False(t, check(1, 1, ">"))
	assert.True(t, check(1, 1, ">="))
	assert.True(t, check(1, 1, "="))
	assert.True(t, check(0, 1, "<"))
	assert.True(t, check(1, 1, "<="))
	assert.False(t, check(1, 1, "!="))
}

func TestNew_RejectsInvalidRules(t *testing.T) {
	log := logger.Discard()
	_, err := New(nil, &fakeNotifier{}, log)
	assert.Error(t, err)

	_, err = New([]config.AlerterRule{{Name: "r", Metric: "bytes", Operator: ">"}}, &fakeNotifier{}, log)
	assert.ErrorContains(t, err, "unknown metric")

	_, err = New([]config.AlerterRule{{Name: "r", Metric: MetricTagCount, Operator: ">"}}, &fakeNotifier{}, log)
	assert.ErrorContains(t, err, "requires a tag")

	_, err = New([]config.AlerterRule{{Name: "r", Metric: MetricTotalLines, Operator: "=>"}}, &fakeNotifier{}, log)
	assert.ErrorContains(t, err, "unknown operator")
}

func TestEvaluate(t *testing.T) {
	a, err := New([]config.AlerterRule{
		{Name: "untagged", Metric: MetricUntaggedRatio, Operator: ">", Threshold: 0.4},
		{Name: "email", Metric: MetricTagCount, Tag: "email", Operator: ">=", Threshold: 4},
		{Name: "skipped", Metric: MetricSkippedLines, Operator: "=", Threshold: 2},
		{Name: "lines", Metric: MetricTotalLines, Operator: "<", Threshold: 100},
	}, &fakeNotifier{}, logger.Discard())
	require.NoError(t, err)

	msgs := a.Evaluate(sampleReport())
	require.Len(t, msgs, 3)
	assert.Contains(t, msgs[0], "Alert: untagged")
	assert.Contains(t, msgs[0], "<code>0.5000 of classified lines</code>")
	assert.Contains(t, msgs[1], "Alert: skipped")
	assert.Contains(t, msgs[2], "Alert: lines")
	assert.Contains(t, msgs[2], "<code>12 lines</code>")
}

func TestEvaluate_EmptyReport(t *testing.T) {
	a, err := New([]config.AlerterRule{
		{Name: "untagged", Metric: MetricUntaggedRatio, Operator: ">=", Threshold: 0.1},
	}, &fakeNotifier{}, logger.Discard())
	require.NoError(t, err)

	assert.Empty(t, a.Evaluate(&model.Report{Counts: model.NewCounts()}))
}

func TestWrite(t *testing.T) {
	n := &fakeNotifier{}
	a, err := New([]config.AlerterRule{
		{Name: "untagged", Metric: MetricUntaggedRatio, Operator: ">", Threshold: 0.4},
		{Name: "quiet", Metric: MetricTagCount, Tag: "sv_P5", Operator: ">", Threshold: 0},
	}, n, logger.Discard())
	require.NoError(t, err)

	require.NoError(t, a.Write(context.Background(), sampleReport()))
	require.Len(t, n.subjects, 1)
	assert.Equal(t, "FlowTagger Alert Summary (1 Triggered)", n.subjects[0])
	assert.Contains(t, n.bodies[0], "2026-10-17_10-00-00")
	assert.NotContains(t, n.bodies[0], "quiet")

	// nothing triggers, nothing is sent
	require.NoError(t, a.Write(context.Background(), &model.Report{Counts: model.NewCounts()}))
	assert.Len(t, n.subjects, 1)
}

func TestWrite_NotifierError(t *testing.T) {
	n := &fakeNotifier{err: errors.New("smtp down")}
	a, err := New([]config.AlerterRule{
		{Name: "lines", Metric: MetricTotalLines, Operator: ">", Threshold: 0},
	}, n, logger.Discard())
	require.NoError(t, err)

	assert.ErrorContains(t, a.Write(context.Background(), sampleReport()), "smtp down")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, a.Write(ctx, sampleReport()), context.Canceled)
}
