package stresstest

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRun(name string, started time.Time) *Run {
	return &Run{
		ScenarioName: name,
		Mode:         ModeBasic,
		BaseURL:      "http://localhost:3000",
		StartedAt:    started,
		Status:       StatusRunning,
		TotalOrders:  6,
	}
}

func TestManager_RunLifecycle(t *testing.T) {
	m := createTestManager(t)

	run := newRun("default", time.Now())
	require.NoError(t, m.CreateRun(run))
	require.NotZero(t, run.ID)

	got, err := m.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, "default", got.ScenarioName)
	assert.True(t, got.IsRunning())
	assert.Nil(t, got.CompletedAt)

	done := time.Now()
	run.CompletedAt = &done
	run.Status = StatusCompleted
	run.TotalSent, run.TotalCompleted = 6, 6
	run.TotalAccepted, run.TotalRejected = 3, 3
	run.AvgDurationMs, run.P95DurationMs = 12.5, 30
	require.NoError(t, m.UpdateRun(run))

	got, err = m.GetRun(run.ID)
	require.NoError(t, err)
	assert.True(t, got.IsCompleted())
	require.NotNil(t, got.CompletedAt)
	assert.WithinDuration(t, done, *got.CompletedAt, time.Millisecond)
	assert.Equal(t, 3, got.TotalAccepted)
	assert.Equal(t, 3, got.TotalRejected)
	assert.InDelta(t, 12.5, got.AvgDurationMs, 0.001)
	assert.Equal(t, int64(30), got.P95DurationMs)
}

func TestManager_ResultsAndDelete(t *testing.T) {
	m := createTestManager(t)

	run := newRun("default", time.Now())
	require.NoError(t, m.CreateRun(run))

	results := []*Result{
		{RunID: run.ID, Seq: 2, CaseName: "multi-item", Payload: `[{"id":2,"quantity":3}]`, StatusCode: 200, Body: `{"success":true}`, Outcome: OutcomeAccepted, Timestamp: time.Now()},
		{RunID: run.ID, Seq: 1, CaseName: "single-item", Payload: `[{"id":1,"quantity":1}]`, Error: "connection refused", Outcome: OutcomeError, Timestamp: time.Now()},
	}
	require.NoError(t, m.SaveResultsBatch(results))
	require.NoError(t, m.SaveResultsBatch(nil))

	got, err := m.GetResults(run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// arrival order, not launch order
	assert.Equal(t, 2, got[0].Seq)
	assert.Equal(t, OutcomeAccepted, got[0].Outcome)
	assert.Equal(t, "connection refused", got[1].Error)
	assert.Equal(t, OutcomeError, got[1].Outcome)

	require.NoError(t, m.DeleteRun(run.ID))
	_, err = m.GetRun(run.ID)
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.Equal(t, 0, getResultsCount(t, m, run.ID))

	assert.ErrorIs(t, m.DeleteRun(run.ID), ErrRunNotFound)
}

func TestManager_ResultsKeepQueryProjection(t *testing.T) {
	m := createTestManager(t)

	run := newRun("default", time.Now())
	require.NoError(t, m.CreateRun(run))

	results := []*Result{
		{RunID: run.ID, Seq: 1, CaseName: "single-item", Payload: `[{"id":1,"quantity":1}]`, StatusCode: 200,
			Body: `{"success":true,"orderId":1001}`, Query: "1001", Outcome: OutcomeAccepted, Timestamp: time.Now()},
		{RunID: run.ID, Seq: 2, CaseName: "html", Payload: `[]`, StatusCode: 502,
			Body: "<html>Bad Gateway</html>", QueryError: "invalid JSON: unexpected character", Outcome: OutcomeRejected, Timestamp: time.Now()},
	}
	require.NoError(t, m.SaveResultsBatch(results))

	got, err := m.GetResults(run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "1001", got[0].Query)
	assert.Equal(t, `Order [{"id":1,"quantity":1}] → 1001`, got[0].Line())
	assert.Empty(t, got[1].Query)
	assert.Equal(t, "invalid JSON: unexpected character", got[1].QueryError)
	assert.Equal(t, "Order [] → HTTP 502: <html>Bad Gateway</html>", got[1].Line())
}

func TestManager_ListRuns(t *testing.T) {
	m := createTestManager(t)

	base := time.Now().Add(-time.Hour)
	for i, name := range []string{"first", "second", "third"} {
		require.NoError(t, m.CreateRun(newRun(name, base.Add(time.Duration(i)*time.Minute))))
	}

	runs, err := m.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "third", runs[0].ScenarioName)
	assert.Equal(t, "first", runs[2].ScenarioName)

	runs, err = m.ListRuns(2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestManager_ReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orderstress.db")

	m, err := NewManager(path)
	require.NoError(t, err)
	run := newRun("persisted", time.Now())
	require.NoError(t, m.CreateRun(run))
	require.NoError(t, m.Close())

	m, err = NewManager(path)
	require.NoError(t, err)
	defer m.Close()

	got, err := m.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.ScenarioName)
}
