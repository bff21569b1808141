package memory

import (
	"context"
	"testing"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createDraft(t *testing.T, store *RunStore, id string, createdAt time.Time) payroll.PayrollRun {
	t.Helper()

	run, err := store.CreateRun(context.Background(), payroll.PayrollRun{
		ID:          id,
		RunType:     payroll.RunTypeRegular,
		PeriodStart: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC),
		Status:      payroll.RunStatusDraft,
		CreatedBy:   "operator-1",
		CreatedAt:   createdAt,
	})
	require.NoError(t, err)
	return run
}

func TestRunStore_ReplaceResults_RejectsBadSetAtomically(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()
	run := createDraft(t, store, "run-1", time.Now())

	good := payroll.RunResult{Lines: []payroll.PayrollRunLine{
		{ID: "line-1", RunID: run.ID, WorkerID: "w1", GrossPay: decimal.NewFromInt(100)},
	}}
	updated, err := store.ReplaceResults(ctx, run, good)
	require.NoError(t, err)
	assert.Equal(t, payroll.RunStatusCalculated, updated.Status)
	assert.NotNil(t, updated.CalculatedAt)

	bad := payroll.RunResult{Lines: []payroll.PayrollRunLine{
		{ID: "line-2", RunID: run.ID, WorkerID: "w1", GrossPay: decimal.NewFromInt(999)},
		{ID: "line-2", RunID: run.ID, WorkerID: "w2", GrossPay: decimal.NewFromInt(999)},
	}}
	_, err = store.ReplaceResults(ctx, run, bad)
	require.Error(t, err)

	lines, err := store.GetLines(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "line-1", lines[0].ID)
}

func TestRunStore_ReplaceResults_Lifecycle(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()
	run := createDraft(t, store, "run-1", time.Now())

	_, err := store.ReplaceResults(ctx, payroll.PayrollRun{ID: "missing"}, payroll.RunResult{})
	assert.ErrorIs(t, err, payroll.ErrPayrollRunNotFound)

	_, err = store.FinalizeRun(ctx, run.ID, "approver-1", time.Now())
	assert.ErrorIs(t, err, payroll.ErrRunNotCalculated)

	_, err = store.ReplaceResults(ctx, run, payroll.RunResult{})
	require.NoError(t, err)

	finalized, err := store.FinalizeRun(ctx, run.ID, "approver-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, payroll.RunStatusFinalized, finalized.Status)

	_, err = store.FinalizeRun(ctx, run.ID, "approver-1", time.Now())
	assert.ErrorIs(t, err, payroll.ErrRunAlreadyFinalized)

	_, err = store.ReplaceResults(ctx, run, payroll.RunResult{})
	assert.ErrorIs(t, err, payroll.ErrRunFinalized)
}

func TestRunStore_ReturnsCopies(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()
	run := createDraft(t, store, "run-1", time.Now())

	_, err := store.ReplaceResults(ctx, run, payroll.RunResult{Exceptions: []payroll.PayrollRunException{
		{ID: "exc-1", RunID: run.ID, Type: payroll.ExceptionUnassignedExternalTime, Severity: payroll.SeverityWarn},
	}})
	require.NoError(t, err)

	exceptions, err := store.GetExceptions(ctx, run.ID)
	require.NoError(t, err)
	exceptions[0].Resolved = true

	again, err := store.GetExceptions(ctx, run.ID)
	require.NoError(t, err)
	assert.False(t, again[0].Resolved)
}

func TestRunStore_ListRuns(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()
	base := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	createDraft(t, store, "run-a", base)
	createDraft(t, store, "run-b", base.Add(time.Hour))
	createDraft(t, store, "run-c", base.Add(2*time.Hour))

	page1, total, err := store.ListRuns(ctx, payroll.PayrollRunFilter{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page1, 2)
	assert.Equal(t, "run-c", page1[0].ID)
	assert.Equal(t, "run-b", page1[1].ID)

	page2, _, err := store.ListRuns(ctx, payroll.PayrollRunFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, "run-a", page2[0].ID)

	page3, _, err := store.ListRuns(ctx, payroll.PayrollRunFilter{Page: 3, Limit: 2})
	require.NoError(t, err)
	assert.Empty(t, page3)
}

func TestSourceStore_Filters(t *testing.T) {
	store := NewSourceStore()
	ctx := context.Background()
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)

	store.AddWorker(payroll.Worker{ID: "w2", IsActive: true})
	store.AddWorker(payroll.Worker{ID: "w1", IsActive: true})
	store.AddWorker(payroll.Worker{ID: "w3", IsActive: false})
	store.AddHoliday(
		payroll.Holiday{Date: time.Date(2026, 6, 19, 0, 0, 0, 0, time.UTC), Name: "in"},
		payroll.Holiday{Date: time.Date(2026, 7, 3, 0, 0, 0, 0, time.UTC), Name: "out"},
	)
	store.AddAdjustment(
		payroll.Adjustment{WorkerID: "w1", PeriodStart: time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC), PeriodEnd: start},
		payroll.Adjustment{WorkerID: "w1", PeriodStart: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), PeriodEnd: time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC)},
	)
	store.AddClient("client-pto", "PTO")

	workers, err := store.ListActiveWorkers(ctx)
	require.NoError(t, err)
	require.Len(t, workers, 2)
	assert.Equal(t, "w1", workers[0].ID)

	holidays, err := store.ListHolidays(ctx, start, end)
	require.NoError(t, err)
	require.Len(t, holidays, 1)
	assert.Equal(t, "in", holidays[0].Name)

	adjustments, err := store.ListAdjustments(ctx, start, end)
	require.NoError(t, err)
	assert.Len(t, adjustments, 1)

	ids, err := store.FindClientIDsByCode(ctx, []string{"PTO", "INTERNAL"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"PTO": "client-pto"}, ids)
}
