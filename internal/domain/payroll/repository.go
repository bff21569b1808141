package payroll

import (
	"context"
	"time"
)

// RunRepository persists payroll runs and their derived result sets.
type RunRepository interface {
	// Runs
	CreateRun(ctx context.Context, run PayrollRun) (PayrollRun, error)
	GetRunByID(ctx context.Context, id string) (PayrollRun, error)
	ListRuns(ctx context.Context, filter PayrollRunFilter) ([]PayrollRun, int64, error)

	// Results
	GetLines(ctx context.Context, runID string) ([]PayrollRunLine, error)
	GetExceptions(ctx context.Context, runID string) ([]PayrollRunException, error)

	// ReplaceResults discards the run's lines and exceptions and stores result
	// in their place, marking the run calculated. All-or-nothing: on error the
	// previous result set is left intact. Calls for the same run are
	// serialized. Returns ErrRunFinalized for finalized runs.
	ReplaceResults(ctx context.Context, run PayrollRun, result RunResult) (PayrollRun, error)

	// Transitions
	FinalizeRun(ctx context.Context, runID string, finalizedBy string, finalizedAt time.Time) (PayrollRun, error)
	ResolveException(ctx context.Context, runID, exceptionID, resolvedBy string, note *string, resolvedAt time.Time) (PayrollRunException, error)
}

// SourceRepository reads the collaborator data a calculation pass consumes.
// Period bounds are inclusive dates.
type SourceRepository interface {
	ListActiveWorkers(ctx context.Context) ([]Worker, error)
	ListInternalTime(ctx context.Context, start, end time.Time) ([]InternalTimeRecord, error)
	ListExternalTime(ctx context.Context, start, end time.Time) ([]ExternalTimeRecord, error)
	// ListAdjustments returns adjustments whose own period overlaps [start, end].
	ListAdjustments(ctx context.Context, start, end time.Time) ([]Adjustment, error)
	ListHolidays(ctx context.Context, start, end time.Time) ([]Holiday, error)
	// FindClientIDsByCode maps each known client code to its id; unknown codes are omitted.
	FindClientIDsByCode(ctx context.Context, codes []string) (map[string]string, error)
}
