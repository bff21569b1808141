package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
	"github.com/jackc/pgx/v5"
)

type payrollRunRepository struct {
	db *database.DB
}

func NewPayrollRunRepository(db *database.DB) payroll.RunRepository {
	return &payrollRunRepository{db: db}
}

const runColumns = `
	id, run_type, period_start, period_end, include_submitted, status,
	created_by, created_at, updated_at, calculated_at, finalized_by, finalized_at,
	tolerance_hours, activity_threshold
`

func scanRun(row pgx.Row) (payroll.PayrollRun, error) {
	var r payroll.PayrollRun
	err := row.Scan(
		&r.ID, &r.RunType, &r.PeriodStart, &r.PeriodEnd, &r.IncludeSubmitted, &r.Status,
		&r.CreatedBy, &r.CreatedAt, &r.UpdatedAt, &r.CalculatedAt, &r.FinalizedBy, &r.FinalizedAt,
		&r.ToleranceHours, &r.ActivityThreshold,
	)
	return r, err
}

// ========== RUNS ==========

func (r *payrollRunRepository) CreateRun(ctx context.Context, run payroll.PayrollRun) (payroll.PayrollRun, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO payroll_runs (id, run_type, period_start, period_end, include_submitted, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + runColumns

	created, err := scanRun(q.QueryRow(ctx, query,
		run.ID, run.RunType, run.PeriodStart, run.PeriodEnd, run.IncludeSubmitted, run.Status, run.CreatedBy,
	))
	if err != nil {
		return payroll.PayrollRun{}, fmt.Errorf("failed to create payroll run: %w", err)
	}

	return created, nil
}

func (r *payrollRunRepository) GetRunByID(ctx context.Context, id string) (payroll.PayrollRun, error) {
	if !validator.IsValidUUID(id) {
		return payroll.PayrollRun{}, payroll.ErrPayrollRunNotFound
	}
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + runColumns + ` FROM payroll_runs WHERE id = $1`

	run, err := scanRun(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.PayrollRun{}, payroll.ErrPayrollRunNotFound
		}
		return payroll.PayrollRun{}, fmt.Errorf("failed to get payroll run: %w", err)
	}

	return run, nil
}

func (r *payrollRunRepository) ListRuns(ctx context.Context, filter payroll.PayrollRunFilter) ([]payroll.PayrollRun, int64, error) {
	q := GetQuerier(ctx, r.db)
	filter.Normalize()

	baseWhere := "WHERE 1=1"
	args := []interface{}{}
	argIdx := 1

	if filter.Status != nil {
		baseWhere += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, *filter.Status)
		argIdx++
	}

	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM payroll_runs %s", baseWhere)
	if err := q.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count payroll runs: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM payroll_runs %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, runColumns, baseWhere, argIdx, argIdx+1)
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list payroll runs: %w", err)
	}
	defer rows.Close()

	runs := []payroll.PayrollRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan payroll run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate payroll runs: %w", err)
	}

	return runs, total, nil
}

// ========== RESULTS ==========

func (r *payrollRunRepository) GetLines(ctx context.Context, runID string) ([]payroll.PayrollRunLine, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT l.id, l.run_id, l.worker_id, l.pay_model, l.rate,
			   l.expected_days, l.expected_hours, l.time_off_days, l.holiday_days,
			   l.approved_hours, l.submitted_hours, l.payable_hours, l.logged_hours, l.internal_work_hours,
			   l.external_hours, l.avg_activity_pct,
			   l.reimbursements, l.deductions, l.catch_up_hours, l.gross_pay, l.net_pay,
			   w.name
		FROM payroll_run_lines l
		LEFT JOIN workers w ON w.id = l.worker_id
		WHERE l.run_id = $1
		ORDER BY l.worker_id
	`

	rows, err := q.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payroll run lines: %w", err)
	}
	defer rows.Close()

	lines := []payroll.PayrollRunLine{}
	for rows.Next() {
		var l payroll.PayrollRunLine
		if err := rows.Scan(
			&l.ID, &l.RunID, &l.WorkerID, &l.PayModel, &l.Rate,
			&l.ExpectedDays, &l.ExpectedHours, &l.TimeOffDays, &l.HolidayDays,
			&l.ApprovedHours, &l.SubmittedHours, &l.PayableHours, &l.LoggedHours, &l.InternalWorkHours,
			&l.ExternalHours, &l.AvgActivityPct,
			&l.Reimbursements, &l.Deductions, &l.CatchUpHours, &l.GrossPay, &l.NetPay,
			&l.WorkerName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan payroll run line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payroll run lines: %w", err)
	}

	return lines, nil
}

func (r *payrollRunRepository) GetExceptions(ctx context.Context, runID string) ([]payroll.PayrollRunException, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, run_id, worker_id, type, severity, source, portal_hours, external_hours,
			   details, resolved, resolved_by, resolved_at, resolution_note
		FROM payroll_run_exceptions
		WHERE run_id = $1
		ORDER BY seq
	`

	rows, err := q.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payroll run exceptions: %w", err)
	}
	defer rows.Close()

	exceptions := []payroll.PayrollRunException{}
	for rows.Next() {
		e, err := scanException(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payroll run exception: %w", err)
		}
		exceptions = append(exceptions, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payroll run exceptions: %w", err)
	}

	return exceptions, nil
}

func scanException(row pgx.Row) (payroll.PayrollRunException, error) {
	var e payroll.PayrollRunException
	err := row.Scan(
		&e.ID, &e.RunID, &e.WorkerID, &e.Type, &e.Severity, &e.Source, &e.PortalHours, &e.ExternalHours,
		&e.Details, &e.Resolved, &e.ResolvedBy, &e.ResolvedAt, &e.ResolutionNote,
	)
	return e, err
}

// ReplaceResults takes a transaction-scoped advisory lock on the run id, so
// two passes over the same run queue up while different runs proceed in
// parallel. The delete and the inserts commit together or not at all.
func (r *payrollRunRepository) ReplaceResults(ctx context.Context, run payroll.PayrollRun, result payroll.RunResult) (payroll.PayrollRun, error) {
	var updated payroll.PayrollRun

	err := WithTransaction(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, run.ID); err != nil {
			return fmt.Errorf("failed to lock payroll run: %w", err)
		}

		var status payroll.RunStatus
		err := tx.QueryRow(ctx, `SELECT status FROM payroll_runs WHERE id = $1 FOR UPDATE`, run.ID).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return payroll.ErrPayrollRunNotFound
			}
			return fmt.Errorf("failed to read payroll run status: %w", err)
		}
		if status == payroll.RunStatusFinalized {
			return payroll.ErrRunFinalized
		}

		if _, err := tx.Exec(ctx, `DELETE FROM payroll_run_exceptions WHERE run_id = $1`, run.ID); err != nil {
			return fmt.Errorf("failed to delete payroll run exceptions: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM payroll_run_lines WHERE run_id = $1`, run.ID); err != nil {
			return fmt.Errorf("failed to delete payroll run lines: %w", err)
		}

		if err := insertResults(ctx, tx, result); err != nil {
			return err
		}

		updated, err = scanRun(tx.QueryRow(ctx, `
			UPDATE payroll_runs
			SET status = $2, calculated_at = NOW(), updated_at = NOW(),
				tolerance_hours = $3, activity_threshold = $4
			WHERE id = $1
			RETURNING `+runColumns,
			run.ID, payroll.RunStatusCalculated, run.ToleranceHours, run.ActivityThreshold,
		))
		if err != nil {
			return fmt.Errorf("failed to mark payroll run calculated: %w", err)
		}
		return nil
	})
	if err != nil {
		return payroll.PayrollRun{}, err
	}

	return updated, nil
}

func insertResults(ctx context.Context, tx pgx.Tx, result payroll.RunResult) error {
	batch := &pgx.Batch{}

	for _, l := range result.Lines {
		batch.Queue(`
			INSERT INTO payroll_run_lines (
				id, run_id, worker_id, pay_model, rate,
				expected_days, expected_hours, time_off_days, holiday_days,
				approved_hours, submitted_hours, payable_hours, logged_hours, internal_work_hours,
				external_hours, avg_activity_pct,
				reimbursements, deductions, catch_up_hours, gross_pay, net_pay
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
			l.ID, l.RunID, l.WorkerID, l.PayModel, l.Rate,
			l.ExpectedDays, l.ExpectedHours, l.TimeOffDays, l.HolidayDays,
			l.ApprovedHours, l.SubmittedHours, l.PayableHours, l.LoggedHours, l.InternalWorkHours,
			l.ExternalHours, l.AvgActivityPct,
			l.Reimbursements, l.Deductions, l.CatchUpHours, l.GrossPay, l.NetPay,
		)
	}
	for i, e := range result.Exceptions {
		batch.Queue(`
			INSERT INTO payroll_run_exceptions (
				id, run_id, seq, worker_id, type, severity, source, portal_hours, external_hours, details
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			e.ID, e.RunID, i, e.WorkerID, e.Type, e.Severity, e.Source, e.PortalHours, e.ExternalHours, e.Details,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to insert payroll run results: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to insert payroll run results: %w", err)
	}
	return nil
}

// ========== TRANSITIONS ==========

func (r *payrollRunRepository) FinalizeRun(ctx context.Context, runID string, finalizedBy string, finalizedAt time.Time) (payroll.PayrollRun, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE payroll_runs
		SET status = $2, finalized_by = $3, finalized_at = $4, updated_at = $4
		WHERE id = $1 AND status = $5
		RETURNING ` + runColumns

	run, err := scanRun(q.QueryRow(ctx, query,
		runID, payroll.RunStatusFinalized, finalizedBy, finalizedAt, payroll.RunStatusCalculated,
	))
	if err == nil {
		return run, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return payroll.PayrollRun{}, fmt.Errorf("failed to finalize payroll run: %w", err)
	}

	// No row updated: report why.
	current, err := r.GetRunByID(ctx, runID)
	if err != nil {
		return payroll.PayrollRun{}, err
	}
	if current.Status == payroll.RunStatusFinalized {
		return payroll.PayrollRun{}, payroll.ErrRunAlreadyFinalized
	}
	return payroll.PayrollRun{}, payroll.ErrRunNotCalculated
}

func (r *payrollRunRepository) ResolveException(ctx context.Context, runID, exceptionID, resolvedBy string, note *string, resolvedAt time.Time) (payroll.PayrollRunException, error) {
	if !validator.IsValidUUID(exceptionID) {
		return payroll.PayrollRunException{}, payroll.ErrExceptionNotFound
	}
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE payroll_run_exceptions
		SET resolved = TRUE, resolved_by = $3, resolved_at = $4, resolution_note = $5
		WHERE id = $1 AND run_id = $2 AND resolved = FALSE
		RETURNING id, run_id, worker_id, type, severity, source, portal_hours, external_hours,
			details, resolved, resolved_by, resolved_at, resolution_note
	`

	e, err := scanException(q.QueryRow(ctx, query, exceptionID, runID, resolvedBy, resolvedAt, note))
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return payroll.PayrollRunException{}, fmt.Errorf("failed to resolve payroll run exception: %w", err)
	}

	var exists bool
	if err := q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM payroll_run_exceptions WHERE id = $1 AND run_id = $2)`,
		exceptionID, runID,
	).Scan(&exists); err != nil {
		return payroll.PayrollRunException{}, fmt.Errorf("failed to check payroll run exception: %w", err)
	}
	if exists {
		return payroll.PayrollRunException{}, payroll.ErrExceptionResolved
	}
	return payroll.PayrollRunException{}, payroll.ErrExceptionNotFound
}
