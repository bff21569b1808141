package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
)

type payrollSourceRepository struct {
	db *database.DB
}

func NewPayrollSourceRepository(db *database.DB) payroll.SourceRepository {
	return &payrollSourceRepository{db: db}
}

func (r *payrollSourceRepository) ListActiveWorkers(ctx context.Context) ([]payroll.Worker, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, name, pay_model, COALESCE(hourly_rate, 0), COALESCE(flat_period_rate, 0), is_active
		FROM workers
		WHERE is_active = TRUE
		ORDER BY id
	`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active workers: %w", err)
	}
	defer rows.Close()

	var workers []payroll.Worker
	for rows.Next() {
		var w payroll.Worker
		if err := rows.Scan(&w.ID, &w.Name, &w.PayModel, &w.HourlyRate, &w.FlatPeriodRate, &w.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan worker: %w", err)
		}
		workers = append(workers, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate workers: %w", err)
	}

	return workers, nil
}

func (r *payrollSourceRepository) ListInternalTime(ctx context.Context, start, end time.Time) ([]payroll.InternalTimeRecord, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT worker_id, work_date, COALESCE(client_id::text, ''), status,
			   COALESCE(client_hours, 0), COALESCE(non_client_hours, 0), COALESCE(other_hours, 0)
		FROM internal_time_entries
		WHERE work_date BETWEEN $1 AND $2
	`

	rows, err := q.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list internal time: %w", err)
	}
	defer rows.Close()

	var records []payroll.InternalTimeRecord
	for rows.Next() {
		var rec payroll.InternalTimeRecord
		if err := rows.Scan(
			&rec.WorkerID, &rec.WorkDate, &rec.ClientID, &rec.Status,
			&rec.ClientHours, &rec.NonClientHours, &rec.OtherHours,
		); err != nil {
			return nil, fmt.Errorf("failed to scan internal time entry: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate internal time: %w", err)
	}

	return records, nil
}

func (r *payrollSourceRepository) ListExternalTime(ctx context.Context, start, end time.Time) ([]payroll.ExternalTimeRecord, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT worker_id, work_date, COALESCE(hours, 0), COALESCE(activity_pct, 0)
		FROM external_time_entries
		WHERE work_date BETWEEN $1 AND $2
	`

	rows, err := q.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list external time: %w", err)
	}
	defer rows.Close()

	var records []payroll.ExternalTimeRecord
	for rows.Next() {
		var rec payroll.ExternalTimeRecord
		if err := rows.Scan(&rec.WorkerID, &rec.WorkDate, &rec.Hours, &rec.ActivityPct); err != nil {
			return nil, fmt.Errorf("failed to scan external time entry: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate external time: %w", err)
	}

	return records, nil
}

func (r *payrollSourceRepository) ListAdjustments(ctx context.Context, start, end time.Time) ([]payroll.Adjustment, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT worker_id, period_start, period_end, type, amount
		FROM payroll_adjustments
		WHERE period_start <= $2 AND period_end >= $1
	`

	rows, err := q.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list adjustments: %w", err)
	}
	defer rows.Close()

	var adjustments []payroll.Adjustment
	for rows.Next() {
		var a payroll.Adjustment
		if err := rows.Scan(&a.WorkerID, &a.PeriodStart, &a.PeriodEnd, &a.Type, &a.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan adjustment: %w", err)
		}
		adjustments = append(adjustments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate adjustments: %w", err)
	}

	return adjustments, nil
}

func (r *payrollSourceRepository) ListHolidays(ctx context.Context, start, end time.Time) ([]payroll.Holiday, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `SELECT date, name FROM holidays WHERE date BETWEEN $1 AND $2 ORDER BY date`, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list holidays: %w", err)
	}
	defer rows.Close()

	var holidays []payroll.Holiday
	for rows.Next() {
		var h payroll.Holiday
		if err := rows.Scan(&h.Date, &h.Name); err != nil {
			return nil, fmt.Errorf("failed to scan holiday: %w", err)
		}
		holidays = append(holidays, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate holidays: %w", err)
	}

	return holidays, nil
}

func (r *payrollSourceRepository) FindClientIDsByCode(ctx context.Context, codes []string) (map[string]string, error) {
	ids := make(map[string]string, len(codes))
	if len(codes) == 0 {
		return ids, nil
	}

	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `SELECT code, id::text FROM clients WHERE code = ANY($1)`, codes)
	if err != nil {
		return nil, fmt.Errorf("failed to find clients by code: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var code, id string
		if err := rows.Scan(&code, &id); err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		ids[code] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate clients: %w", err)
	}

	return ids, nil
}
