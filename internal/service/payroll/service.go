package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Config holds the calculation defaults of the payroll service
type Config struct {
	ToleranceHours         decimal.Decimal
	ActivityThreshold      decimal.Decimal
	HoursPerDay            decimal.Decimal
	TimeOffBucketCode      string
	InternalWorkBucketCode string
}

// DefaultConfig returns a tolerance of 0.5h, a 70% activity threshold, 8h
// days and the PTO / INTERNAL bucket codes.
func DefaultConfig() Config {
	return Config{
		ToleranceHours:         decimal.RequireFromString("0.5"),
		ActivityThreshold:      decimal.NewFromInt(70),
		HoursPerDay:            decimal.NewFromInt(8),
		TimeOffBucketCode:      "PTO",
		InternalWorkBucketCode: "INTERNAL",
	}
}

type PayrollServiceImpl struct {
	runRepo    payroll.RunRepository
	sourceRepo payroll.SourceRepository
	config     Config
}

func NewPayrollService(
	runRepo payroll.RunRepository,
	sourceRepo payroll.SourceRepository,
	cfg Config,
) payroll.PayrollService {
	if !cfg.HoursPerDay.IsPositive() {
		cfg.HoursPerDay = decimal.NewFromInt(8)
	}

	return &PayrollServiceImpl{
		runRepo:    runRepo,
		sourceRepo: sourceRepo,
		config:     cfg,
	}
}

// ========== RUNS ==========

func (s *PayrollServiceImpl) CreateRun(ctx context.Context, req payroll.CreatePayrollRunRequest) (payroll.PayrollRunResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.PayrollRunResponse{}, err
	}

	start, _ := validator.IsValidDate(req.PeriodStart)
	end, _ := validator.IsValidDate(req.PeriodEnd)

	id, err := uuid.NewV7()
	if err != nil {
		return payroll.PayrollRunResponse{}, fmt.Errorf("failed to generate payroll run id: %w", err)
	}

	now := time.Now().UTC()
	run, err := s.runRepo.CreateRun(ctx, payroll.PayrollRun{
		ID:               id.String(),
		RunType:          payroll.RunType(req.RunType),
		PeriodStart:      start,
		PeriodEnd:        end,
		IncludeSubmitted: req.IncludeSubmitted,
		Status:           payroll.RunStatusDraft,
		CreatedBy:        req.CreatedBy,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		return payroll.PayrollRunResponse{}, fmt.Errorf("failed to create payroll run: %w", err)
	}

	slog.Info("payroll run created",
		"run_id", run.ID,
		"run_type", run.RunType,
		"period_start", req.PeriodStart,
		"period_end", req.PeriodEnd,
		"created_by", run.CreatedBy,
	)

	return mapToRunResponse(run), nil
}

func (s *PayrollServiceImpl) ListRuns(ctx context.Context, filter payroll.PayrollRunFilter) (payroll.ListPayrollRunResponse, error) {
	if filter.Status != nil && !validator.IsInSlice(*filter.Status, []string{
		string(payroll.RunStatusDraft),
		string(payroll.RunStatusCalculated),
		string(payroll.RunStatusFinalized),
	}) {
		return payroll.ListPayrollRunResponse{}, validator.ValidationErrors{
			{Field: "status", Message: "must be 'draft', 'calculated' or 'finalized'"},
		}
	}
	filter.Normalize()

	runs, total, err := s.runRepo.ListRuns(ctx, filter)
	if err != nil {
		return payroll.ListPayrollRunResponse{}, err
	}

	data := make([]payroll.PayrollRunResponse, len(runs))
	for i, r := range runs {
		data[i] = mapToRunResponse(r)
	}

	return payroll.ListPayrollRunResponse{
		Data:       data,
		TotalCount: total,
		Page:       filter.Page,
		Limit:      filter.Limit,
	}, nil
}

func (s *PayrollServiceImpl) GetRun(ctx context.Context, id string) (payroll.PayrollRunDetailResponse, error) {
	run, err := s.runRepo.GetRunByID(ctx, id)
	if err != nil {
		return payroll.PayrollRunDetailResponse{}, err
	}
	return s.loadDetail(ctx, run)
}

// ========== CALCULATION ==========

// CalculateRun recomputes the run from current source data and replaces its
// previous lines and exceptions. Running it twice on unchanged data yields
// the same result set.
func (s *PayrollServiceImpl) CalculateRun(ctx context.Context, req payroll.CalculatePayrollRunRequest) (payroll.PayrollRunDetailResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.PayrollRunDetailResponse{}, err
	}

	run, err := s.runRepo.GetRunByID(ctx, req.RunID)
	if err != nil {
		if errors.Is(err, payroll.ErrPayrollRunNotFound) {
			return payroll.PayrollRunDetailResponse{}, err
		}
		return payroll.PayrollRunDetailResponse{}, &payroll.CalculationError{RunID: req.RunID, Stage: payroll.StageLoadRun, Err: err}
	}
	if run.Status == payroll.RunStatusFinalized {
		return payroll.PayrollRunDetailResponse{}, payroll.ErrRunFinalized
	}

	tolerance := s.config.ToleranceHours
	if req.ToleranceHours != nil {
		tolerance = *req.ToleranceHours
	}
	threshold := s.config.ActivityThreshold
	if req.ActivityThreshold != nil {
		threshold = *req.ActivityThreshold
	}
	run.ToleranceHours = &tolerance
	run.ActivityThreshold = &threshold

	started := time.Now()

	src, err := s.loadSources(ctx, run)
	if err != nil {
		return payroll.PayrollRunDetailResponse{}, &payroll.CalculationError{RunID: run.ID, Stage: payroll.StageLoadSources, Err: err}
	}

	calculator := NewCalculator(CalculatorConfig{
		HoursPerDay: s.config.HoursPerDay,
		Detector: DetectorConfig{
			ToleranceHours:    tolerance,
			ActivityThreshold: threshold,
		},
	})
	result, err := calculator.Calculate(run, src)
	if err != nil {
		return payroll.PayrollRunDetailResponse{}, &payroll.CalculationError{RunID: run.ID, Stage: payroll.StageCompute, Err: err}
	}

	updated, err := s.runRepo.ReplaceResults(ctx, run, result)
	if err != nil {
		if errors.Is(err, payroll.ErrRunFinalized) || errors.Is(err, payroll.ErrPayrollRunNotFound) {
			return payroll.PayrollRunDetailResponse{}, err
		}
		return payroll.PayrollRunDetailResponse{}, &payroll.CalculationError{RunID: run.ID, Stage: payroll.StagePersist, Err: err}
	}

	slog.Info("payroll run calculated",
		"run_id", updated.ID,
		"workers", len(result.Lines),
		"exceptions", len(result.Exceptions),
		"tolerance_hours", tolerance.String(),
		"activity_threshold", threshold.String(),
		"duration", time.Since(started),
	)

	return buildDetail(updated, result.Lines, result.Exceptions), nil
}

// loadSources reads everything the pass needs before any computation starts.
func (s *PayrollServiceImpl) loadSources(ctx context.Context, run payroll.PayrollRun) (payroll.SourceData, error) {
	var (
		src   payroll.SourceData
		codes map[string]string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		workers, err := s.sourceRepo.ListActiveWorkers(gctx)
		if err != nil {
			return fmt.Errorf("list active workers: %w", err)
		}
		src.Workers = workers
		return nil
	})
	g.Go(func() error {
		records, err := s.sourceRepo.ListInternalTime(gctx, run.PeriodStart, run.PeriodEnd)
		if err != nil {
			return fmt.Errorf("list internal time: %w", err)
		}
		src.InternalTime = records
		return nil
	})
	g.Go(func() error {
		records, err := s.sourceRepo.ListExternalTime(gctx, run.PeriodStart, run.PeriodEnd)
		if err != nil {
			return fmt.Errorf("list external time: %w", err)
		}
		src.ExternalTime = records
		return nil
	})
	g.Go(func() error {
		adjustments, err := s.sourceRepo.ListAdjustments(gctx, run.PeriodStart, run.PeriodEnd)
		if err != nil {
			return fmt.Errorf("list adjustments: %w", err)
		}
		src.Adjustments = adjustments
		return nil
	})
	g.Go(func() error {
		holidays, err := s.sourceRepo.ListHolidays(gctx, run.PeriodStart, run.PeriodEnd)
		if err != nil {
			return fmt.Errorf("list holidays: %w", err)
		}
		src.Holidays = holidays
		return nil
	})
	g.Go(func() error {
		ids, err := s.sourceRepo.FindClientIDsByCode(gctx, s.bucketCodes())
		if err != nil {
			return fmt.Errorf("resolve bucket codes: %w", err)
		}
		codes = ids
		return nil
	})

	if err := g.Wait(); err != nil {
		return payroll.SourceData{}, err
	}

	src.Buckets = s.resolveBuckets(run.ID, codes)
	return src, nil
}

func (s *PayrollServiceImpl) bucketCodes() []string {
	var codes []string
	for _, c := range []string{s.config.TimeOffBucketCode, s.config.InternalWorkBucketCode} {
		if c != "" {
			codes = append(codes, c)
		}
	}
	return codes
}

// resolveBuckets maps the configured bucket codes to client ids. An
// unresolved bucket contributes zero hours for the whole pass.
func (s *PayrollServiceImpl) resolveBuckets(runID string, ids map[string]string) payroll.BucketIDs {
	buckets := make(payroll.BucketIDs, 2)
	for role, code := range map[payroll.BucketRole]string{
		payroll.BucketTimeOff:      s.config.TimeOffBucketCode,
		payroll.BucketInternalWork: s.config.InternalWorkBucketCode,
	} {
		if code == "" {
			continue
		}
		id, ok := ids[code]
		if !ok {
			slog.Warn("payroll bucket code not found, sub-total will be zero",
				"run_id", runID,
				"bucket", role,
				"code", code,
			)
			continue
		}
		buckets[role] = id
	}
	return buckets
}

// ========== FINALIZATION ==========

func (s *PayrollServiceImpl) FinalizeRun(ctx context.Context, req payroll.FinalizePayrollRunRequest) (payroll.PayrollRunDetailResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.PayrollRunDetailResponse{}, err
	}

	run, err := s.runRepo.GetRunByID(ctx, req.RunID)
	if err != nil {
		return payroll.PayrollRunDetailResponse{}, err
	}
	switch run.Status {
	case payroll.RunStatusFinalized:
		return payroll.PayrollRunDetailResponse{}, payroll.ErrRunAlreadyFinalized
	case payroll.RunStatusDraft:
		return payroll.PayrollRunDetailResponse{}, payroll.ErrRunNotCalculated
	}

	finalized, err := s.runRepo.FinalizeRun(ctx, run.ID, req.FinalizedBy, time.Now().UTC())
	if err != nil {
		return payroll.PayrollRunDetailResponse{}, err
	}

	slog.Info("payroll run finalized", "run_id", finalized.ID, "finalized_by", req.FinalizedBy)

	return s.loadDetail(ctx, finalized)
}

// ========== EXCEPTIONS ==========

func (s *PayrollServiceImpl) ListExceptions(ctx context.Context, runID string, filter payroll.ExceptionFilter) ([]payroll.PayrollRunExceptionResponse, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.runRepo.GetRunByID(ctx, runID); err != nil {
		return nil, err
	}

	exceptions, err := s.runRepo.GetExceptions(ctx, runID)
	if err != nil {
		return nil, err
	}

	responses := make([]payroll.PayrollRunExceptionResponse, 0, len(exceptions))
	for _, e := range exceptions {
		if filter.Matches(e) {
			responses = append(responses, mapToExceptionResponse(e))
		}
	}
	return responses, nil
}

func (s *PayrollServiceImpl) ResolveException(ctx context.Context, req payroll.ResolveExceptionRequest) (payroll.PayrollRunExceptionResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.PayrollRunExceptionResponse{}, err
	}

	if _, err := s.runRepo.GetRunByID(ctx, req.RunID); err != nil {
		return payroll.PayrollRunExceptionResponse{}, err
	}

	resolved, err := s.runRepo.ResolveException(ctx, req.RunID, req.ExceptionID, req.ResolvedBy, req.Note, time.Now().UTC())
	if err != nil {
		return payroll.PayrollRunExceptionResponse{}, err
	}

	slog.Info("payroll run exception resolved",
		"run_id", req.RunID,
		"exception_id", req.ExceptionID,
		"resolved_by", req.ResolvedBy,
	)

	return mapToExceptionResponse(resolved), nil
}

// ========== HELPERS ==========

func (s *PayrollServiceImpl) loadDetail(ctx context.Context, run payroll.PayrollRun) (payroll.PayrollRunDetailResponse, error) {
	lines, err := s.runRepo.GetLines(ctx, run.ID)
	if err != nil {
		return payroll.PayrollRunDetailResponse{}, err
	}
	exceptions, err := s.runRepo.GetExceptions(ctx, run.ID)
	if err != nil {
		return payroll.PayrollRunDetailResponse{}, err
	}
	return buildDetail(run, lines, exceptions), nil
}

func buildDetail(run payroll.PayrollRun, lines []payroll.PayrollRunLine, exceptions []payroll.PayrollRunException) payroll.PayrollRunDetailResponse {
	summary := payroll.PayrollRunSummary{
		WorkerCount:         len(lines),
		TotalGrossPay:       decimal.Zero,
		TotalNetPay:         decimal.Zero,
		TotalReimbursements: decimal.Zero,
		TotalDeductions:     decimal.Zero,
		ExceptionCounts:     make(map[string]int),
	}

	lineResponses := make([]payroll.PayrollRunLineResponse, len(lines))
	for i, l := range lines {
		summary.TotalGrossPay = summary.TotalGrossPay.Add(l.GrossPay)
		summary.TotalNetPay = summary.TotalNetPay.Add(l.NetPay)
		summary.TotalReimbursements = summary.TotalReimbursements.Add(l.Reimbursements)
		summary.TotalDeductions = summary.TotalDeductions.Add(l.Deductions)
		lineResponses[i] = mapToLineResponse(l)
	}

	exceptionResponses := make([]payroll.PayrollRunExceptionResponse, len(exceptions))
	for i, e := range exceptions {
		summary.ExceptionCounts[string(e.Severity)]++
		if !e.Resolved {
			summary.UnresolvedCount++
		}
		exceptionResponses[i] = mapToExceptionResponse(e)
	}

	return payroll.PayrollRunDetailResponse{
		Run:        mapToRunResponse(run),
		Summary:    summary,
		Lines:      lineResponses,
		Exceptions: exceptionResponses,
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func mapToRunResponse(r payroll.PayrollRun) payroll.PayrollRunResponse {
	return payroll.PayrollRunResponse{
		ID:                r.ID,
		RunType:           string(r.RunType),
		PeriodStart:       r.PeriodStart.Format(validator.DateLayout),
		PeriodEnd:         r.PeriodEnd.Format(validator.DateLayout),
		IncludeSubmitted:  r.IncludeSubmitted,
		Status:            string(r.Status),
		CreatedBy:         r.CreatedBy,
		CreatedAt:         r.CreatedAt.UTC().Format(time.RFC3339),
		CalculatedAt:      formatTime(r.CalculatedAt),
		FinalizedBy:       r.FinalizedBy,
		FinalizedAt:       formatTime(r.FinalizedAt),
		ToleranceHours:    r.ToleranceHours,
		ActivityThreshold: r.ActivityThreshold,
	}
}

func mapToLineResponse(l payroll.PayrollRunLine) payroll.PayrollRunLineResponse {
	resp := payroll.PayrollRunLineResponse{
		ID:                l.ID,
		WorkerID:          l.WorkerID,
		PayModel:          string(l.PayModel),
		Rate:              l.Rate,
		ExpectedDays:      l.ExpectedDays,
		ExpectedHours:     l.ExpectedHours,
		TimeOffDays:       l.TimeOffDays,
		HolidayDays:       l.HolidayDays,
		ApprovedHours:     l.ApprovedHours,
		SubmittedHours:    l.SubmittedHours,
		PayableHours:      l.PayableHours,
		LoggedHours:       l.LoggedHours,
		InternalWorkHours: l.InternalWorkHours,
		ExternalHours:     l.ExternalHours,
		AvgActivityPct:    l.AvgActivityPct,
		Reimbursements:    l.Reimbursements,
		Deductions:        l.Deductions,
		CatchUpHours:      l.CatchUpHours,
		GrossPay:          l.GrossPay,
		NetPay:            l.NetPay,
	}
	if l.WorkerName != nil {
		resp.WorkerName = *l.WorkerName
	}
	return resp
}

func mapToExceptionResponse(e payroll.PayrollRunException) payroll.PayrollRunExceptionResponse {
	return payroll.PayrollRunExceptionResponse{
		ID:             e.ID,
		WorkerID:       e.WorkerID,
		Type:           string(e.Type),
		Severity:       string(e.Severity),
		Source:         e.Source,
		PortalHours:    e.PortalHours,
		ExternalHours:  e.ExternalHours,
		Details:        e.Details,
		Resolved:       e.Resolved,
		ResolvedBy:     e.ResolvedBy,
		ResolvedAt:     formatTime(e.ResolvedAt),
		ResolutionNote: e.ResolutionNote,
	}
}
