package payroll

import (
	"sort"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CalculatorConfig holds the settings of one calculation pass.
type CalculatorConfig struct {
	HoursPerDay decimal.Decimal
	Detector    DetectorConfig
}

// Calculator turns one run and its loaded source data into a full result set.
// It is pure: it reads nothing but its arguments and keeps no state.
type Calculator struct {
	cfg      CalculatorConfig
	detector *ExceptionDetector
}

func NewCalculator(cfg CalculatorConfig) *Calculator {
	return &Calculator{
		cfg:      cfg,
		detector: NewExceptionDetector(cfg.Detector),
	}
}

// Calculate builds one line per active worker plus every exception found.
// Lines are ordered by worker id; run-level exceptions come first, followed
// by each worker's exceptions in line order.
func (c *Calculator) Calculate(run payroll.PayrollRun, src payroll.SourceData) (payroll.RunResult, error) {
	holidayDates := make([]time.Time, 0, len(src.Holidays))
	for _, h := range src.Holidays {
		holidayDates = append(holidayDates, h.Date)
	}
	holidays := NewHolidaySet(holidayDates)

	expectedDays := BusinessDaysInPeriod(run.PeriodStart, run.PeriodEnd, holidays)
	holidayDays := HolidayDaysInPeriod(run.PeriodStart, run.PeriodEnd, holidays)
	expectedHours := decimal.NewFromInt(int64(expectedDays)).Mul(c.cfg.HoursPerDay)

	internal := AggregateInternalTime(src.InternalTime, run.PeriodStart, run.PeriodEnd, src.Buckets)
	external, unassigned := AggregateExternalTime(src.ExternalTime, run.PeriodStart, run.PeriodEnd)
	adjustments := AggregateAdjustments(src.Adjustments, run.PeriodStart, run.PeriodEnd)

	workers := make([]payroll.Worker, 0, len(src.Workers))
	for _, w := range src.Workers {
		if w.IsActive {
			workers = append(workers, w)
		}
	}
	sort.Slice(workers, func(i, j int) bool { return workers[i].ID < workers[j].ID })

	ns := runNamespace(run.ID)
	result := payroll.RunResult{
		Lines:      make([]payroll.PayrollRunLine, 0, len(workers)),
		Exceptions: []payroll.PayrollRunException{},
	}

	if e, ok := c.detector.DetectRun(unassigned); ok {
		result.Exceptions = append(result.Exceptions, withIdentity(ns, run.ID, e))
	}

	for _, w := range workers {
		policy, err := PolicyFor(w)
		if err != nil {
			return payroll.RunResult{}, err
		}

		it := internal[w.ID]
		ext := external[w.ID]
		adj := adjustments[w.ID]

		payable := it.ApprovedHours
		if run.IncludeSubmitted {
			payable = payable.Add(it.SubmittedHours)
		}

		in := PayInput{
			ExpectedDays:   expectedDays,
			TimeOffDays:    it.TimeOffDays(c.cfg.HoursPerDay),
			HolidayDays:    holidayDays,
			PayableHours:   payable,
			CatchUpHours:   adj.CatchUpHours,
			Reimbursements: adj.Reimbursements,
			Deductions:     adj.Deductions,
		}
		gross := policy.GrossPay(in)

		name := w.Name
		result.Lines = append(result.Lines, payroll.PayrollRunLine{
			ID:                uuid.NewSHA1(ns, []byte("line:"+w.ID)).String(),
			RunID:             run.ID,
			WorkerID:          w.ID,
			PayModel:          policy.Model(),
			Rate:              policy.Rate(),
			ExpectedDays:      expectedDays,
			ExpectedHours:     expectedHours,
			TimeOffDays:       in.TimeOffDays,
			HolidayDays:       holidayDays,
			ApprovedHours:     it.ApprovedHours,
			SubmittedHours:    it.SubmittedHours,
			PayableHours:      payable,
			LoggedHours:       it.AllHours,
			InternalWorkHours: it.InternalWorkHours,
			ExternalHours:     ext.Hours,
			AvgActivityPct:    ext.AvgActivityPct,
			Reimbursements:    adj.Reimbursements,
			Deductions:        adj.Deductions,
			CatchUpHours:      adj.CatchUpHours,
			GrossPay:          gross,
			NetPay:            NetPay(gross, in),
			WorkerName:        &name,
		})

		for _, e := range c.detector.DetectWorker(WorkerFigures{
			WorkerID:       w.ID,
			PayableHours:   payable,
			LoggedHours:    it.AllHours,
			ExternalHours:  ext.Hours,
			AvgActivityPct: ext.AvgActivityPct,
		}) {
			result.Exceptions = append(result.Exceptions, withIdentity(ns, run.ID, e))
		}
	}

	return result, nil
}

func runNamespace(runID string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("payroll-run:"+runID))
}

// withIdentity derives the exception id from run, worker and type so that
// an unchanged recalculation reproduces the same ids.
func withIdentity(ns uuid.UUID, runID string, e payroll.PayrollRunException) payroll.PayrollRunException {
	workerID := ""
	if e.WorkerID != nil {
		workerID = *e.WorkerID
	}
	e.ID = uuid.NewSHA1(ns, []byte("exception:"+workerID+":"+string(e.Type))).String()
	e.RunID = runID
	return e
}
