package payroll

import (
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/shopspring/decimal"
)

var quarter = decimal.NewFromInt(4)

// InternalTotals - Internally logged hours for one worker over the period
type InternalTotals struct {
	ApprovedHours     decimal.Decimal
	SubmittedHours    decimal.Decimal
	AllHours          decimal.Decimal
	TimeOffHours      decimal.Decimal
	InternalWorkHours decimal.Decimal
}

// TimeOffDays converts time-off hours to days, rounded to the nearest quarter day.
func (t InternalTotals) TimeOffDays(hoursPerDay decimal.Decimal) decimal.Decimal {
	if !hoursPerDay.IsPositive() {
		return decimal.Zero
	}
	return t.TimeOffHours.Div(hoursPerDay).Mul(quarter).Round(0).Div(quarter)
}

// AggregateInternalTime sums internal rows dated within [start, end] per worker.
// Bucket sub-totals count every row logged against the resolved bucket ids,
// whatever its approval status.
func AggregateInternalTime(records []payroll.InternalTimeRecord, start, end time.Time, buckets payroll.BucketIDs) map[string]InternalTotals {
	timeOffID, hasTimeOff := buckets[payroll.BucketTimeOff]
	internalID, hasInternal := buckets[payroll.BucketInternalWork]

	totals := make(map[string]InternalTotals)
	for _, r := range records {
		if !inPeriod(r.WorkDate, start, end) {
			continue
		}
		hours := r.TotalHours()
		t := totals[r.WorkerID]

		t.AllHours = t.AllHours.Add(hours)
		switch r.Status {
		case payroll.TimeEntryApproved:
			t.ApprovedHours = t.ApprovedHours.Add(hours)
		case payroll.TimeEntrySubmitted:
			t.SubmittedHours = t.SubmittedHours.Add(hours)
		}
		if hasTimeOff && r.ClientID == timeOffID {
			t.TimeOffHours = t.TimeOffHours.Add(hours)
		}
		if hasInternal && r.ClientID == internalID {
			t.InternalWorkHours = t.InternalWorkHours.Add(hours)
		}

		totals[r.WorkerID] = t
	}
	return totals
}

// ExternalTotals - Tracker hours for one worker over the period.
// AvgActivityPct is nil when no row carried a measured activity.
type ExternalTotals struct {
	Hours          decimal.Decimal
	AvgActivityPct *decimal.Decimal
}

// AggregateExternalTime sums linked tracker rows per worker and returns the
// hours of unlinked rows separately. An activity of exactly zero means the
// tracker did not measure it, so such rows are left out of the average.
func AggregateExternalTime(records []payroll.ExternalTimeRecord, start, end time.Time) (map[string]ExternalTotals, decimal.Decimal) {
	type acc struct {
		hours       decimal.Decimal
		activitySum decimal.Decimal
		measured    int64
	}

	unassigned := decimal.Zero
	accs := make(map[string]*acc)
	for _, r := range records {
		if !inPeriod(r.WorkDate, start, end) {
			continue
		}
		if r.WorkerID == nil || *r.WorkerID == "" {
			unassigned = unassigned.Add(r.Hours)
			continue
		}
		a, ok := accs[*r.WorkerID]
		if !ok {
			a = &acc{}
			accs[*r.WorkerID] = a
		}
		a.hours = a.hours.Add(r.Hours)
		if !r.ActivityPct.IsZero() {
			a.activitySum = a.activitySum.Add(r.ActivityPct)
			a.measured++
		}
	}

	totals := make(map[string]ExternalTotals, len(accs))
	for workerID, a := range accs {
		t := ExternalTotals{Hours: a.hours}
		if a.measured > 0 {
			avg := a.activitySum.Div(decimal.NewFromInt(a.measured)).Round(2)
			t.AvgActivityPct = &avg
		}
		totals[workerID] = t
	}
	return totals, unassigned
}

// AdjustmentTotals - Ad-hoc amounts for one worker
type AdjustmentTotals struct {
	Reimbursements decimal.Decimal
	Deductions     decimal.Decimal
	CatchUpHours   decimal.Decimal
}

// AggregateAdjustments sums adjustments whose own period overlaps [start, end].
func AggregateAdjustments(adjustments []payroll.Adjustment, start, end time.Time) map[string]AdjustmentTotals {
	totals := make(map[string]AdjustmentTotals)
	for _, a := range adjustments {
		if !periodsOverlap(a.PeriodStart, a.PeriodEnd, start, end) {
			continue
		}
		t := totals[a.WorkerID]
		switch a.Type {
		case payroll.AdjustmentReimbursement:
			t.Reimbursements = t.Reimbursements.Add(a.Amount)
		case payroll.AdjustmentDeduction:
			t.Deductions = t.Deductions.Add(a.Amount)
		case payroll.AdjustmentCatchUp:
			t.CatchUpHours = t.CatchUpHours.Add(a.Amount)
		}
		totals[a.WorkerID] = t
	}
	return totals
}

func periodsOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !dateOnly(aStart).After(dateOnly(bEnd)) && !dateOnly(aEnd).Before(dateOnly(bStart))
}
