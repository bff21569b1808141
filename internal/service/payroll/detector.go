package payroll

import (
	"fmt"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/shopspring/decimal"
)

var (
	critGapHours        = decimal.NewFromInt(2)
	lowActivityMinHours = decimal.NewFromInt(2)
)

// DetectorConfig holds the thresholds of one calculation pass.
type DetectorConfig struct {
	ToleranceHours    decimal.Decimal
	ActivityThreshold decimal.Decimal
}

// WorkerFigures are the aggregates the detector inspects for one worker.
type WorkerFigures struct {
	WorkerID       string
	PayableHours   decimal.Decimal
	LoggedHours    decimal.Decimal
	ExternalHours  decimal.Decimal
	AvgActivityPct *decimal.Decimal
}

// ExceptionDetector compares internal and external figures. Its findings are
// review items, never errors.
type ExceptionDetector struct {
	cfg DetectorConfig
}

func NewExceptionDetector(cfg DetectorConfig) *ExceptionDetector {
	return &ExceptionDetector{cfg: cfg}
}

// DetectWorker runs every per-worker check. Checks are independent, so one
// worker can collect several exceptions.
func (d *ExceptionDetector) DetectWorker(f WorkerFigures) []payroll.PayrollRunException {
	var found []payroll.PayrollRunException

	if e, ok := d.hoursMismatch(f); ok {
		found = append(found, e)
	}
	if e, ok := d.lowActivity(f); ok {
		found = append(found, e)
	}
	if e, ok := d.missingPortalAllocation(f); ok {
		found = append(found, e)
	}

	return found
}

func (d *ExceptionDetector) hoursMismatch(f WorkerFigures) (payroll.PayrollRunException, bool) {
	if !f.ExternalHours.IsPositive() {
		return payroll.PayrollRunException{}, false
	}
	gap := f.ExternalHours.Sub(f.PayableHours).Abs()
	if !gap.GreaterThan(d.cfg.ToleranceHours) {
		return payroll.PayrollRunException{}, false
	}

	severity := payroll.SeverityWarn
	if gap.GreaterThanOrEqual(critGapHours) {
		severity = payroll.SeverityCrit
	}

	return workerException(f, payroll.ExceptionHoursMismatch, severity, fmt.Sprintf(
		"External tracker shows %s h but %s h are payable (gap %s h, tolerance %s h)",
		f.ExternalHours.String(), f.PayableHours.String(), gap.String(), d.cfg.ToleranceHours.String(),
	)), true
}

func (d *ExceptionDetector) lowActivity(f WorkerFigures) (payroll.PayrollRunException, bool) {
	if f.AvgActivityPct == nil {
		return payroll.PayrollRunException{}, false
	}
	if !f.AvgActivityPct.LessThan(d.cfg.ActivityThreshold) || f.ExternalHours.LessThan(lowActivityMinHours) {
		return payroll.PayrollRunException{}, false
	}

	return workerException(f, payroll.ExceptionLowActivity, payroll.SeverityWarn, fmt.Sprintf(
		"Average activity %s%% over %s tracked hours is below the %s%% threshold",
		f.AvgActivityPct.String(), f.ExternalHours.String(), d.cfg.ActivityThreshold.String(),
	)), true
}

func (d *ExceptionDetector) missingPortalAllocation(f WorkerFigures) (payroll.PayrollRunException, bool) {
	if !f.ExternalHours.IsPositive() || !f.LoggedHours.IsZero() {
		return payroll.PayrollRunException{}, false
	}

	return workerException(f, payroll.ExceptionMissingPortalAllocation, payroll.SeverityWarn, fmt.Sprintf(
		"%s h tracked externally but no time was logged internally for the period",
		f.ExternalHours.String(),
	)), true
}

// DetectRun raises the run-level finding for tracker hours linked to no worker.
func (d *ExceptionDetector) DetectRun(unassignedHours decimal.Decimal) (payroll.PayrollRunException, bool) {
	if !unassignedHours.IsPositive() {
		return payroll.PayrollRunException{}, false
	}

	source := payroll.SourceExternalTracker
	hours := unassignedHours
	return payroll.PayrollRunException{
		Type:          payroll.ExceptionUnassignedExternalTime,
		Severity:      payroll.SeverityWarn,
		Source:        &source,
		ExternalHours: &hours,
		Details:       fmt.Sprintf("%s h of external time are not linked to any worker", unassignedHours.String()),
	}, true
}

func workerException(f WorkerFigures, typ payroll.ExceptionType, severity payroll.Severity, details string) payroll.PayrollRunException {
	workerID := f.WorkerID
	source := payroll.SourceExternalTracker
	portal := f.PayableHours
	external := f.ExternalHours
	return payroll.PayrollRunException{
		WorkerID:      &workerID,
		Type:          typ,
		Severity:      severity,
		Source:        &source,
		PortalHours:   &portal,
		ExternalHours: &external,
		Details:       details,
	}
}
