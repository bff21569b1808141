package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// RunStatus enum
type RunStatus string

const (
	RunStatusDraft      RunStatus = "draft"
	RunStatusCalculated RunStatus = "calculated"
	RunStatusFinalized  RunStatus = "finalized"
)

// RunType enum
type RunType string

const (
	RunTypeRegular    RunType = "regular"
	RunTypeOffCycle   RunType = "off_cycle"
	RunTypeCorrection RunType = "correction"
)

var validRunTypes = []string{string(RunTypeRegular), string(RunTypeOffCycle), string(RunTypeCorrection)}

// PayrollRun - One calculation unit scoped to a period
type PayrollRun struct {
	ID               string
	RunType          RunType
	PeriodStart      time.Time
	PeriodEnd        time.Time
	IncludeSubmitted bool
	Status           RunStatus
	CreatedBy        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CalculatedAt     *time.Time
	FinalizedBy      *string
	FinalizedAt      *time.Time

	// Overrides used by the latest calculation pass
	ToleranceHours    *decimal.Decimal
	ActivityThreshold *decimal.Decimal
}

// PayModel enum
type PayModel string

const (
	PayModelHourly   PayModel = "hourly"
	PayModelSalaried PayModel = "salaried"
)

// PayrollRunLine - One line per active worker per run, fully derived
type PayrollRunLine struct {
	ID       string
	RunID    string
	WorkerID string
	PayModel PayModel
	Rate     decimal.Decimal // hourly rate or flat period rate, per PayModel

	ExpectedDays  int
	ExpectedHours decimal.Decimal
	TimeOffDays   decimal.Decimal
	HolidayDays   int

	ApprovedHours     decimal.Decimal
	SubmittedHours    decimal.Decimal
	PayableHours      decimal.Decimal
	LoggedHours       decimal.Decimal
	InternalWorkHours decimal.Decimal

	ExternalHours  decimal.Decimal
	AvgActivityPct *decimal.Decimal
	Reimbursements decimal.Decimal
	Deductions     decimal.Decimal
	CatchUpHours   decimal.Decimal
	GrossPay       decimal.Decimal
	NetPay         decimal.Decimal

	// Joined fields
	WorkerName *string
}

// ExceptionType enum
type ExceptionType string

const (
	ExceptionHoursMismatch           ExceptionType = "HOURS_MISMATCH"
	ExceptionLowActivity             ExceptionType = "LOW_ACTIVITY"
	ExceptionMissingPortalAllocation ExceptionType = "MISSING_PORTAL_ALLOCATION"
	ExceptionUnassignedExternalTime  ExceptionType = "UNASSIGNED_EXTERNAL_TIME"
)

// Severity enum
type Severity string

const (
	SeverityInfo Severity = "INFO"
	SeverityWarn Severity = "WARN"
	SeverityCrit Severity = "CRIT"
)

// SourceExternalTracker tags exceptions raised from the external time feed.
const SourceExternalTracker = "external_tracker"

// PayrollRunException - Classified discrepancy for human review.
// WorkerID is nil for run-level findings.
type PayrollRunException struct {
	ID             string
	RunID          string
	WorkerID       *string
	Type           ExceptionType
	Severity       Severity
	Source         *string
	PortalHours    *decimal.Decimal
	ExternalHours  *decimal.Decimal
	Details        string
	Resolved       bool
	ResolvedBy     *string
	ResolvedAt     *time.Time
	ResolutionNote *string
}

// RunResult is the full replacement set produced by one calculation pass.
type RunResult struct {
	Lines      []PayrollRunLine
	Exceptions []PayrollRunException
}
