package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// Worker - Read-only roster entry
type Worker struct {
	ID             string
	Name           string
	PayModel       PayModel
	HourlyRate     decimal.Decimal
	FlatPeriodRate decimal.Decimal
	IsActive       bool
}

// TimeEntryStatus enum
type TimeEntryStatus string

const (
	TimeEntryApproved  TimeEntryStatus = "approved"
	TimeEntrySubmitted TimeEntryStatus = "submitted"
	TimeEntryDraft     TimeEntryStatus = "draft"
	TimeEntryRejected  TimeEntryStatus = "rejected"
)

// InternalTimeRecord - One row per worker per work date per client bucket
type InternalTimeRecord struct {
	WorkerID       string
	WorkDate       time.Time
	ClientID       string
	Status         TimeEntryStatus
	ClientHours    decimal.Decimal
	NonClientHours decimal.Decimal
	OtherHours     decimal.Decimal
}

// TotalHours sums the three hour categories.
func (r InternalTimeRecord) TotalHours() decimal.Decimal {
	return r.ClientHours.Add(r.NonClientHours).Add(r.OtherHours)
}

// ExternalTimeRecord - Row imported from the third-party tracker.
// WorkerID is nil until the row is linked to a worker.
type ExternalTimeRecord struct {
	WorkerID    *string
	WorkDate    time.Time
	Hours       decimal.Decimal
	ActivityPct decimal.Decimal
}

// AdjustmentType enum
type AdjustmentType string

const (
	AdjustmentReimbursement AdjustmentType = "reimbursement"
	AdjustmentDeduction     AdjustmentType = "deduction"
	AdjustmentCatchUp       AdjustmentType = "catch_up"
)

// Adjustment - Ad-hoc amount recorded against a worker.
// Amount is currency for reimbursements and deductions, hours for catch-up.
type Adjustment struct {
	WorkerID    string
	PeriodStart time.Time
	PeriodEnd   time.Time
	Type        AdjustmentType
	Amount      decimal.Decimal
}

// Holiday - Unpaid, non-business calendar date
type Holiday struct {
	Date time.Time
	Name string
}

// BucketRole names a special-purpose client bucket.
type BucketRole string

const (
	BucketTimeOff      BucketRole = "time_off"
	BucketInternalWork BucketRole = "internal_work"
)

// BucketIDs maps each role to the client id resolved for this pass.
// A missing role means the configured code matched no client.
type BucketIDs map[BucketRole]string

// SourceData is everything a calculation pass reads, loaded up front.
type SourceData struct {
	Workers      []Worker
	InternalTime []InternalTimeRecord
	ExternalTime []ExternalTimeRecord
	Adjustments  []Adjustment
	Holidays     []Holiday
	Buckets      BucketIDs
}
