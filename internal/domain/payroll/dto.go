package payroll

import (
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

// ========== RUN DTOs ==========

type CreatePayrollRunRequest struct {
	RunType          string `json:"run_type"`
	PeriodStart      string `json:"period_start"`
	PeriodEnd        string `json:"period_end"`
	IncludeSubmitted bool   `json:"include_submitted"`
	CreatedBy        string `json:"-"`
}

func (r *CreatePayrollRunRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.RunType) {
		errs = append(errs, validator.ValidationError{Field: "run_type", Message: "is required"})
	} else if !validator.IsInSlice(r.RunType, validRunTypes) {
		errs = append(errs, validator.ValidationError{Field: "run_type", Message: "must be 'regular', 'off_cycle' or 'correction'"})
	}
	if validator.IsEmpty(r.CreatedBy) {
		errs = append(errs, validator.ValidationError{Field: "created_by", Message: "is required"})
	}

	start, startOK := validator.IsValidDate(r.PeriodStart)
	if !startOK {
		errs = append(errs, validator.ValidationError{Field: "period_start", Message: "must be a date in YYYY-MM-DD format"})
	}
	end, endOK := validator.IsValidDate(r.PeriodEnd)
	if !endOK {
		errs = append(errs, validator.ValidationError{Field: "period_end", Message: "must be a date in YYYY-MM-DD format"})
	}
	if startOK && endOK && end.Before(start) {
		errs = append(errs, validator.ValidationError{Field: "period_end", Message: "must not be before period_start"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type CalculatePayrollRunRequest struct {
	RunID             string           `json:"-"`
	ActivityThreshold *decimal.Decimal `json:"activity_threshold,omitempty"`
	ToleranceHours    *decimal.Decimal `json:"tolerance_hours,omitempty"`
}

func (r *CalculatePayrollRunRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.RunID) {
		errs = append(errs, validator.ValidationError{Field: "run_id", Message: "is required"})
	}
	if r.ActivityThreshold != nil &&
		(r.ActivityThreshold.IsNegative() || r.ActivityThreshold.GreaterThan(decimal.NewFromInt(100))) {
		errs = append(errs, validator.ValidationError{Field: "activity_threshold", Message: "must be between 0 and 100"})
	}
	if r.ToleranceHours != nil && r.ToleranceHours.IsNegative() {
		errs = append(errs, validator.ValidationError{Field: "tolerance_hours", Message: "must be non-negative"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type FinalizePayrollRunRequest struct {
	RunID       string `json:"-"`
	FinalizedBy string `json:"-"`
}

func (r *FinalizePayrollRunRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.RunID) {
		errs = append(errs, validator.ValidationError{Field: "run_id", Message: "is required"})
	}
	if validator.IsEmpty(r.FinalizedBy) {
		errs = append(errs, validator.ValidationError{Field: "finalized_by", Message: "is required"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type PayrollRunFilter struct {
	Status *string `json:"status,omitempty"`
	Page   int     `json:"page"`
	Limit  int     `json:"limit"`
}

// Normalize applies the default page and limit.
func (f *PayrollRunFilter) Normalize() {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Page <= 0 {
		f.Page = 1
	}
}

type PayrollRunResponse struct {
	ID                string           `json:"id"`
	RunType           string           `json:"run_type"`
	PeriodStart       string           `json:"period_start"`
	PeriodEnd         string           `json:"period_end"`
	IncludeSubmitted  bool             `json:"include_submitted"`
	Status            string           `json:"status"`
	CreatedBy         string           `json:"created_by"`
	CreatedAt         string           `json:"created_at"`
	CalculatedAt      *string          `json:"calculated_at,omitempty"`
	FinalizedBy       *string          `json:"finalized_by,omitempty"`
	FinalizedAt       *string          `json:"finalized_at,omitempty"`
	ToleranceHours    *decimal.Decimal `json:"tolerance_hours,omitempty"`
	ActivityThreshold *decimal.Decimal `json:"activity_threshold,omitempty"`
}

type ListPayrollRunResponse struct {
	Data       []PayrollRunResponse `json:"data"`
	TotalCount int64                `json:"total_count"`
	Page       int                  `json:"page"`
	Limit      int                  `json:"limit"`
}

// ========== LINE DTOs ==========

type PayrollRunLineResponse struct {
	ID                string           `json:"id"`
	WorkerID          string           `json:"worker_id"`
	WorkerName        string           `json:"worker_name,omitempty"`
	PayModel          string           `json:"pay_model"`
	Rate              decimal.Decimal  `json:"rate"`
	ExpectedDays      int              `json:"expected_days"`
	ExpectedHours     decimal.Decimal  `json:"expected_hours"`
	TimeOffDays       decimal.Decimal  `json:"time_off_days"`
	HolidayDays       int              `json:"holiday_days"`
	ApprovedHours     decimal.Decimal  `json:"approved_hours"`
	SubmittedHours    decimal.Decimal  `json:"submitted_hours"`
	PayableHours      decimal.Decimal  `json:"payable_hours"`
	LoggedHours       decimal.Decimal  `json:"logged_hours"`
	InternalWorkHours decimal.Decimal  `json:"internal_work_hours"`
	ExternalHours     decimal.Decimal  `json:"external_hours"`
	AvgActivityPct    *decimal.Decimal `json:"avg_activity_pct,omitempty"`
	Reimbursements    decimal.Decimal  `json:"reimbursements"`
	Deductions        decimal.Decimal  `json:"deductions"`
	CatchUpHours      decimal.Decimal  `json:"catch_up_hours"`
	GrossPay          decimal.Decimal  `json:"gross_pay"`
	NetPay            decimal.Decimal  `json:"net_pay"`
}

// ========== EXCEPTION DTOs ==========

type ExceptionFilter struct {
	Severity       *string `json:"severity,omitempty"`
	Type           *string `json:"type,omitempty"`
	UnresolvedOnly bool    `json:"unresolved_only"`
}

func (f *ExceptionFilter) Validate() error {
	var errs validator.ValidationErrors

	if f.Severity != nil && !validator.IsInSlice(*f.Severity, []string{string(SeverityInfo), string(SeverityWarn), string(SeverityCrit)}) {
		errs = append(errs, validator.ValidationError{Field: "severity", Message: "must be INFO, WARN or CRIT"})
	}
	if f.Type != nil && !validator.IsInSlice(*f.Type, []string{
		string(ExceptionHoursMismatch),
		string(ExceptionLowActivity),
		string(ExceptionMissingPortalAllocation),
		string(ExceptionUnassignedExternalTime),
	}) {
		errs = append(errs, validator.ValidationError{Field: "type", Message: "is not a known exception type"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Matches reports whether e passes the filter.
func (f ExceptionFilter) Matches(e PayrollRunException) bool {
	if f.Severity != nil && string(e.Severity) != *f.Severity {
		return false
	}
	if f.Type != nil && string(e.Type) != *f.Type {
		return false
	}
	if f.UnresolvedOnly && e.Resolved {
		return false
	}
	return true
}

type ResolveExceptionRequest struct {
	RunID       string  `json:"-"`
	ExceptionID string  `json:"-"`
	ResolvedBy  string  `json:"-"`
	Note        *string `json:"note,omitempty"`
}

func (r *ResolveExceptionRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.RunID) {
		errs = append(errs, validator.ValidationError{Field: "run_id", Message: "is required"})
	}
	if validator.IsEmpty(r.ExceptionID) {
		errs = append(errs, validator.ValidationError{Field: "exception_id", Message: "is required"})
	}
	if validator.IsEmpty(r.ResolvedBy) {
		errs = append(errs, validator.ValidationError{Field: "resolved_by", Message: "is required"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type PayrollRunExceptionResponse struct {
	ID             string           `json:"id"`
	WorkerID       *string          `json:"worker_id"`
	Type           string           `json:"type"`
	Severity       string           `json:"severity"`
	Source         *string          `json:"source,omitempty"`
	PortalHours    *decimal.Decimal `json:"portal_hours,omitempty"`
	ExternalHours  *decimal.Decimal `json:"external_hours,omitempty"`
	Details        string           `json:"details"`
	Resolved       bool             `json:"resolved"`
	ResolvedBy     *string          `json:"resolved_by,omitempty"`
	ResolvedAt     *string          `json:"resolved_at,omitempty"`
	ResolutionNote *string          `json:"resolution_note,omitempty"`
}

// ========== DETAIL DTOs ==========

type PayrollRunSummary struct {
	WorkerCount         int             `json:"worker_count"`
	TotalGrossPay       decimal.Decimal `json:"total_gross_pay"`
	TotalNetPay         decimal.Decimal `json:"total_net_pay"`
	TotalReimbursements decimal.Decimal `json:"total_reimbursements"`
	TotalDeductions     decimal.Decimal `json:"total_deductions"`
	ExceptionCounts     map[string]int  `json:"exception_counts"`
	UnresolvedCount     int             `json:"unresolved_count"`
}

type PayrollRunDetailResponse struct {
	Run        PayrollRunResponse            `json:"run"`
	Summary    PayrollRunSummary             `json:"summary"`
	Lines      []PayrollRunLineResponse      `json:"lines"`
	Exceptions []PayrollRunExceptionResponse `json:"exceptions"`
}
