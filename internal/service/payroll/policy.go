package payroll

import (
	"fmt"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/shopspring/decimal"
)

// PayInput is shared by every pay policy.
type PayInput struct {
	ExpectedDays   int
	TimeOffDays    decimal.Decimal
	HolidayDays    int
	PayableHours   decimal.Decimal
	CatchUpHours   decimal.Decimal
	Reimbursements decimal.Decimal
	Deductions     decimal.Decimal
}

// PayPolicy computes gross pay for one compensation model.
type PayPolicy interface {
	Model() payroll.PayModel
	Rate() decimal.Decimal
	GrossPay(in PayInput) decimal.Decimal
}

// HourlyPayPolicy pays every payable and catch-up hour at the hourly rate.
type HourlyPayPolicy struct {
	HourlyRate decimal.Decimal
}

func (p HourlyPayPolicy) Model() payroll.PayModel { return payroll.PayModelHourly }

func (p HourlyPayPolicy) Rate() decimal.Decimal { return p.HourlyRate }

func (p HourlyPayPolicy) GrossPay(in PayInput) decimal.Decimal {
	return in.PayableHours.Add(in.CatchUpHours).Mul(p.HourlyRate)
}

// SalariedPayPolicy prorates the flat period rate by unpaid days.
// Logged and catch-up hours never change salaried pay.
type SalariedPayPolicy struct {
	FlatPeriodRate decimal.Decimal
}

func (p SalariedPayPolicy) Model() payroll.PayModel { return payroll.PayModelSalaried }

func (p SalariedPayPolicy) Rate() decimal.Decimal { return p.FlatPeriodRate }

func (p SalariedPayPolicy) GrossPay(in PayInput) decimal.Decimal {
	expected := decimal.NewFromInt(int64(in.ExpectedDays))
	unpaid := decimal.Min(expected, in.TimeOffDays.Add(decimal.NewFromInt(int64(in.HolidayDays))))

	denominator := expected
	if in.ExpectedDays <= 0 {
		denominator = decimal.NewFromInt(1)
	}

	paidDays := expected.Sub(unpaid)
	if paidDays.IsNegative() {
		return decimal.Zero
	}
	return p.FlatPeriodRate.Mul(paidDays).Div(denominator)
}

// PolicyFor selects the pay policy for a worker's compensation model.
func PolicyFor(w payroll.Worker) (PayPolicy, error) {
	switch w.PayModel {
	case payroll.PayModelHourly:
		return HourlyPayPolicy{HourlyRate: w.HourlyRate}, nil
	case payroll.PayModelSalaried:
		return SalariedPayPolicy{FlatPeriodRate: w.FlatPeriodRate}, nil
	default:
		return nil, fmt.Errorf("worker %s: %w: %q", w.ID, payroll.ErrUnknownPayModel, w.PayModel)
	}
}

// NetPay applies adjustments to gross pay.
func NetPay(gross decimal.Decimal, in PayInput) decimal.Decimal {
	return gross.Add(in.Reimbursements).Sub(in.Deductions)
}
