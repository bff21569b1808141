package payroll

import (
	"errors"
	"fmt"
)

var (
	ErrPayrollRunNotFound  = errors.New("payroll run not found")
	ErrRunFinalized        = errors.New("payroll run is finalized, cannot recalculate")
	ErrRunNotCalculated    = errors.New("payroll run must be calculated before finalize")
	ErrRunAlreadyFinalized = errors.New("payroll run already finalized")
	ErrExceptionNotFound   = errors.New("payroll run exception not found")
	ErrExceptionResolved   = errors.New("payroll run exception already resolved")
	ErrInvalidPeriod       = errors.New("invalid payroll period")
	ErrUnknownPayModel     = errors.New("unknown pay model")
	ErrForbidden           = errors.New("insufficient role for this payroll operation")
)

// CalculationStage identifies the step of a calculation pass that failed.
type CalculationStage string

const (
	StageLoadRun     CalculationStage = "load_run"
	StageLoadSources CalculationStage = "load_sources"
	StageCompute     CalculationStage = "compute"
	StagePersist     CalculationStage = "persist"
)

// CalculationError wraps a failed calculation pass. Recalculation is
// idempotent, so callers can retry the same run after fixing the cause.
type CalculationError struct {
	RunID string
	Stage CalculationStage
	Err   error
}

func (e *CalculationError) Error() string {
	return fmt.Sprintf("calculate payroll run %s: %s: %v", e.RunID, e.Stage, e.Err)
}

func (e *CalculationError) Unwrap() error {
	return e.Err
}
