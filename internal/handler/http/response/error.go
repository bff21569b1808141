package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	case errors.Is(err, payroll.ErrPayrollRunNotFound):
		NotFound(w, "Payroll run not found")
	case errors.Is(err, payroll.ErrExceptionNotFound):
		NotFound(w, "Payroll run exception not found")

	case errors.Is(err, payroll.ErrRunFinalized):
		Conflict(w, "Payroll run is finalized and cannot be recalculated")
	case errors.Is(err, payroll.ErrRunAlreadyFinalized):
		Conflict(w, "Payroll run already finalized")
	case errors.Is(err, payroll.ErrRunNotCalculated):
		Conflict(w, "Payroll run must be calculated before it can be finalized")
	case errors.Is(err, payroll.ErrExceptionResolved):
		Conflict(w, "Payroll run exception already resolved")

	case errors.Is(err, payroll.ErrForbidden):
		Forbidden(w, "Insufficient role for this payroll operation")
	case errors.Is(err, payroll.ErrInvalidPeriod):
		BadRequest(w, err.Error(), nil)

	default:
		var calcErr *payroll.CalculationError
		if errors.As(err, &calcErr) {
			slog.Error("payroll calculation failed", "run_id", calcErr.RunID, "stage", calcErr.Stage, "error", calcErr.Err)
			CalculationFailed(w, map[string]string{
				"run_id": calcErr.RunID,
				"stage":  string(calcErr.Stage),
			})
			return
		}
		slog.Error("unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}
