package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
)

type PayrollHandler interface {
	// Runs
	CreateRun(w http.ResponseWriter, r *http.Request)
	ListRuns(w http.ResponseWriter, r *http.Request)
	GetRun(w http.ResponseWriter, r *http.Request)

	// Lifecycle
	CalculateRun(w http.ResponseWriter, r *http.Request)
	FinalizeRun(w http.ResponseWriter, r *http.Request)

	// Exceptions
	ListExceptions(w http.ResponseWriter, r *http.Request)
	ResolveException(w http.ResponseWriter, r *http.Request)
}

type payrollHandlerImpl struct {
	payrollService payroll.PayrollService
}

func NewPayrollHandler(payrollService payroll.PayrollService) PayrollHandler {
	return &payrollHandlerImpl{payrollService: payrollService}
}

// ========== RUNS ==========

func (h *payrollHandlerImpl) CreateRun(w http.ResponseWriter, r *http.Request) {
	actor, err := jwt.ActorFromContext(r.Context())
	if err != nil {
		response.Unauthorized(w, "Invalid token")
		return
	}

	var req payroll.CreatePayrollRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.CreatedBy = actor.UserID

	result, err := h.payrollService.CreateRun(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Payroll run created", result)
}

func (h *payrollHandlerImpl) ListRuns(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var filter payroll.PayrollRunFilter
	if status := query.Get("status"); status != "" {
		filter.Status = &status
	}
	page, err := intParam(query.Get("page"))
	if err != nil {
		response.BadRequest(w, "Invalid page", nil)
		return
	}
	limit, err := intParam(query.Get("limit"))
	if err != nil {
		response.BadRequest(w, "Invalid limit", nil)
		return
	}
	filter.Page = page
	filter.Limit = limit

	result, err := h.payrollService.ListRuns(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMeta(w, result.Data, response.NewMeta(result.Page, result.Limit, result.TotalCount))
}

func (h *payrollHandlerImpl) GetRun(w http.ResponseWriter, r *http.Request) {
	result, err := h.payrollService.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// ========== LIFECYCLE ==========

func (h *payrollHandlerImpl) CalculateRun(w http.ResponseWriter, r *http.Request) {
	var req payroll.CalculatePayrollRunRequest
	// The body is optional: an empty one calculates with the configured defaults.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.RunID = chi.URLParam(r, "id")

	result, err := h.payrollService.CalculateRun(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll run calculated", result)
}

func (h *payrollHandlerImpl) FinalizeRun(w http.ResponseWriter, r *http.Request) {
	actor, err := jwt.ActorFromContext(r.Context())
	if err != nil {
		response.Unauthorized(w, "Invalid token")
		return
	}

	result, err := h.payrollService.FinalizeRun(r.Context(), payroll.FinalizePayrollRunRequest{
		RunID:       chi.URLParam(r, "id"),
		FinalizedBy: actor.UserID,
	})
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll run finalized", result)
}

// ========== EXCEPTIONS ==========

func (h *payrollHandlerImpl) ListExceptions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var filter payroll.ExceptionFilter
	if severity := query.Get("severity"); severity != "" {
		filter.Severity = &severity
	}
	if exceptionType := query.Get("type"); exceptionType != "" {
		filter.Type = &exceptionType
	}
	if unresolved := query.Get("unresolved"); unresolved != "" {
		only, err := strconv.ParseBool(unresolved)
		if err != nil {
			response.BadRequest(w, "Invalid unresolved flag", nil)
			return
		}
		filter.UnresolvedOnly = only
	}

	result, err := h.payrollService.ListExceptions(r.Context(), chi.URLParam(r, "id"), filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) ResolveException(w http.ResponseWriter, r *http.Request) {
	actor, err := jwt.ActorFromContext(r.Context())
	if err != nil {
		response.Unauthorized(w, "Invalid token")
		return
	}

	var req payroll.ResolveExceptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.RunID = chi.URLParam(r, "id")
	req.ExceptionID = chi.URLParam(r, "exceptionID")
	req.ResolvedBy = actor.UserID

	result, err := h.payrollService.ResolveException(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll run exception resolved", result)
}

func intParam(value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}
