package payroll

import "context"

type PayrollService interface {
	CreateRun(ctx context.Context, req CreatePayrollRunRequest) (PayrollRunResponse, error)
	ListRuns(ctx context.Context, filter PayrollRunFilter) (ListPayrollRunResponse, error)
	GetRun(ctx context.Context, id string) (PayrollRunDetailResponse, error)
	CalculateRun(ctx context.Context, req CalculatePayrollRunRequest) (PayrollRunDetailResponse, error)
	FinalizeRun(ctx context.Context, req FinalizePayrollRunRequest) (PayrollRunDetailResponse, error)
	ListExceptions(ctx context.Context, runID string, filter ExceptionFilter) ([]PayrollRunExceptionResponse, error)
	ResolveException(ctx context.Context, req ResolveExceptionRequest) (PayrollRunExceptionResponse, error)
}
