package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/payroll-engine/internal/repository/memory"
	payrollService "github.com/cmlabs-hris/payroll-engine/internal/service/payroll"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const handlerTestSecret = "test-secret-key-for-jwt"

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(context.Context) error {
	return p.err
}

type envelope struct {
	Success bool                  `json:"success"`
	Message string                `json:"message"`
	Data    json.RawMessage       `json:"data"`
	Error   *response.ErrorDetail `json:"error"`
	Meta    *response.Meta        `json:"meta"`
}

type handlerFixture struct {
	t       *testing.T
	jwt     jwt.Service
	sources *memory.SourceStore
	router  http.Handler
}

func newHandlerFixture(t *testing.T, readiness Pinger) *handlerFixture {
	t.Helper()

	sources := memory.NewSourceStore()
	sources.AddClient("client-pto", "PTO")
	sources.AddClient("client-internal", "INTERNAL")
	sources.AddClient("client-acme", "ACME")

	svc := payrollService.NewPayrollService(memory.NewRunStore(), sources, payrollService.DefaultConfig())
	jwtService := jwt.NewJWTService(handlerTestSecret, "1h")

	return &handlerFixture{
		t:       t,
		jwt:     jwtService,
		sources: sources,
		router:  NewRouter(RouterOptions{AllowedOrigins: []string{"http://localhost:3000"}, Env: "test"}, jwtService, NewPayrollHandler(svc), readiness),
	}
}

// seedFebruary logs 8 approved hours at $50 on every February 2026 weekday,
// plus one unassigned external tracker row.
func (f *handlerFixture) seedFebruary() {
	f.sources.AddWorker(payroll.Worker{
		ID:         "w-hourly",
		Name:       "Hana",
		PayModel:   payroll.PayModelHourly,
		HourlyRate: decimal.NewFromInt(50),
		IsActive:   true,
	})
	for d := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC); d.Month() == time.February; d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		f.sources.AddInternalTime(payroll.InternalTimeRecord{
			WorkerID:    "w-hourly",
			WorkDate:    d,
			ClientID:    "client-acme",
			Status:      payroll.TimeEntryApproved,
			ClientHours: decimal.NewFromInt(8),
		})
	}
	f.sources.AddExternalTime(payroll.ExternalTimeRecord{
		WorkDate:    time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC),
		Hours:       decimal.NewFromInt(3),
		ActivityPct: decimal.NewFromInt(80),
	})
}

func (f *handlerFixture) token(userID string, role jwt.Role) string {
	f.t.Helper()
	token, _, err := f.jwt.GenerateAccessToken(userID, role)
	require.NoError(f.t, err)
	return token
}

func (f *handlerFixture) do(method, path, token string, body any) (int, envelope) {
	f.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(f.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func (f *handlerFixture) createRun(token string) payroll.PayrollRunResponse {
	f.t.Helper()

	code, env := f.do(http.MethodPost, "/api/v1/payroll-runs", token, map[string]any{
		"run_type":     "regular",
		"period_start": "2026-02-01",
		"period_end":   "2026-02-28",
	})
	require.Equal(f.t, http.StatusCreated, code, env.Error)

	var run payroll.PayrollRunResponse
	require.NoError(f.t, json.Unmarshal(env.Data, &run))
	return run
}

func TestPayrollHandler_RequiresToken(t *testing.T) {
	f := newHandlerFixture(t, stubPinger{})

	code, env := f.do(http.MethodGet, "/api/v1/payroll-runs", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, env.Success)

	code, _ = f.do(http.MethodGet, "/api/v1/payroll-runs", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestPayrollHandler_ViewerCannotCreate(t *testing.T) {
	f := newHandlerFixture(t, stubPinger{})

	code, env := f.do(http.MethodPost, "/api/v1/payroll-runs", f.token("viewer-1", jwt.RoleViewer), map[string]any{
		"run_type":     "regular",
		"period_start": "2026-02-01",
		"period_end":   "2026-02-28",
	})
	assert.Equal(t, http.StatusForbidden, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)
}

func TestPayrollHandler_CreateRun_UsesActor(t *testing.T) {
	f := newHandlerFixture(t, stubPinger{})

	run := f.createRun(f.token("operator-1", jwt.RoleOperator))

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "operator-1", run.CreatedBy)
	assert.Equal(t, string(payroll.RunStatusDraft), run.Status)
}

func TestPayrollHandler_CreateRun_ValidationError(t *testing.T) {
	f := newHandlerFixture(t, stubPinger{})

	code, env := f.do(http.MethodPost, "/api/v1/payroll-runs", f.token("operator-1", jwt.RoleOperator), map[string]any{
		"run_type":     "regular",
		"period_start": "2026-02-30",
		"period_end":   "2026-02-28",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Details, "period_start")
}

func TestPayrollHandler_GetRun_NotFound(t *testing.T) {
	f := newHandlerFixture(t, stubPinger{})

	code, env := f.do(http.MethodGet, "/api/v1/payroll-runs/0192a4f0-0000-7000-8000-000000000000", f.token("viewer-1", jwt.RoleViewer), nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestPayrollHandler_Lifecycle(t *testing.T) {
	f := newHandlerFixture(t, stubPinger{})
	f.seedFebruary()
	operator := f.token("operator-1", jwt.RoleOperator)
	approver := f.token("approver-1", jwt.RoleApprover)

	run := f.createRun(operator)
	base := "/api/v1/payroll-runs/" + run.ID

	code, env := f.do(http.MethodPost, base+"/finalize", approver, nil)
	assert.Equal(t, http.StatusConflict, code, "draft runs cannot be finalized")

	code, env = f.do(http.MethodPost, base+"/calculate", operator, nil)
	require.Equal(t, http.StatusOK, code, env.Error)

	var detail payroll.PayrollRunDetailResponse
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	assert.Equal(t, string(payroll.RunStatusCalculated), detail.Run.Status)
	require.Len(t, detail.Lines, 1)
	assert.True(t, decimal.NewFromInt(8000).Equal(detail.Lines[0].GrossPay), detail.Lines[0].GrossPay.String())
	require.Len(t, detail.Exceptions, 1)
	assert.Equal(t, string(payroll.ExceptionUnassignedExternalTime), detail.Exceptions[0].Type)
	assert.Equal(t, 1, detail.Summary.WorkerCount)

	code, _ = f.do(http.MethodPost, base+"/finalize", operator, nil)
	assert.Equal(t, http.StatusForbidden, code, "operators cannot finalize")

	code, env = f.do(http.MethodPost, base+"/finalize", approver, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	assert.Equal(t, string(payroll.RunStatusFinalized), detail.Run.Status)
	require.NotNil(t, detail.Run.FinalizedBy)
	assert.Equal(t, "approver-1", *detail.Run.FinalizedBy)

	code, env = f.do(http.MethodPost, base+"/calculate", operator, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "CONFLICT", env.Error.Code)

	code, _ = f.do(http.MethodPost, base+"/finalize", approver, nil)
	assert.Equal(t, http.StatusConflict, code)
}

func TestPayrollHandler_CalculateRun_Overrides(t *testing.T) {
	f := newHandlerFixture(t, stubPinger{})
	f.seedFebruary()
	operator := f.token("operator-1", jwt.RoleOperator)
	run := f.createRun(operator)

	code, env := f.do(http.MethodPost, "/api/v1/payroll-runs/"+run.ID+"/calculate", operator, map[string]any{
		"tolerance_hours": "1.5",
	})
	require.Equal(t, http.StatusOK, code, env.Error)

	var detail payroll.PayrollRunDetailResponse
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	require.NotNil(t, detail.Run.ToleranceHours)
	assert.True(t, decimal.RequireFromString("1.5").Equal(*detail.Run.ToleranceHours))

	code, env = f.do(http.MethodPost, "/api/v1/payroll-runs/"+run.ID+"/calculate", operator, map[string]any{
		"activity_threshold": "120",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, env.Error.Details, "activity_threshold")
}

func TestPayrollHandler_ListRuns(t *testing.T) {
	f := newHandlerFixture(t, stubPinger{})
	operator := f.token("operator-1", jwt.RoleOperator)
	for i := 0; i < 3; i++ {
		f.createRun(operator)
	}

	code, env := f.do(http.MethodGet, "/api/v1/payroll-runs?page=1&limit=2&status=draft", f.token("viewer-1", jwt.RoleViewer), nil)
	require.Equal(t, http.StatusOK, code)

	var runs []payroll.PayrollRunResponse
	require.NoError(t, json.Unmarshal(env.Data, &runs))
	assert.Len(t, runs, 2)
	require.NotNil(t, env.Meta)
	assert.Equal(t, int64(3), env.Meta.TotalItems)
	assert.Equal(t, 2, env.Meta.TotalPages)

	code, _ = f.do(http.MethodGet, "/api/v1/payroll-runs?page=abc", f.token("viewer-1", jwt.RoleViewer), nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestPayrollHandler_Exceptions(t *testing.T) {
	f := newHandlerFixture(t, stubPinger{})
	f.seedFebruary()
	operator := f.token("operator-1", jwt.RoleOperator)
	viewer := f.token("viewer-1", jwt.RoleViewer)
	run := f.createRun(operator)
	base := "/api/v1/payroll-runs/" + run.ID

	code, env := f.do(http.MethodPost, base+"/calculate", operator, nil)
	require.Equal(t, http.StatusOK, code, env.Error)

	code, env = f.do(http.MethodGet, base+"/exceptions?severity=WARN&unresolved=true", viewer, nil)
	require.Equal(t, http.StatusOK, code)
	var exceptions []payroll.PayrollRunExceptionResponse
	require.NoError(t, json.Unmarshal(env.Data, &exceptions))
	require.Len(t, exceptions, 1)

	code, _ = f.do(http.MethodGet, base+"/exceptions?severity=LOUD", viewer, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	resolvePath := base + "/exceptions/" + exceptions[0].ID + "/resolve"
	code, _ = f.do(http.MethodPost, resolvePath, viewer, map[string]any{"note": "checked"})
	assert.Equal(t, http.StatusForbidden, code)

	code, env = f.do(http.MethodPost, resolvePath, operator, map[string]any{"note": "tracker seat shared by contractors"})
	require.Equal(t, http.StatusOK, code, env.Error)
	var resolved payroll.PayrollRunExceptionResponse
	require.NoError(t, json.Unmarshal(env.Data, &resolved))
	assert.True(t, resolved.Resolved)
	require.NotNil(t, resolved.ResolvedBy)
	assert.Equal(t, "operator-1", *resolved.ResolvedBy)

	code, _ = f.do(http.MethodPost, resolvePath, operator, nil)
	assert.Equal(t, http.StatusConflict, code)

	code, env = f.do(http.MethodGet, base+"/exceptions?unresolved=true", viewer, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &exceptions))
	assert.Empty(t, exceptions)

	code, _ = f.do(http.MethodPost, base+"/exceptions/0192a4f0-0000-7000-8000-000000000000/resolve", operator, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRouter_HealthAndReadiness(t *testing.T) {
	f := newHandlerFixture(t, stubPinger{})

	code, env := f.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)

	code, _ = f.do(http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, code)

	down := newHandlerFixture(t, stubPinger{err: errors.New("connection refused")})
	code, env = down.do(http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "SERVICE_UNAVAILABLE", env.Error.Code)
}
