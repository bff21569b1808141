package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/cmlabs-hris/payroll-engine/internal/config"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/payroll-engine/internal/repository/postgresql"
	payrollService "github.com/cmlabs-hris/payroll-engine/internal/service/payroll"
	"github.com/spf13/cobra"
)

var (
	createRunType          string
	createPeriodStart      string
	createPeriodEnd        string
	createIncludeSubmitted bool

	calculateTolerance string
	calculateThreshold string

	listStatus string
	listPage   int
	listLimit  int

	exceptionSeverity   string
	exceptionType       string
	exceptionUnresolved bool

	resolveNote string

	tokenRole string
)

func init() {
	// create command
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a draft payroll run",
		RunE:  runCreate,
	}
	createCmd.Flags().StringVar(&createRunType, "type", string(payroll.RunTypeRegular), "run type: regular, off_cycle or correction")
	createCmd.Flags().StringVar(&createPeriodStart, "start", "", "period start (YYYY-MM-DD)")
	createCmd.Flags().StringVar(&createPeriodEnd, "end", "", "period end (YYYY-MM-DD)")
	createCmd.Flags().BoolVar(&createIncludeSubmitted, "include-submitted", false, "pay submitted as well as approved hours")
	_ = createCmd.MarkFlagRequired("start")
	_ = createCmd.MarkFlagRequired("end")
	rootCmd.AddCommand(createCmd)

	// list command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List payroll runs",
		RunE:  runList,
	}
	listCmd.Flags().StringVar(&listStatus, "status", "", "filter by status")
	listCmd.Flags().IntVar(&listPage, "page", 1, "page number")
	listCmd.Flags().IntVar(&listLimit, "limit", 20, "runs per page")
	rootCmd.AddCommand(listCmd)

	// show command
	showCmd := &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show a run with its lines, exceptions and summary",
		Args:  cobra.ExactArgs(1),
		RunE:  runShow,
	}
	rootCmd.AddCommand(showCmd)

	// calculate command
	calculateCmd := &cobra.Command{
		Use:   "calculate RUN_ID",
		Short: "Calculate or recalculate a run",
		Args:  cobra.ExactArgs(1),
		RunE:  runCalculate,
	}
	calculateCmd.Flags().StringVar(&calculateTolerance, "tolerance-hours", "", "override the hours mismatch tolerance")
	calculateCmd.Flags().StringVar(&calculateThreshold, "activity-threshold", "", "override the low activity threshold percent")
	rootCmd.AddCommand(calculateCmd)

	// finalize command
	finalizeCmd := &cobra.Command{
		Use:   "finalize RUN_ID",
		Short: "Finalize a calculated run",
		Args:  cobra.ExactArgs(1),
		RunE:  runFinalize,
	}
	rootCmd.AddCommand(finalizeCmd)

	// exceptions command
	exceptionsCmd := &cobra.Command{
		Use:   "exceptions RUN_ID",
		Short: "List a run's exceptions",
		Args:  cobra.ExactArgs(1),
		RunE:  runExceptions,
	}
	exceptionsCmd.Flags().StringVar(&exceptionSeverity, "severity", "", "filter by severity: INFO, WARN or CRIT")
	exceptionsCmd.Flags().StringVar(&exceptionType, "type", "", "filter by exception type")
	exceptionsCmd.Flags().BoolVar(&exceptionUnresolved, "unresolved", false, "only unresolved exceptions")
	rootCmd.AddCommand(exceptionsCmd)

	// resolve command
	resolveCmd := &cobra.Command{
		Use:   "resolve RUN_ID EXCEPTION_ID",
		Short: "Mark an exception resolved",
		Args:  cobra.ExactArgs(2),
		RunE:  runResolve,
	}
	resolveCmd.Flags().StringVar(&resolveNote, "note", "", "resolution note")
	rootCmd.AddCommand(resolveCmd)

	// token command
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API access token for the actor",
		RunE:  runToken,
	}
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(jwt.RoleViewer), "role: viewer, operator or approver")
	rootCmd.AddCommand(tokenCmd)
}

// openService connects to the configured database and builds the payroll
// service. The returned func closes the pool.
func openService(ctx context.Context) (payroll.PayrollService, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL(), database.Options{MaxConns: 4, MinConns: 1})
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	svc := payrollService.NewPayrollService(
		postgresql.NewPayrollRunRepository(db),
		postgresql.NewPayrollSourceRepository(db),
		payrollService.Config{
			ToleranceHours:         cfg.Payroll.ToleranceHours,
			ActivityThreshold:      cfg.Payroll.ActivityThreshold,
			HoursPerDay:            cfg.Payroll.HoursPerDay,
			TimeOffBucketCode:      cfg.Payroll.TimeOffBucketCode,
			InternalWorkBucketCode: cfg.Payroll.InternalWorkBucketCode,
		},
	)
	return svc, db.Close, nil
}

func withService(cmd *cobra.Command, fn func(ctx context.Context, svc payroll.PayrollService) (any, error)) error {
	ctx := cmd.Context()
	svc, closeDB, err := openService(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	result, err := fn(ctx, svc)
	if err != nil {
		return describe(err)
	}
	return printJSON(result)
}

func runCreate(cmd *cobra.Command, args []string) error {
	return withService(cmd, func(ctx context.Context, svc payroll.PayrollService) (any, error) {
		return svc.CreateRun(ctx, payroll.CreatePayrollRunRequest{
			RunType:          createRunType,
			PeriodStart:      createPeriodStart,
			PeriodEnd:        createPeriodEnd,
			IncludeSubmitted: createIncludeSubmitted,
			CreatedBy:        actor,
		})
	})
}

func runList(cmd *cobra.Command, args []string) error {
	return withService(cmd, func(ctx context.Context, svc payroll.PayrollService) (any, error) {
		filter := payroll.PayrollRunFilter{Page: listPage, Limit: listLimit}
		if listStatus != "" {
			filter.Status = &listStatus
		}
		return svc.ListRuns(ctx, filter)
	})
}

func runShow(cmd *cobra.Command, args []string) error {
	return withService(cmd, func(ctx context.Context, svc payroll.PayrollService) (any, error) {
		return svc.GetRun(ctx, args[0])
	})
}

func runCalculate(cmd *cobra.Command, args []string) error {
	req := payroll.CalculatePayrollRunRequest{RunID: args[0]}
	var err error
	if req.ToleranceHours, err = optionalDecimal("tolerance-hours", calculateTolerance); err != nil {
		return err
	}
	if req.ActivityThreshold, err = optionalDecimal("activity-threshold", calculateThreshold); err != nil {
		return err
	}

	return withService(cmd, func(ctx context.Context, svc payroll.PayrollService) (any, error) {
		return svc.CalculateRun(ctx, req)
	})
}

func runFinalize(cmd *cobra.Command, args []string) error {
	return withService(cmd, func(ctx context.Context, svc payroll.PayrollService) (any, error) {
		return svc.FinalizeRun(ctx, payroll.FinalizePayrollRunRequest{RunID: args[0], FinalizedBy: actor})
	})
}

func runExceptions(cmd *cobra.Command, args []string) error {
	filter := payroll.ExceptionFilter{UnresolvedOnly: exceptionUnresolved}
	if exceptionSeverity != "" {
		filter.Severity = &exceptionSeverity
	}
	if exceptionType != "" {
		filter.Type = &exceptionType
	}

	return withService(cmd, func(ctx context.Context, svc payroll.PayrollService) (any, error) {
		return svc.ListExceptions(ctx, args[0], filter)
	})
}

func runResolve(cmd *cobra.Command, args []string) error {
	req := payroll.ResolveExceptionRequest{RunID: args[0], ExceptionID: args[1], ResolvedBy: actor}
	if resolveNote != "" {
		req.Note = &resolveNote
	}

	return withService(cmd, func(ctx context.Context, svc payroll.PayrollService) (any, error) {
		return svc.ResolveException(ctx, req)
	})
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	role := jwt.Role(tokenRole)
	switch role {
	case jwt.RoleViewer, jwt.RoleOperator, jwt.RoleApprover:
	default:
		return fmt.Errorf("unknown role %q", tokenRole)
	}

	token, expiresAt, err := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration).GenerateAccessToken(actor, role)
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}
	return printJSON(map[string]any{"access_token": token, "expires_at": expiresAt})
}
