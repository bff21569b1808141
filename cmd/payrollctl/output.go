package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func optionalDecimal(flag, value string) (*decimal.Decimal, error) {
	if value == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s: %w", flag, err)
	}
	return &d, nil
}

// describe turns service errors into operator-facing messages.
func describe(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		parts := make([]string, 0, len(validationErrs))
		for _, e := range validationErrs {
			parts = append(parts, e.Field+" "+e.Message)
		}
		return fmt.Errorf("invalid request: %s", strings.Join(parts, "; "))
	}

	var calcErr *payroll.CalculationError
	if errors.As(err, &calcErr) {
		return fmt.Errorf("calculation of run %s failed at %s (previous results kept, safe to retry): %w", calcErr.RunID, calcErr.Stage, calcErr.Err)
	}
	return err
}
