package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	actor   string
	rootCmd = &cobra.Command{
		Use:   "payrollctl",
		Short: "Payroll run operator tool",
		Long: `payrollctl drives payroll runs directly against the database:
create a run for a period, calculate it, review and resolve its
exceptions, and finalize it once the numbers are approved.`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&actor, "actor", os.Getenv("USER"), "user recorded as creator, resolver or finalizer")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
