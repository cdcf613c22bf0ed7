package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/punchclock/internal/attendance"
	"github.com/kozaktomas/punchclock/internal/database"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the monthly attendance report",
	Long: `Print present days and late days per employee for a month.
Only employees with at least one record in the month are listed.

Examples:
  punchclock report --month 2025-03
  punchclock report --json`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("month", "", "Month as YYYY-MM (default: current month at the site)")
	reportCmd.Flags().Bool("json", false, "Output as JSON")
}

func runReport(cmd *cobra.Command, args []string) error {
	month := mustGetString(cmd, "month")
	jsonOutput := mustGetBool(cmd, "json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if month == "" {
		loc, err := cfg.Location()
		if err != nil {
			return err
		}
		month = time.Now().In(loc).Format(attendance.MonthLayout)
	}
	from, to, err := attendance.MonthRange(month)
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	closeBackend, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer closeBackend()

	ctx := context.Background()
	employees, err := database.GetEmployeeReader(ctx)
	if err != nil {
		return err
	}
	records, err := database.GetAttendanceReader(ctx)
	if err != nil {
		return err
	}
	summaries, err := attendance.MonthlyReport(ctx, employees, records, from, to)
	if err != nil {
		return err
	}

	if jsonOutput {
		return outputJSON(map[string]any{"month": month, "employees": summaries})
	}
	fmt.Printf("Attendance report %s (%s to %s)\n\n", month, from.Format(database.DateLayout), to.Format(database.DateLayout))
	fmt.Printf("%-8s  %-30s  %7s  %4s\n", "ID", "NAME", "PRESENT", "LATE")
	for _, s := range summaries {
		fmt.Printf("%-8s  %-30s  %7d  %4d\n", s.EmployeeID, s.Name, s.PresentDays, s.LateDays)
	}
	return nil
}
