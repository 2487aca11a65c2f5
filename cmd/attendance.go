package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

var attendanceCmd = &cobra.Command{
	Use:     "attendance",
	Aliases: []string{"view"},
	Short:   "View, export and edit the attendance ledger",
}

var attendanceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List attendance rows",
	Long: `List attendance rows, optionally for one date. Missing names and
branches are filled in from students.json.

Examples:
  face-attendance attendance list
  face-attendance attendance list --today
  face-attendance attendance list --date 2024-03-14 --json`,
	Args: cobra.NoArgs,
	RunE: runAttendanceList,
}

var attendanceExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export attendance as CSV",
	Long: `Write the attendance ledger as CSV to a file or stdout.

Examples:
  face-attendance attendance export > all.csv
  face-attendance attendance export --date 2024-03-14 --output day.csv`,
	Args: cobra.NoArgs,
	RunE: runAttendanceExport,
}

var attendanceMarkCmd = &cobra.Command{
	Use:   "mark <username>",
	Short: "Mark a registered student present without the camera",
	Args:  cobra.ExactArgs(1),
	RunE:  runAttendanceMark,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)
	attendanceCmd.AddCommand(attendanceListCmd, attendanceExportCmd, attendanceMarkCmd)

	for _, c := range []*cobra.Command{attendanceListCmd, attendanceExportCmd} {
		c.Flags().String("date", "", "Only rows for this date (YYYY-MM-DD)")
		c.Flags().Bool("today", false, "Only rows for today")
	}
	attendanceListCmd.Flags().Bool("json", false, "Output as JSON")
	attendanceExportCmd.Flags().StringP("output", "o", "", "Output file (default stdout)")
	attendanceMarkCmd.Flags().Bool("json", false, "Output as JSON")
}

// dateFilter resolves --date and --today into a ledger date, empty for all rows.
func dateFilter(cmd *cobra.Command) (string, error) {
	date := mustGetString(cmd, "date")
	if mustGetBool(cmd, "today") {
		if date != "" {
			return "", errors.New("use either --date or --today")
		}
		return time.Now().Format(constants.DateLayout), nil
	}
	if date != "" {
		if _, err := time.Parse(constants.DateLayout, date); err != nil {
			return "", fmt.Errorf("invalid --date %q, expected YYYY-MM-DD", date)
		}
	}
	return date, nil
}

func runAttendanceList(cmd *cobra.Command, args []string) error {
	date, err := dateFilter(cmd)
	if err != nil {
		return err
	}
	_, svc, _, err := loadService()
	if err != nil {
		return err
	}
	defer svc.Close()

	rows, err := svc.Report(date)
	if err != nil {
		return err
	}
	if mustGetBool(cmd, "json") {
		return outputJSON(rows)
	}
	if len(rows) == 0 {
		fmt.Println("No attendance recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tUSERNAME\tNAME\tBRANCH\tTIME\tSTATUS")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", r.Date, r.Name, r.FullName, r.Branch, r.Time, r.Status)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d row(s)\n", len(rows))
	return nil
}

func runAttendanceExport(cmd *cobra.Command, args []string) error {
	date, err := dateFilter(cmd)
	if err != nil {
		return err
	}
	_, svc, _, err := loadService()
	if err != nil {
		return err
	}
	defer svc.Close()

	output := mustGetString(cmd, "output")
	if output == "" {
		_, err := svc.ExportCSV(os.Stdout, date)
		return err
	}

	f, err := os.Create(output) //nolint:gosec // path is a CLI argument
	if err != nil {
		return fmt.Errorf("creating %s: %w", output, err)
	}
	n, err := svc.ExportCSV(f, date)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Exported %d row(s) to %s\n", n, output)
	return nil
}

func runAttendanceMark(cmd *cobra.Command, args []string) error {
	_, svc, _, err := loadService()
	if err != nil {
		return err
	}
	defer svc.Close()

	outcome, row, err := svc.MarkManual(args[0])
	if err != nil {
		return err
	}
	if mustGetBool(cmd, "json") {
		return outputJSON(map[string]any{"outcome": outcome, "row": row})
	}
	fmt.Printf("%s: %s\n", args[0], outcome)
	return nil
}
