package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

var studentsCmd = &cobra.Command{
	Use:   "students [query]",
	Short: "List registered students",
	Long: `List registered students with their label id and whether a face
descriptor is stored. An optional query filters by username, name or branch,
ignoring case and diacritics.

Examples:
  face-attendance students
  face-attendance students asha --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStudents,
}

func init() {
	rootCmd.AddCommand(studentsCmd)

	studentsCmd.Flags().Bool("json", false, "Output as JSON")
}

func runStudents(cmd *cobra.Command, args []string) error {
	_, svc, _, err := loadService()
	if err != nil {
		return err
	}
	defer svc.Close()

	records, err := svc.StudentRecords()
	if err != nil {
		return err
	}
	if len(args) == 1 {
		filtered := records[:0]
		for _, r := range records {
			if facematch.MatchesQuery(args[0], r.Username, r.FullName, r.Branch) {
				filtered = append(filtered, r)
			}
		}
		records = filtered
	}

	if mustGetBool(cmd, "json") {
		if records == nil {
			records = []database.StudentRecord{}
		}
		return outputJSON(records)
	}
	if len(records) == 0 {
		fmt.Println("No students registered.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USERNAME\tNAME\tBRANCH\tLABEL\tDESCRIPTOR")
	for _, r := range records {
		label := "-"
		if r.LabelID != nil {
			label = fmt.Sprint(*r.LabelID)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", r.Username, r.FullName, r.Branch, label, r.HasFace)
	}
	return w.Flush()
}
