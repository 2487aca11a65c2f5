package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove stored descriptors and reset the attendance ledger",
	Long: `Remove every stored face descriptor and truncate attendance.csv to its
header. Students, labels, samples and the trained model are kept.

Example:
  face-attendance clear --yes`,
	Args: cobra.NoArgs,
	RunE: runClear,
}

func init() {
	rootCmd.AddCommand(clearCmd)

	clearCmd.Flags().Bool("yes", false, "Skip confirmation prompt")
}

func confirmAction(prompt string) bool {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	response, _ := reader.ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

func runClear(cmd *cobra.Command, args []string) error {
	skipConfirm := mustGetBool(cmd, "yes")

	_, svc, store, err := loadService()
	if err != nil {
		return err
	}
	defer svc.Close()

	stats, err := svc.Stats()
	if err != nil {
		return err
	}
	fmt.Printf("Data directory: %s\n", store.Dir())
	fmt.Printf("Descriptors: %d\n", stats.Descriptors)
	fmt.Printf("Attendance rows: %d\n", stats.Rows)

	if !skipConfirm && !confirmAction("\nDelete all descriptors and attendance rows? [y/N]: ") {
		fmt.Println("Cancelled.")
		return nil
	}

	if err := svc.Clear(); err != nil {
		return err
	}
	fmt.Printf("Done! Removed %d descriptor(s) and %d attendance row(s)\n", stats.Descriptors, stats.Rows)
	return nil
}
