package cmd

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the classifier from collected samples",
	Long: `Train the LBPH classifier on every labeled student's samples in
data/raw/<username>/ (png, jpg, jpeg). Samples are converted to grayscale
and resized to 200x200. The model is saved to trained_model/.

Examples:
  face-attendance train
  face-attendance train --json`,
	Args: cobra.NoArgs,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().Bool("json", false, "Output as JSON instead of progress bar")
}

func runTrain(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	_, svc, _, err := loadService()
	if err != nil {
		return err
	}
	defer svc.Close()

	var bar *progressbar.ProgressBar
	progress := func(done, total int) {
		if jsonOutput {
			return
		}
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("Loading samples"),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
				progressbar.OptionSetItsString("images"),
				progressbar.OptionSetPredictTime(true),
				progressbar.OptionFullWidth(),
			)
		}
		_ = bar.Set(done)
	}

	result, err := svc.Train(progress)
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		return outputJSON(result)
	}
	for _, username := range result.Missing {
		fmt.Printf("Warning: no samples directory for %s, skipped\n", username)
	}
	for _, path := range result.Skipped {
		fmt.Printf("Warning: could not decode %s, skipped\n", path)
	}
	fmt.Printf("Trained on %d sample(s) from %d student(s)\n", result.Samples, result.Students)
	fmt.Printf("Model saved to %s\n", result.Model)
	return nil
}
