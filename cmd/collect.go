package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/camera"
)

var collectCmd = &cobra.Command{
	Use:   "collect <username>",
	Short: "Collect face samples of a registered student",
	Long: `Capture grayscale face crops of a registered student from the camera
into data/raw/<username>/ for classifier training. Frames that do not show
exactly one face are skipped.

Examples:
  face-attendance collect 101
  face-attendance collect 101 --samples 20 --camera ./frames`,
	Args: cobra.ExactArgs(1),
	RunE: runCollect,
}

func init() {
	rootCmd.AddCommand(collectCmd)

	collectCmd.Flags().Int("samples", 0, "Number of samples (default SAMPLE_COUNT)")
	collectCmd.Flags().String("camera", "", "Device index or frame directory (default CAMERA_DEVICE)")
}

func runCollect(cmd *cobra.Command, args []string) error {
	cfg, svc, _, err := loadService()
	if err != nil {
		return err
	}
	defer svc.Close()

	device := mustGetString(cmd, "camera")
	if device == "" {
		device = cfg.Session.Camera
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	saved, err := collectWithProgress(ctx, svc, device, args[0], mustGetInt(cmd, "samples"))
	if err != nil {
		return err
	}
	fmt.Printf("Collected %d sample(s) in %s\n", saved, svc.SamplesDir(args[0]))
	return nil
}

// collectWithProgress opens the camera and collects samples behind a progress bar.
func collectWithProgress(ctx context.Context, svc *attendance.Service, device, username string, count int) (int, error) {
	if count <= 0 {
		count = svc.SampleCount()
	}
	src, err := camera.Open(device)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	fmt.Printf("Look at the camera. Collecting %d sample(s) of %s...\n", count, username)
	bar := progressbar.NewOptions(count,
		progressbar.OptionSetDescription("Collecting samples"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("samples"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)
	saved, err := svc.CollectSamples(ctx, username, src, count, func(int) { _ = bar.Add(1) })
	_ = bar.Finish()
	fmt.Println()
	return saved, err
}
