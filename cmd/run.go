package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Take attendance from the camera",
	Long: `Start a recognition session. Every recognised student is marked present
once per day in attendance.csv. Stop with Ctrl+C or by typing q and Enter.

CAMERA_DEVICE (or --camera) is a device index such as 0, or a directory of
frame images, which is processed once in name order.

Examples:
  face-attendance run
  face-attendance run --camera ./frames --json
  MATCH_STRATEGY=classifier face-attendance run`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("camera", "", "Device index or frame directory (default CAMERA_DEVICE)")
	runCmd.Flags().Float64("tolerance", 0, "Override MATCH_TOLERANCE for the descriptor strategy")
	runCmd.Flags().Bool("json", false, "Print frame events as JSON lines")
}

// watchQuit cancels when a line starting with q is read from stdin.
func watchQuit(cancel context.CancelFunc) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(scanner.Text())), "q") {
			cancel()
			return
		}
	}
}

func printFrame(e attendance.FrameEvent) {
	if e.Error != "" {
		fmt.Printf("Frame read failed: %s\n", e.Error)
		return
	}
	for _, r := range e.Regions {
		if !r.Result.Known || r.Outcome == nil {
			continue
		}
		switch *r.Outcome {
		case database.OutcomeWritten:
			fmt.Printf("[%s] %s (%s, %s) marked present\n", e.Time.Format("15:04:05"), r.Label, r.Result.Username, r.Branch)
		case database.OutcomeExcluded:
			fmt.Printf("[%s] %s recognised but excluded\n", e.Time.Format("15:04:05"), r.Result.Username)
		}
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	tolerance := mustGetFloat64(cmd, "tolerance")

	cfg := loadConfig()
	if tolerance > 0 {
		cfg.Match.Tolerance = tolerance
	}
	svc, _, err := attendance.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("initializing: %w", err)
	}
	defer svc.Close()

	device := mustGetString(cmd, "camera")
	if device == "" {
		device = cfg.Session.Camera
	}

	matcher, err := svc.Matcher()
	if err != nil {
		return err
	}
	if dm, ok := matcher.(*facematch.DescriptorMatcher); ok {
		fmt.Printf("Matching against %d registered descriptor(s), tolerance %.2f\n", dm.Count(), dm.Tolerance())
	} else {
		fmt.Printf("Matching with trained classifier (%s)\n", svc.Strategy())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go watchQuit(cancel)

	sess := svc.NewSession(matcher, func() (camera.Source, error) { return camera.Open(device) })
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		sess.OnFrame = func(e attendance.FrameEvent) { _ = enc.Encode(e) }
	} else {
		sess.OnFrame = printFrame
		fmt.Println("Recognition running. Press q and Enter, or Ctrl+C, to stop.")
	}

	summary, err := sess.Run(ctx)
	if jsonOutput {
		if encErr := outputJSON(summary); encErr != nil {
			return encErr
		}
	} else {
		fmt.Printf("\nSession closed: %d frame(s), %d face(s), %d marked, %d already present, %d unknown\n",
			summary.Frames, summary.Faces, summary.Marked, summary.Skipped, summary.Unknown)
	}
	return err
}
