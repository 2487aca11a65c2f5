package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/vision"
)

var registerCmd = &cobra.Command{
	Use:   "register <username>",
	Short: "Register a student",
	Long: `Register a student with their full name and branch.

The face is taken from one of:
  --image       a photo containing exactly one face (descriptor strategy)
  --descriptor  a precomputed descriptor as a JSON array, or @file
  --camera      collect training samples from the camera (classifier strategy)

Without any of them only the identity and label are stored.

Examples:
  face-attendance register 101 --name "Asha K" --branch CS --image asha.jpg
  face-attendance register 101 --name "Asha K" --branch CS --descriptor @asha.json
  face-attendance register 101 --name "Asha K" --branch CS --camera --samples 50`,
	Args: cobra.ExactArgs(1),
	RunE: runRegister,
}

func init() {
	rootCmd.AddCommand(registerCmd)

	registerCmd.Flags().String("name", "", "Full name (required)")
	registerCmd.Flags().String("branch", "", "Branch (required)")
	registerCmd.Flags().String("image", "", "Photo with exactly one face")
	registerCmd.Flags().String("descriptor", "", "Precomputed descriptor as JSON array or @file")
	registerCmd.Flags().Bool("camera", false, "Collect training samples from the camera")
	registerCmd.Flags().Int("samples", 0, "Samples to collect with --camera (default SAMPLE_COUNT)")
	registerCmd.Flags().Bool("json", false, "Output as JSON")
}

// parseDescriptor reads a JSON array of floats, inline or from @file.
func parseDescriptor(arg string) ([]float32, error) {
	data := []byte(arg)
	if len(arg) > 1 && arg[0] == '@' {
		var err error
		data, err = os.ReadFile(arg[1:])
		if err != nil {
			return nil, fmt.Errorf("reading descriptor file: %w", err)
		}
	}
	var descriptor []float32
	if err := json.Unmarshal(data, &descriptor); err != nil {
		return nil, fmt.Errorf("descriptor must be a JSON array of numbers: %w", err)
	}
	return descriptor, nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	username := args[0]
	fullName := mustGetString(cmd, "name")
	branch := mustGetString(cmd, "branch")
	imagePath := mustGetString(cmd, "image")
	descriptorArg := mustGetString(cmd, "descriptor")
	useCamera := mustGetBool(cmd, "camera")
	jsonOutput := mustGetBool(cmd, "json")

	sources := 0
	for _, set := range []bool{imagePath != "", descriptorArg != "", useCamera} {
		if set {
			sources++
		}
	}
	if sources > 1 {
		return errors.New("use only one of --image, --descriptor and --camera")
	}
	if err := attendance.ValidateStudent(username, fullName, branch); err != nil {
		return err
	}

	cfg, svc, _, err := loadService()
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var reg attendance.Registration
	switch {
	case imagePath != "":
		data, err := os.ReadFile(imagePath) //nolint:gosec // path is a CLI argument
		if err != nil {
			return fmt.Errorf("reading image: %w", err)
		}
		img, err := vision.DecodeImage(data)
		if err != nil {
			return err
		}
		reg, err = svc.RegisterImage(ctx, username, fullName, branch, img)
		if err != nil {
			return err
		}
	case descriptorArg != "":
		descriptor, err := parseDescriptor(descriptorArg)
		if err != nil {
			return err
		}
		reg, err = svc.RegisterDescriptor(username, fullName, branch, descriptor)
		if err != nil {
			return err
		}
	default:
		reg, err = svc.RegisterStudent(username, fullName, branch)
		if err != nil {
			return err
		}
	}

	if jsonOutput && !useCamera {
		return outputJSON(reg)
	}
	fmt.Printf("Registered %s (%s, %s) with label %d\n", reg.Username, reg.FullName, reg.Branch, reg.LabelID)

	if useCamera {
		saved, err := collectWithProgress(ctx, svc, cfg.Session.Camera, username, mustGetInt(cmd, "samples"))
		if err != nil {
			return err
		}
		fmt.Printf("Collected %d sample(s). Run 'face-attendance train' to update the model.\n", saved)
	}
	return nil
}
