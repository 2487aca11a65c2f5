package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database/filestore"
)

var dataDir string

var rootCmd = &cobra.Command{
	Use:   "face-attendance",
	Short: "Face recognition attendance tracker",
	Long: `Face Attendance registers students from photos or camera samples,
recognises them in a live camera feed and records one attendance row per
student per day in attendance.csv.

Two matching strategies are available (MATCH_STRATEGY):
  descriptor  compare face descriptors against registered ones
  classifier  predict with an LBPH classifier trained on collected samples`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Directory holding students.json, attendance.csv and models (overrides DATA_DIR)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// loadConfig reads the environment and applies global flag overrides.
func loadConfig() *config.Config {
	cfg := config.Load()
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	return cfg
}

// loadService builds the attendance service for the configured data directory.
// Callers must Close the service.
func loadService() (*config.Config, *attendance.Service, *filestore.Store, error) {
	cfg := loadConfig()
	svc, store, err := attendance.NewFromConfig(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initializing: %w", err)
	}
	return cfg, svc, store, nil
}
