package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mirror attendance and descriptors into PostgreSQL",
	Long: `Push the attendance ledger and registered descriptors into a PostgreSQL
database with the pgvector extension (DATABASE_URL). Rows already mirrored
are left unchanged; descriptors are replaced. The local files stay the
source of truth.

Examples:
  face-attendance sync
  face-attendance sync --verify --json`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().Bool("verify", false, "Check that every mirrored descriptor is its own nearest neighbour")
	syncCmd.Flags().Bool("json", false, "Output as JSON")
}

// SyncResult represents the result of a mirror sync
type SyncResult struct {
	Success        bool     `json:"success"`
	RowsLocal      int      `json:"rows_local"`
	RowsInserted   int      `json:"rows_inserted"`
	RowsMirrored   int      `json:"rows_mirrored"`
	Descriptors    int      `json:"descriptors"`
	Migrations     []string `json:"migrations"`
	VerifyMismatch []string `json:"verify_mismatch,omitempty"`
	DurationMs     int64    `json:"duration_ms"`
	DurationHuman  string   `json:"duration_human,omitempty"`
}

func verifyMirror(ctx context.Context, mirror *postgres.Mirror, descriptors []database.StoredDescriptor) ([]string, error) {
	var mismatched []string
	for _, d := range descriptors {
		username, _, err := mirror.Nearest(ctx, d.Descriptor)
		if err != nil {
			return nil, err
		}
		if username != d.Username {
			mismatched = append(mismatched, d.Username)
		}
	}
	return mismatched, nil
}

func runSync(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	verify := mustGetBool(cmd, "verify")
	startTime := time.Now()

	cfg, svc, _, err := loadService()
	if err != nil {
		return err
	}
	defer svc.Close()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	ctx := context.Background()
	if !jsonOutput {
		fmt.Println("Connecting to PostgreSQL database...")
	}
	pool, err := postgres.Open(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()
	mirror := postgres.NewMirror(pool)

	rows, err := svc.Report("")
	if err != nil {
		return err
	}
	descriptors, err := svc.Descriptors().All()
	if err != nil {
		return err
	}

	result := SyncResult{RowsLocal: len(rows)}
	if result.RowsInserted, err = mirror.SaveRows(ctx, rows); err != nil {
		return err
	}
	if result.Descriptors, err = mirror.SaveDescriptors(ctx, descriptors); err != nil {
		return err
	}
	if result.RowsMirrored, err = mirror.CountRows(ctx); err != nil {
		return err
	}
	if result.Migrations, err = pool.MigrationsApplied(ctx); err != nil {
		return err
	}
	if verify {
		if result.VerifyMismatch, err = verifyMirror(ctx, mirror, descriptors); err != nil {
			return err
		}
	}

	elapsed := time.Since(startTime)
	result.Success = len(result.VerifyMismatch) == 0
	result.DurationMs = elapsed.Milliseconds()
	result.DurationHuman = elapsed.Round(time.Millisecond).String()

	if jsonOutput {
		return outputJSON(result)
	}
	fmt.Printf("Attendance: %d local row(s), %d new, %d mirrored in total\n",
		result.RowsLocal, result.RowsInserted, result.RowsMirrored)
	fmt.Printf("Descriptors: %d mirrored\n", result.Descriptors)
	if verify {
		if len(result.VerifyMismatch) == 0 {
			fmt.Println("Verify: every descriptor resolves to its own student")
		} else {
			fmt.Printf("Verify: %d mismatch(es): %v\n", len(result.VerifyMismatch), result.VerifyMismatch)
		}
	}
	fmt.Printf("Completed in %s\n", result.DurationHuman)
	return nil
}
