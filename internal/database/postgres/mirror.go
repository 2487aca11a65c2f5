package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// Mirror copies ledger rows and descriptors into PostgreSQL.
type Mirror struct {
	pool *Pool
}

var _ database.Mirror = (*Mirror)(nil)

// NewMirror creates a mirror on top of an open pool.
func NewMirror(pool *Pool) *Mirror {
	return &Mirror{pool: pool}
}

// SaveRows inserts rows that are not mirrored yet. Existing (day, username)
// pairs are left untouched so the mirror keeps the same dedup rule as the ledger.
func (m *Mirror) SaveRows(ctx context.Context, rows []database.AttendanceRow) (int, error) {
	tx, err := m.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO attendance (day, username, full_name, branch, marked_at, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (day, username) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	added := 0
	for _, r := range rows {
		if r.Date == "" || r.Name == "" {
			continue
		}
		res, err := stmt.ExecContext(ctx, r.Date, r.Name, r.FullName, r.Branch, r.Time, r.Status)
		if err != nil {
			return 0, fmt.Errorf("inserting attendance row %s/%s: %w", r.Date, r.Name, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			added += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing attendance rows: %w", err)
	}
	return added, nil
}

// SaveDescriptors replaces the mirrored descriptor set with descriptors.
func (m *Mirror) SaveDescriptors(ctx context.Context, descriptors []database.StoredDescriptor) (int, error) {
	tx, err := m.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	usernames := make([]string, 0, len(descriptors))
	for i, d := range descriptors {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO face_descriptors (username, position, descriptor, updated_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (username) DO UPDATE
			SET position = EXCLUDED.position, descriptor = EXCLUDED.descriptor, updated_at = NOW()
		`, d.Username, i, pgvector.NewVector(d.Descriptor))
		if err != nil {
			return 0, fmt.Errorf("saving descriptor for %s: %w", d.Username, err)
		}
		usernames = append(usernames, d.Username)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM face_descriptors WHERE NOT (username = ANY($1))", pq.Array(usernames)); err != nil {
		return 0, fmt.Errorf("removing stale descriptors: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing descriptors: %w", err)
	}
	return len(descriptors), nil
}

// CountRows returns the number of mirrored attendance rows.
func (m *Mirror) CountRows(ctx context.Context) (int, error) {
	var n int
	if err := m.pool.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM attendance").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting attendance rows: %w", err)
	}
	return n, nil
}

// Nearest returns the mirrored username closest to probe by L2 distance.
// Ties resolve to the earliest registration position.
func (m *Mirror) Nearest(ctx context.Context, probe []float32) (string, float64, error) {
	var username string
	var distance float64
	err := m.pool.db.QueryRowContext(ctx, `
		SELECT username, descriptor <-> $1 AS distance
		FROM face_descriptors
		ORDER BY distance, position
		LIMIT 1
	`, pgvector.NewVector(probe)).Scan(&username, &distance)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, nil
	}
	if err != nil {
		return "", 0, fmt.Errorf("querying nearest descriptor: %w", err)
	}
	return username, distance, nil
}

// Descriptors returns the mirrored descriptors in registration order.
func (m *Mirror) Descriptors(ctx context.Context) ([]database.StoredDescriptor, error) {
	rows, err := m.pool.db.QueryContext(ctx, "SELECT username, descriptor FROM face_descriptors ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("querying descriptors: %w", err)
	}
	defer rows.Close()

	var out []database.StoredDescriptor
	for rows.Next() {
		var d database.StoredDescriptor
		var vec pgvector.Vector
		if err := rows.Scan(&d.Username, &vec); err != nil {
			return nil, fmt.Errorf("scanning descriptor: %w", err)
		}
		d.Descriptor = vec.Slice()
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating descriptors: %w", err)
	}
	return out, nil
}
