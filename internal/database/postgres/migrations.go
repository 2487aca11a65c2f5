package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"path"
	"slices"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsTable = `CREATE TABLE IF NOT EXISTS mirror_migrations (
	name       TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// migration is one embedded SQL file. Files apply in name order.
type migration struct {
	name string
	sql  string
}

func loadMigrations(fsys fs.FS, dir string) ([]migration, error) {
	names, err := fs.Glob(fsys, path.Join(dir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("listing migrations: %w", err)
	}
	slices.Sort(names)

	out := make([]migration, 0, len(names))
	for _, name := range names {
		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("reading migration %s: %w", name, err)
		}
		out = append(out, migration{name: path.Base(name), sql: string(body)})
	}
	return out, nil
}

// pendingMigrations drops every migration whose name is already recorded.
func pendingMigrations(all []migration, applied []string) []migration {
	return slices.DeleteFunc(slices.Clone(all), func(m migration) bool {
		return slices.Contains(applied, m.name)
	})
}

// Migrate creates the bookkeeping table and applies every pending migration,
// each in its own transaction together with its bookkeeping row.
func (p *Pool) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, migrationsTable); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}
	all, err := loadMigrations(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	applied, err := p.MigrationsApplied(ctx)
	if err != nil {
		return err
	}

	for _, m := range pendingMigrations(all, applied) {
		if err := p.apply(ctx, m); err != nil {
			return err
		}
		log.Printf("Applied mirror migration %s", m.name)
	}
	return nil
}

func (p *Pool) apply(ctx context.Context, m migration) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migration %s: %w", m.name, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return fmt.Errorf("migration %s: %w", m.name, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO mirror_migrations (name) VALUES ($1)`, m.name); err != nil {
		return fmt.Errorf("recording migration %s: %w", m.name, err)
	}
	return tx.Commit()
}

// MigrationsApplied lists recorded migration names in apply order.
func (p *Pool) MigrationsApplied(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT name FROM mirror_migrations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing applied migrations: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
