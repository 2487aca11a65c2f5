package database

import (
	"context"
	"time"
)

// StudentReader provides read-only access to the identity store
type StudentReader interface {
	// Get returns the student for a username; ok is false when unknown
	Get(username string) (student Student, ok bool, err error)
	// All returns every student keyed by username
	All() (map[string]Student, error)
}

// StudentWriter provides write access to the identity store
type StudentWriter interface {
	StudentReader

	// Upsert inserts or overwrites the student for a username
	Upsert(username, fullName, branch string) error
}

// LabelStore maps usernames to stable integer label ids for the classifier
type LabelStore interface {
	// Assign returns the label id for a username, allocating max+1 (or 0) for new ones
	Assign(username string) (int, error)
	// All returns the full username to id mapping
	All() (map[string]int, error)
	// ByID resolves a label id back to its username
	ByID(id int) (username string, ok bool, err error)
	// Exists reports whether the label file has been written
	Exists() bool
}

// DescriptorStore persists one face descriptor per username
type DescriptorStore interface {
	// Put stores a descriptor; re-registering keeps the original position
	Put(username string, descriptor []float32) error
	// All returns descriptors in insertion order
	All() ([]StoredDescriptor, error)
	// Count returns the number of stored descriptors
	Count() (int, error)
	// Clear removes the descriptor store
	Clear() error
}

// Ledger is the daily deduplicated attendance table
type Ledger interface {
	// Mark appends a present row unless the username is already marked for now's date
	Mark(username, fullName, branch string, now time.Time) (Outcome, AttendanceRow, error)
	// Rows returns every row in file order
	Rows() ([]AttendanceRow, error)
	// RowsForDate returns rows whose date column equals date
	RowsForDate(date string) ([]AttendanceRow, error)
	// Reset truncates the ledger to its header
	Reset() error
}

// Excluder decides whether a username must never be marked present
type Excluder interface {
	Excluded(username string) bool
}

// Mirror pushes ledger rows and descriptors into an external database
type Mirror interface {
	// SaveRows upserts attendance rows, returning how many were new
	SaveRows(ctx context.Context, rows []AttendanceRow) (int, error)
	// SaveDescriptors replaces stored descriptors, returning how many were written
	SaveDescriptors(ctx context.Context, descriptors []StoredDescriptor) (int, error)
	// CountRows returns the number of mirrored attendance rows
	CountRows(ctx context.Context) (int, error)
}
