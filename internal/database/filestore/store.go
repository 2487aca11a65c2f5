// Package filestore implements the attendance stores on top of plain files in
// a data directory. Every write replaces the whole file atomically.
package filestore

import (
	"path/filepath"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// Store groups the file-backed stores rooted at one data directory.
type Store struct {
	dir         string
	students    *Students
	labels      *Labels
	descriptors *Descriptors
	ledger      *Ledger
}

// Open returns the stores for dir. Files are created lazily on first write.
func Open(dir string, excluder database.Excluder) *Store {
	return &Store{
		dir:         dir,
		students:    NewStudents(filepath.Join(dir, constants.StudentsFile)),
		labels:      NewLabels(filepath.Join(dir, constants.ModelDir, constants.LabelsFile)),
		descriptors: NewDescriptors(filepath.Join(dir, constants.DescriptorsFile)),
		ledger:      NewLedger(filepath.Join(dir, constants.AttendanceFile), excluder),
	}
}

// Dir returns the data directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) Students() *Students       { return s.students }
func (s *Store) Labels() *Labels           { return s.labels }
func (s *Store) Descriptors() *Descriptors { return s.descriptors }
func (s *Store) Ledger() *Ledger           { return s.ledger }

// ModelPath is where the trained classifier is saved.
func (s *Store) ModelPath() string {
	return filepath.Join(s.dir, constants.ModelDir, constants.ClassifierFile)
}

// IndexPath is where the cached descriptor index is saved.
func (s *Store) IndexPath() string {
	return filepath.Join(s.dir, constants.DescriptorIndexF)
}

// SamplesRoot is the directory holding per-student face samples.
func (s *Store) SamplesRoot() string {
	return filepath.Join(s.dir, constants.RawSamplesDir)
}

// SamplesDir is the sample directory of one student.
func (s *Store) SamplesDir(username string) string {
	return filepath.Join(s.SamplesRoot(), username)
}
