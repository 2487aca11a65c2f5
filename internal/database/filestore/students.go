package filestore

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// Students is the identity store backed by a JSON object keyed by username.
type Students struct {
	path string
	mu   sync.Mutex
}

var _ database.StudentWriter = (*Students)(nil)

func NewStudents(path string) *Students {
	return &Students{path: path}
}

func (s *Students) load() (map[string]database.Student, error) {
	data, err := readFileIfExists(s.path)
	if err != nil {
		return nil, err
	}
	students := make(map[string]database.Student)
	if len(data) == 0 {
		return students, nil
	}
	if err := json.Unmarshal(data, &students); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	return students, nil
}

// Get returns the student registered under username.
func (s *Students) Get(username string) (database.Student, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	students, err := s.load()
	if err != nil {
		return database.Student{}, false, err
	}
	st, ok := students[username]
	return st, ok, nil
}

// All returns every registered student.
func (s *Students) All() (map[string]database.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Upsert inserts or overwrites a student and rewrites the file.
func (s *Students) Upsert(username, fullName, branch string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	students, err := s.load()
	if err != nil {
		return err
	}
	students[username] = database.Student{FullName: fullName, Branch: branch}

	data, err := json.MarshalIndent(students, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode students: %w", err)
	}
	return writeFileAtomic(s.path, data)
}
