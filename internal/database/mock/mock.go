// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// MockStudentStore is a mock implementation of database.StudentWriter
type MockStudentStore struct {
	mu       sync.RWMutex
	students map[string]database.Student

	// Error injection
	GetError    error
	AllError    error
	UpsertError error
}

// NewMockStudentStore creates a new mock student store
func NewMockStudentStore() *MockStudentStore {
	return &MockStudentStore{students: make(map[string]database.Student)}
}

func (m *MockStudentStore) Get(username string) (database.Student, bool, error) {
	if m.GetError != nil {
		return database.Student{}, false, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.students[username]
	return st, ok, nil
}

func (m *MockStudentStore) All() (map[string]database.Student, error) {
	if m.AllError != nil {
		return nil, m.AllError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]database.Student, len(m.students))
	for k, v := range m.students {
		out[k] = v
	}
	return out, nil
}

func (m *MockStudentStore) Upsert(username, fullName, branch string) error {
	if m.UpsertError != nil {
		return m.UpsertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[username] = database.Student{FullName: fullName, Branch: branch}
	return nil
}

// MockLabelStore is a mock implementation of database.LabelStore
type MockLabelStore struct {
	mu     sync.RWMutex
	labels map[string]int
	exists bool

	AssignError error
}

// NewMockLabelStore creates a new mock label store
func NewMockLabelStore() *MockLabelStore {
	return &MockLabelStore{labels: make(map[string]int)}
}

// SetLabel assigns a fixed id, bypassing allocation
func (m *MockLabelStore) SetLabel(username string, id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.labels[username] = id
	m.exists = true
}

func (m *MockLabelStore) Assign(username string) (int, error) {
	if m.AssignError != nil {
		return 0, m.AssignError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.labels[username]; ok {
		return id, nil
	}
	next := 0
	for _, id := range m.labels {
		next = max(next, id+1)
	}
	m.labels[username] = next
	m.exists = true
	return next, nil
}

func (m *MockLabelStore) All() (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int, len(m.labels))
	for k, v := range m.labels {
		out[k] = v
	}
	return out, nil
}

func (m *MockLabelStore) ByID(id int) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for u, labelID := range m.labels {
		if labelID == id {
			return u, true, nil
		}
	}
	return "", false, nil
}

func (m *MockLabelStore) Exists() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.exists
}

// MockDescriptorStore is a mock implementation of database.DescriptorStore
type MockDescriptorStore struct {
	mu      sync.RWMutex
	entries []database.StoredDescriptor

	PutError error
	AllError error
}

// NewMockDescriptorStore creates a new mock descriptor store
func NewMockDescriptorStore() *MockDescriptorStore {
	return &MockDescriptorStore{}
}

func (m *MockDescriptorStore) Put(username string, descriptor []float32) error {
	if m.PutError != nil {
		return m.PutError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	vec := slices.Clone(descriptor)
	for i := range m.entries {
		if m.entries[i].Username == username {
			m.entries[i].Descriptor = vec
			return nil
		}
	}
	m.entries = append(m.entries, database.StoredDescriptor{Username: username, Descriptor: vec})
	return nil
}

func (m *MockDescriptorStore) All() ([]database.StoredDescriptor, error) {
	if m.AllError != nil {
		return nil, m.AllError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.entries), nil
}

func (m *MockDescriptorStore) Count() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

func (m *MockDescriptorStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
	return nil
}

// MockLedger is a mock implementation of database.Ledger with the same
// daily dedup rule as the file ledger
type MockLedger struct {
	mu       sync.Mutex
	rows     []database.AttendanceRow
	Excluder database.Excluder

	// MarkCalls counts every Mark invocation, including skipped ones
	MarkCalls int

	MarkError  error
	RowsError  error
	ResetError error
}

// NewMockLedger creates a new empty mock ledger
func NewMockLedger() *MockLedger {
	return &MockLedger{}
}

// AddRow seeds a row
func (m *MockLedger) AddRow(row database.AttendanceRow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, row)
}

func (m *MockLedger) Mark(username, fullName, branch string, now time.Time) (database.Outcome, database.AttendanceRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MarkCalls++
	if m.MarkError != nil {
		return database.OutcomeUnknown, database.AttendanceRow{}, m.MarkError
	}
	if m.Excluder != nil && m.Excluder.Excluded(username) {
		return database.OutcomeExcluded, database.AttendanceRow{}, nil
	}
	today := now.Format(constants.DateLayout)
	for _, r := range m.rows {
		if r.Date == today && r.Name == username {
			return database.OutcomeSkipped, r, nil
		}
	}
	row := database.AttendanceRow{
		Date:     today,
		Name:     username,
		FullName: fullName,
		Branch:   branch,
		Time:     now.Format(constants.TimeLayout),
		Status:   constants.StatusPresent,
	}
	m.rows = append(m.rows, row)
	return database.OutcomeWritten, row, nil
}

func (m *MockLedger) Rows() ([]database.AttendanceRow, error) {
	if m.RowsError != nil {
		return nil, m.RowsError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.rows), nil
}

func (m *MockLedger) RowsForDate(date string) ([]database.AttendanceRow, error) {
	rows, err := m.Rows()
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(rows, func(r database.AttendanceRow) bool { return r.Date != date }), nil
}

func (m *MockLedger) Reset() error {
	if m.ResetError != nil {
		return m.ResetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = nil
	return nil
}

// MockMirror is a mock implementation of database.Mirror
type MockMirror struct {
	mu          sync.Mutex
	rows        map[string]database.AttendanceRow
	descriptors []database.StoredDescriptor

	SaveRowsError        error
	SaveDescriptorsError error
}

// NewMockMirror creates a new mock mirror
func NewMockMirror() *MockMirror {
	return &MockMirror{rows: make(map[string]database.AttendanceRow)}
}

func (m *MockMirror) SaveRows(ctx context.Context, rows []database.AttendanceRow) (int, error) {
	if m.SaveRowsError != nil {
		return 0, m.SaveRowsError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	added := 0
	for _, r := range rows {
		key := r.Date + "/" + r.Name
		if _, ok := m.rows[key]; !ok {
			m.rows[key] = r
			added++
		}
	}
	return added, nil
}

func (m *MockMirror) SaveDescriptors(ctx context.Context, descriptors []database.StoredDescriptor) (int, error) {
	if m.SaveDescriptorsError != nil {
		return 0, m.SaveDescriptorsError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.descriptors = slices.Clone(descriptors)
	return len(descriptors), nil
}

func (m *MockMirror) CountRows(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows), nil
}

// Descriptors returns the last saved descriptor set
func (m *MockMirror) Descriptors() []database.StoredDescriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.descriptors)
}

var (
	_ database.StudentWriter   = (*MockStudentStore)(nil)
	_ database.LabelStore      = (*MockLabelStore)(nil)
	_ database.DescriptorStore = (*MockDescriptorStore)(nil)
	_ database.Ledger          = (*MockLedger)(nil)
	_ database.Mirror          = (*MockMirror)(nil)
)
