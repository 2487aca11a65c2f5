package filestore

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// Ledger is the attendance CSV. Rows are loaded fully, mutated in memory and
// the whole file is replaced on every new mark.
type Ledger struct {
	path     string
	excluder database.Excluder
	mu       sync.Mutex
}

var _ database.Ledger = (*Ledger)(nil)

// NewLedger returns a ledger at path. excluder may be nil.
func NewLedger(path string, excluder database.Excluder) *Ledger {
	return &Ledger{path: path, excluder: excluder}
}

// Mark records username as present for now's calendar day unless a row for
// that day already exists or the username is excluded.
func (l *Ledger) Mark(username, fullName, branch string, now time.Time) (database.Outcome, database.AttendanceRow, error) {
	if l.excluder != nil && l.excluder.Excluded(username) {
		return database.OutcomeExcluded, database.AttendanceRow{}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.load()
	if err != nil {
		return database.OutcomeUnknown, database.AttendanceRow{}, err
	}

	today := now.Format(constants.DateLayout)
	for _, r := range rows {
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
	if err := l.write(append(rows, row)); err != nil {
		return database.OutcomeUnknown, database.AttendanceRow{}, err
	}
	return database.OutcomeWritten, row, nil
}

// Rows returns every ledger row. A missing ledger has no rows.
func (l *Ledger) Rows() ([]database.AttendanceRow, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load()
}

// RowsForDate returns the rows recorded on date (YYYY-MM-DD).
func (l *Ledger) RowsForDate(date string) ([]database.AttendanceRow, error) {
	rows, err := l.Rows()
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(rows, func(r database.AttendanceRow) bool { return r.Date != date }), nil
}

// Reset leaves only the header in the ledger.
func (l *Ledger) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.write(nil)
}

// Repair rewrites the ledger in canonical column order and returns the row count.
func (l *Ledger) Repair() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.load()
	if err != nil {
		return 0, err
	}
	if !fileExists(l.path) {
		return 0, nil
	}
	return len(rows), l.write(rows)
}

func (l *Ledger) load() ([]database.AttendanceRow, error) {
	data, err := readFileIfExists(l.path)
	if err != nil {
		return nil, err
	}
	rows, err := ParseLedger(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", l.path, err)
	}
	return rows, nil
}

func (l *Ledger) write(rows []database.AttendanceRow) error {
	data, err := EncodeLedger(rows)
	if err != nil {
		return err
	}
	return writeFileAtomic(l.path, data)
}

// ParseLedger reads ledger CSV data, tolerating damage: columns are located by
// header name, missing columns read as empty and short rows are padded. Stray
// quotes are kept as literal text. A file whose first line names no known
// column is read as headerless canonical rows.
func ParseLedger(data []byte) ([]database.AttendanceRow, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true

	var records [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		// An unreadable record is dropped; the next write leaves it out.
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, nil
	}

	columns := make(map[string]int)
	for i, name := range records[0] {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if slices.Contains(constants.LedgerHeader, name) {
			if _, dup := columns[name]; !dup {
				columns[name] = i
			}
		}
	}
	body := records[1:]
	if len(columns) == 0 {
		for i, name := range constants.LedgerHeader {
			columns[name] = i
		}
		body = records
	}

	rows := make([]database.AttendanceRow, 0, len(body))
	for _, rec := range body {
		if isBlankRecord(rec) {
			continue
		}
		rows = append(rows, database.RowFromColumns(func(column string) string {
			i, ok := columns[column]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}))
	}
	return rows, nil
}

// EncodeLedger renders rows as CSV with the canonical header.
func EncodeLedger(rows []database.AttendanceRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(constants.LedgerHeader); err != nil {
		return nil, fmt.Errorf("failed to write ledger header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row.Record()); err != nil {
			return nil, fmt.Errorf("failed to write ledger row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush ledger: %w", err)
	}
	return buf.Bytes(), nil
}

func isBlankRecord(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
