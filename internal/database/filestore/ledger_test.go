package filestore

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

type prefixExcluder string

func (p prefixExcluder) Excluded(username string) bool {
	return strings.HasPrefix(strings.ToLower(username), string(p))
}

func newTestLedger(t *testing.T) (*Ledger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "attendance.csv")
	return NewLedger(path, nil), path
}

func TestLedger_MarkThenSkipSameDay(t *testing.T) {
	ledger, path := newTestLedger(t)
	morning := time.Date(2024, 3, 5, 9, 15, 30, 0, time.Local)
	afternoon := time.Date(2024, 3, 5, 14, 2, 0, 0, time.Local)

	outcome, row, err := ledger.Mark("101", "Asha", "CS", morning)
	if err != nil {
		t.Fatalf("Mark() error = %v", err)
	}
	if outcome != database.OutcomeWritten {
		t.Fatalf("expected written, got %s", outcome)
	}
	want := database.AttendanceRow{Date: "2024-03-05", Name: "101", FullName: "Asha", Branch: "CS", Time: "09:15:30", Status: "P"}
	if row != want {
		t.Errorf("row = %+v, want %+v", row, want)
	}

	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read ledger: %v", err)
	}

	outcome, _, err = ledger.Mark("101", "Asha", "CS", afternoon)
	if err != nil {
		t.Fatalf("Mark() error = %v", err)
	}
	if outcome != database.OutcomeSkipped {
		t.Errorf("expected skipped, got %s", outcome)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read ledger: %v", err)
	}
	if string(before) != string(after) {
		t.Errorf("ledger changed on skipped mark:\nbefore=%q\nafter=%q", before, after)
	}

	expected := "date,name,full_name,branch,time,status\n2024-03-05,101,Asha,CS,09:15:30,P\n"
	if string(after) != expected {
		t.Errorf("ledger content = %q, want %q", after, expected)
	}
}

func TestLedger_NextDayWritesAgain(t *testing.T) {
	ledger, _ := newTestLedger(t)
	day1 := time.Date(2024, 3, 5, 23, 59, 59, 0, time.Local)
	day2 := time.Date(2024, 3, 6, 0, 0, 1, 0, time.Local)

	if outcome, _, _ := ledger.Mark("101", "Asha", "CS", day1); outcome != database.OutcomeWritten {
		t.Fatalf("expected first mark written, got %s", outcome)
	}
	if outcome, _, _ := ledger.Mark("101", "Asha", "CS", day2); outcome != database.OutcomeWritten {
		t.Fatalf("expected next day mark written, got %s", outcome)
	}

	rows, err := ledger.Rows()
	if err != nil {
		t.Fatalf("Rows() error = %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("expected 2 rows, got %d", len(rows))
	}

	today, err := ledger.RowsForDate("2024-03-06")
	if err != nil {
		t.Fatalf("RowsForDate() error = %v", err)
	}
	if len(today) != 1 || today[0].Time != "00:00:01" {
		t.Errorf("unexpected rows for date: %+v", today)
	}
}

func TestLedger_AtMostOneRowPerDayUnderConcurrency(t *testing.T) {
	ledger, _ := newTestLedger(t)
	now := time.Date(2024, 3, 5, 10, 0, 0, 0, time.Local)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = ledger.Mark("101", "Asha", "CS", now)
			_, _, _ = ledger.Mark("102", "Ravi", "EE", now)
		}()
	}
	wg.Wait()

	rows, err := ledger.Rows()
	if err != nil {
		t.Fatalf("Rows() error = %v", err)
	}
	seen := make(map[string]int)
	for _, r := range rows {
		seen[r.Date+"/"+r.Name]++
	}
	for key, n := range seen {
		if n != 1 {
			t.Errorf("%s appears %d times", key, n)
		}
	}
	if len(rows) != 2 {
		t.Errorf("expected 2 rows, got %d", len(rows))
	}
}

func TestLedger_Excluded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attendance.csv")
	ledger := NewLedger(path, prefixExcluder("test"))

	outcome, _, err := ledger.Mark("TestUser", "Test", "QA", time.Now())
	if err != nil {
		t.Fatalf("Mark() error = %v", err)
	}
	if outcome != database.OutcomeExcluded {
		t.Errorf("expected excluded, got %s", outcome)
	}
	if fileExists(path) {
		t.Error("expected no ledger file after excluded mark")
	}
}

func TestLedger_Reset(t *testing.T) {
	ledger, path := newTestLedger(t)
	if _, _, err := ledger.Mark("101", "Asha", "CS", time.Now()); err != nil {
		t.Fatalf("Mark() error = %v", err)
	}
	if err := ledger.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read ledger: %v", err)
	}
	if string(data) != "date,name,full_name,branch,time,status\n" {
		t.Errorf("expected header only, got %q", data)
	}
}

func TestParseLedger_Repair(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []database.AttendanceRow
	}{
		{
			name:  "empty file",
			input: "",
			want:  nil,
		},
		{
			name:  "missing columns filled with empty values",
			input: "date,name,time\n2024-03-05,101,09:00:00\n",
			want:  []database.AttendanceRow{{Date: "2024-03-05", Name: "101", Time: "09:00:00"}},
		},
		{
			name:  "short row padded",
			input: "date,name,full_name,branch,time,status\n2024-03-05,101\n",
			want:  []database.AttendanceRow{{Date: "2024-03-05", Name: "101"}},
		},
		{
			name:  "columns out of order",
			input: "name,status,date,time,branch,full_name\n101,P,2024-03-05,09:00:00,CS,Asha\n",
			want:  []database.AttendanceRow{{Date: "2024-03-05", Name: "101", FullName: "Asha", Branch: "CS", Time: "09:00:00", Status: "P"}},
		},
		{
			name:  "headerless rows",
			input: "2024-03-05,101,Asha,CS,09:00:00,P\n",
			want:  []database.AttendanceRow{{Date: "2024-03-05", Name: "101", FullName: "Asha", Branch: "CS", Time: "09:00:00", Status: "P"}},
		},
		{
			name:  "blank lines skipped",
			input: "date,name,full_name,branch,time,status\n,,,,,\n2024-03-05,101,Asha,CS,09:00:00,P\n",
			want:  []database.AttendanceRow{{Date: "2024-03-05", Name: "101", FullName: "Asha", Branch: "CS", Time: "09:00:00", Status: "P"}},
		},
		{
			name:  "bare quote in unquoted field",
			input: "date,name,full_name,branch,time,status\n2024-03-13,102,Ravi \"R\" Kumar,EE,09:00:00,P\n",
			want:  []database.AttendanceRow{{Date: "2024-03-13", Name: "102", FullName: `Ravi "R" Kumar`, Branch: "EE", Time: "09:00:00", Status: "P"}},
		},
		{
			name:  "unescaped quote inside quoted field",
			input: "date,name,full_name,branch,time,status\n2024-03-13,102,\"Ravi \"R\" Kumar\",EE,09:00:00,P\n",
			want:  []database.AttendanceRow{{Date: "2024-03-13", Name: "102", FullName: `Ravi "R" Kumar`, Branch: "EE", Time: "09:00:00", Status: "P"}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseLedger([]byte(tc.input))
			if err != nil {
				t.Fatalf("ParseLedger() error = %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %d rows, want %d: %+v", len(got), len(tc.want), got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("row %d = %+v, want %+v", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestLedger_MarkOnDamagedFileRewritesCanonical(t *testing.T) {
	ledger, path := newTestLedger(t)
	if err := os.WriteFile(path, []byte("name,date\n102,2024-03-05\n"), 0o644); err != nil {
		t.Fatalf("failed to seed ledger: %v", err)
	}

	now := time.Date(2024, 3, 5, 8, 0, 0, 0, time.Local)
	outcome, _, err := ledger.Mark("102", "Ravi", "EE", now)
	if err != nil {
		t.Fatalf("Mark() error = %v", err)
	}
	if outcome != database.OutcomeSkipped {
		t.Errorf("expected skipped for already present row, got %s", outcome)
	}

	if _, _, err := ledger.Mark("101", "Asha", "CS", now); err != nil {
		t.Fatalf("Mark() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read ledger: %v", err)
	}
	want := "date,name,full_name,branch,time,status\n2024-03-05,102,,,,\n2024-03-05,101,Asha,CS,08:00:00,P\n"
	if string(data) != want {
		t.Errorf("ledger = %q, want %q", data, want)
	}
}

func TestLedger_MarkWithStrayQuoteInExistingRow(t *testing.T) {
	ledger, path := newTestLedger(t)
	seed := "date,name,full_name,branch,time,status\n2024-03-13,102,Ravi \"R\" Kumar,EE,09:00:00,P\n"
	if err := os.WriteFile(path, []byte(seed), 0o644); err != nil {
		t.Fatalf("failed to seed ledger: %v", err)
	}

	now := time.Date(2024, 3, 14, 8, 0, 0, 0, time.Local)
	outcome, _, err := ledger.Mark("101", "Asha", "CS", now)
	if err != nil {
		t.Fatalf("Mark() error = %v", err)
	}
	if outcome != database.OutcomeWritten {
		t.Errorf("expected written, got %s", outcome)
	}

	rows, err := ledger.Rows()
	if err != nil {
		t.Fatalf("Rows() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d: %+v", len(rows), rows)
	}
	if rows[0].FullName != `Ravi "R" Kumar` {
		t.Errorf("full name = %q, want the quoted name kept", rows[0].FullName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read ledger: %v", err)
	}
	want := "date,name,full_name,branch,time,status\n" +
		"2024-03-13,102,\"Ravi \"\"R\"\" Kumar\",EE,09:00:00,P\n" +
		"2024-03-14,101,Asha,CS,08:00:00,P\n"
	if string(data) != want {
		t.Errorf("ledger = %q, want %q", data, want)
	}
}

func TestLedger_MarkErrorReportsUnknownOutcome(t *testing.T) {
	ledger := NewLedger(t.TempDir(), nil)

	outcome, _, err := ledger.Mark("101", "Asha", "CS", time.Date(2024, 3, 14, 8, 0, 0, 0, time.Local))
	if err == nil {
		t.Fatal("expected an error for a ledger path that is a directory")
	}
	if outcome != database.OutcomeUnknown {
		t.Errorf("outcome = %s, want unknown", outcome)
	}
}
