package database

import (
	"github.com/kozaktomas/face-attendance/internal/constants"
)

// Student holds the identity metadata stored per username.
type Student struct {
	FullName string `json:"full_name"`
	Branch   string `json:"branch"`
}

// StudentRecord is a Student together with its username, used for listings.
type StudentRecord struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Branch   string `json:"branch"`
	LabelID  *int   `json:"label_id,omitempty"`
	HasFace  bool   `json:"has_descriptor"`
}

// StoredDescriptor is a face descriptor registered for a username.
type StoredDescriptor struct {
	Username   string
	Descriptor []float32
}

// AttendanceRow is one line of the attendance ledger.
type AttendanceRow struct {
	Date     string `json:"date"`
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	Branch   string `json:"branch"`
	Time     string `json:"time"`
	Status   string `json:"status"`
}

// Record returns the row in canonical ledger column order.
func (r AttendanceRow) Record() []string {
	return []string{r.Date, r.Name, r.FullName, r.Branch, r.Time, r.Status}
}

// RowFromColumns builds a row from a column-name keyed lookup.
func RowFromColumns(get func(column string) string) AttendanceRow {
	return AttendanceRow{
		Date:     get(constants.LedgerHeader[0]),
		Name:     get(constants.LedgerHeader[1]),
		FullName: get(constants.LedgerHeader[2]),
		Branch:   get(constants.LedgerHeader[3]),
		Time:     get(constants.LedgerHeader[4]),
		Status:   get(constants.LedgerHeader[5]),
	}
}

// Outcome is the result of a ledger mark.
type Outcome int

const (
	// OutcomeUnknown is returned alongside an error; nothing was recorded.
	OutcomeUnknown Outcome = iota
	// OutcomeWritten means a new row was appended.
	OutcomeWritten
	// OutcomeSkipped means the username was already marked for the day.
	OutcomeSkipped
	// OutcomeExcluded means the username matched the exclusion policy.
	OutcomeExcluded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWritten:
		return "written"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeExcluded:
		return "excluded"
	default:
		return "unknown"
	}
}

// MarshalText lets outcomes render as strings in JSON responses and events.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}
