package attendance

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/filestore"
)

// Report returns ledger rows, all of them when date is empty. Rows written
// without identity metadata get it filled in from the student store.
func (s *Service) Report(date string) ([]database.AttendanceRow, error) {
	var (
		rows []database.AttendanceRow
		err  error
	)
	if date == "" {
		rows, err = s.opts.Ledger.Rows()
	} else {
		rows, err = s.opts.Ledger.RowsForDate(date)
	}
	if err != nil {
		return nil, fmt.Errorf("reading attendance: %w", err)
	}

	students, err := s.opts.Students.All()
	if err != nil {
		return nil, fmt.Errorf("reading students: %w", err)
	}
	for i := range rows {
		st, ok := students[rows[i].Name]
		if !ok {
			continue
		}
		if rows[i].FullName == "" {
			rows[i].FullName = st.FullName
		}
		if rows[i].Branch == "" {
			rows[i].Branch = st.Branch
		}
	}
	return rows, nil
}

// ExportCSV writes the report for date as CSV with the ledger header.
func (s *Service) ExportCSV(w io.Writer, date string) (int, error) {
	rows, err := s.Report(date)
	if err != nil {
		return 0, err
	}
	data, err := filestore.EncodeLedger(rows)
	if err != nil {
		return 0, err
	}
	if _, err := w.Write(data); err != nil {
		return 0, fmt.Errorf("writing export: %w", err)
	}
	return len(rows), nil
}

// Stats is an overview of the stores.
type Stats struct {
	Students     int    `json:"students"`
	Labels       int    `json:"labels"`
	Descriptors  int    `json:"descriptors"`
	Rows         int    `json:"rows"`
	PresentToday int    `json:"present_today"`
	Today        string `json:"today"`
	Strategy     string `json:"strategy"`
}

// Stats counts students, descriptors and attendance rows.
func (s *Service) Stats() (Stats, error) {
	students, err := s.opts.Students.All()
	if err != nil {
		return Stats{}, err
	}
	labels, err := s.opts.Labels.All()
	if err != nil {
		return Stats{}, err
	}
	descriptors, err := s.opts.Descriptors.Count()
	if err != nil {
		return Stats{}, err
	}
	rows, err := s.opts.Ledger.Rows()
	if err != nil {
		return Stats{}, err
	}

	today := s.opts.Now().Format(constants.DateLayout)
	present := 0
	for _, r := range rows {
		if r.Date == today {
			present++
		}
	}
	return Stats{
		Students:     len(students),
		Labels:       len(labels),
		Descriptors:  descriptors,
		Rows:         len(rows),
		PresentToday: present,
		Today:        today,
		Strategy:     s.opts.Strategy,
	}, nil
}

// Clear removes every stored descriptor and resets the ledger to its header.
// Students, labels and the trained model are kept.
func (s *Service) Clear() error {
	if err := s.opts.Descriptors.Clear(); err != nil {
		return fmt.Errorf("clearing descriptors: %w", err)
	}
	s.descriptorGen.Add(1)
	if s.opts.IndexPath != "" {
		for _, p := range []string{s.opts.IndexPath, s.opts.IndexPath + ".meta"} {
			if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("removing descriptor index: %w", err)
			}
		}
	}
	if err := s.opts.Ledger.Reset(); err != nil {
		return fmt.Errorf("resetting attendance: %w", err)
	}
	return nil
}

// StudentRecords lists students with their label ids and descriptor status.
func (s *Service) StudentRecords() ([]database.StudentRecord, error) {
	students, err := s.opts.Students.All()
	if err != nil {
		return nil, err
	}
	labels, err := s.opts.Labels.All()
	if err != nil {
		return nil, err
	}
	descriptors, err := s.opts.Descriptors.All()
	if err != nil {
		return nil, err
	}
	has := make(map[string]bool, len(descriptors))
	for _, d := range descriptors {
		has[d.Username] = true
	}

	records := make([]database.StudentRecord, 0, len(students))
	for username, st := range students {
		rec := database.StudentRecord{
			Username: username,
			FullName: st.FullName,
			Branch:   st.Branch,
			HasFace:  has[username],
		}
		if id, ok := labels[username]; ok {
			rec.LabelID = &id
		}
		records = append(records, rec)
	}
	slices.SortFunc(records, func(a, b database.StudentRecord) int { return strings.Compare(a.Username, b.Username) })
	return records, nil
}
