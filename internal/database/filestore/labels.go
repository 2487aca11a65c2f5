package filestore

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// Labels maps usernames to classifier label ids. Ids are allocated as
// max(existing)+1 and never reassigned.
type Labels struct {
	path string
	mu   sync.Mutex
}

var _ database.LabelStore = (*Labels)(nil)

func NewLabels(path string) *Labels {
	return &Labels{path: path}
}

func (l *Labels) load() (map[string]int, error) {
	data, err := readFileIfExists(l.path)
	if err != nil {
		return nil, err
	}
	labels := make(map[string]int)
	if len(data) == 0 {
		return labels, nil
	}
	if err := json.Unmarshal(data, &labels); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", l.path, err)
	}
	return labels, nil
}

// Assign returns the existing id for username or allocates the next one.
func (l *Labels) Assign(username string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	labels, err := l.load()
	if err != nil {
		return 0, err
	}
	if id, ok := labels[username]; ok {
		return id, nil
	}

	next := 0
	for _, id := range labels {
		if id+1 > next {
			next = id + 1
		}
	}
	labels[username] = next

	data, err := json.MarshalIndent(labels, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("failed to encode labels: %w", err)
	}
	if err := writeFileAtomic(l.path, data); err != nil {
		return 0, err
	}
	return next, nil
}

func (l *Labels) All() (map[string]int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load()
}

// ByID finds the username owning id.
func (l *Labels) ByID(id int) (string, bool, error) {
	labels, err := l.All()
	if err != nil {
		return "", false, err
	}
	for username, labelID := range labels {
		if labelID == id {
			return username, true, nil
		}
	}
	return "", false, nil
}

func (l *Labels) Exists() bool {
	return fileExists(l.path)
}
