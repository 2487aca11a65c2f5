package filestore

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// descriptorFile is the on-disk gob layout. Entries keep registration order.
type descriptorFile struct {
	Version int
	Entries []database.StoredDescriptor
}

const descriptorFileVersion = 1

// Descriptors stores one face descriptor per username in a gob file.
type Descriptors struct {
	path string
	mu   sync.Mutex
}

var _ database.DescriptorStore = (*Descriptors)(nil)

func NewDescriptors(path string) *Descriptors {
	return &Descriptors{path: path}
}

func (d *Descriptors) load() ([]database.StoredDescriptor, error) {
	data, err := readFileIfExists(d.path)
	if err != nil || len(data) == 0 {
		return nil, err
	}
	var f descriptorFile
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", d.path, err)
	}
	if f.Version != descriptorFileVersion {
		return nil, fmt.Errorf("unsupported descriptor file version %d", f.Version)
	}
	return f.Entries, nil
}

// Put stores the descriptor for username, replacing an earlier one in place.
func (d *Descriptors) Put(username string, descriptor []float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	entries, err := d.load()
	if err != nil {
		return err
	}
	vec := slices.Clone(descriptor)
	idx := slices.IndexFunc(entries, func(e database.StoredDescriptor) bool { return e.Username == username })
	if idx >= 0 {
		entries[idx].Descriptor = vec
	} else {
		entries = append(entries, database.StoredDescriptor{Username: username, Descriptor: vec})
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(descriptorFile{Version: descriptorFileVersion, Entries: entries}); err != nil {
		return fmt.Errorf("failed to encode descriptors: %w", err)
	}
	return writeFileAtomic(d.path, buf.Bytes())
}

// All returns the stored descriptors in registration order. A missing file
// yields an empty slice.
func (d *Descriptors) All() ([]database.StoredDescriptor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.load()
}

func (d *Descriptors) Count() (int, error) {
	entries, err := d.All()
	return len(entries), err
}

// Clear deletes the descriptor file.
func (d *Descriptors) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := os.Remove(d.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", d.path, err)
	}
	return nil
}

func (d *Descriptors) Exists() bool {
	return fileExists(d.path)
}
