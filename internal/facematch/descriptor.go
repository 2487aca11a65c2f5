package facematch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// DescriptorMatcher picks the stored descriptor nearest to the probe by
// Euclidean distance and accepts it within tolerance.
type DescriptorMatcher struct {
	store     database.DescriptorStore
	tolerance float64

	mu       sync.RWMutex
	snapshot []database.StoredDescriptor

	index     *database.DescriptorIndex
	indexPath string
}

var _ Matcher = (*DescriptorMatcher)(nil)

// DescriptorOption configures a DescriptorMatcher.
type DescriptorOption func(*DescriptorMatcher)

// WithIndex enables the HNSW candidate index. When path is set the index is
// cached on disk and rebuilt only when the descriptors change.
func WithIndex(path string) DescriptorOption {
	return func(m *DescriptorMatcher) {
		m.index = database.NewDescriptorIndex()
		m.indexPath = path
	}
}

// NewDescriptorMatcher loads the descriptor store. A missing store is not an
// error; every probe then resolves to unknown.
func NewDescriptorMatcher(store database.DescriptorStore, tolerance float64, opts ...DescriptorOption) (*DescriptorMatcher, error) {
	if tolerance <= 0 {
		tolerance = constants.DefaultMatchTolerance
	}
	m := &DescriptorMatcher{store: store, tolerance: tolerance}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.Reload(); err != nil {
		return nil, err
	}
	return m, nil
}

// Reload re-reads the descriptor store, picking up new registrations.
func (m *DescriptorMatcher) Reload() error {
	descriptors, err := m.store.All()
	if err != nil {
		return fmt.Errorf("loading descriptors: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = descriptors

	if m.index == nil {
		return nil
	}
	if m.indexPath != "" && !m.index.Fresh(descriptors) {
		if err := m.index.Load(m.indexPath); err != nil {
			fmt.Printf("Descriptor index: ignoring cached index: %v\n", err)
		}
	}
	if !m.index.Fresh(descriptors) {
		m.index.Build(descriptors)
		if m.indexPath != "" {
			if err := m.index.Save(m.indexPath); err != nil {
				return fmt.Errorf("saving descriptor index: %w", err)
			}
		}
	}
	return nil
}

// Match returns the nearest registered username when within tolerance.
func (m *DescriptorMatcher) Match(ctx context.Context, probe Probe) (Result, error) {
	if len(probe.Descriptor) == 0 {
		return Result{}, errors.New("probe has no descriptor")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.snapshot) == 0 {
		return unknown(math.Inf(1)), nil
	}

	best, dist := m.nearest(probe.Descriptor)
	if best < 0 || dist > m.tolerance {
		return unknown(dist), nil
	}
	return Result{Username: m.snapshot[best].Username, Distance: dist, Known: true}, nil
}

// nearest returns the snapshot position of the closest descriptor. The first
// minimum in insertion order wins ties.
func (m *DescriptorMatcher) nearest(probe []float32) (int, float64) {
	if m.index != nil && m.index.Count() > 0 {
		positions, distances, err := m.index.Search(probe, constants.IndexCandidates)
		if err == nil && len(positions) > 0 {
			best, bestDist := -1, math.Inf(1)
			for i, pos := range positions {
				if distances[i] < bestDist || (distances[i] == bestDist && pos < best) {
					best, bestDist = pos, distances[i]
				}
			}
			return best, bestDist
		}
	}

	best, bestDist := -1, math.Inf(1)
	for i, d := range m.snapshot {
		if dist := database.EuclideanDistance(probe, d.Descriptor); dist < bestDist {
			best, bestDist = i, dist
		}
	}
	return best, bestDist
}

// Count returns the number of descriptors in the current snapshot.
func (m *DescriptorMatcher) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.snapshot)
}

func (m *DescriptorMatcher) Strategy() string      { return StrategyDescriptor }
func (m *DescriptorMatcher) NeedsDescriptor() bool { return true }

// Tolerance returns the accepted maximum distance.
func (m *DescriptorMatcher) Tolerance() float64 { return m.tolerance }
