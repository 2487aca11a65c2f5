package database

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"sync"
	"time"

	"github.com/coder/hnsw"
	"github.com/google/renameio"
)

// DescriptorIndexMetadata stores metadata for validating cached descriptor indexes.
type DescriptorIndexMetadata struct {
	Usernames []string  `json:"usernames"` // node key i belongs to Usernames[i]
	Checksum  uint64    `json:"checksum"`
	BuildTime time.Time `json:"build_time"`
	Version   int       `json:"version"`
}

const descriptorIndexVersion = 1

// DescriptorIndex wraps an HNSW graph over stored descriptors. Node keys are
// insertion positions so callers can break distance ties by store order.
type DescriptorIndex struct {
	graph     *hnsw.Graph[int]
	usernames []string
	checksum  uint64
	mu        sync.RWMutex
}

// NewDescriptorIndex creates a new empty index.
func NewDescriptorIndex() *DescriptorIndex {
	return &DescriptorIndex{}
}

func newDescriptorGraph() *hnsw.Graph[int] {
	g := hnsw.NewGraph[int]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors)
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.EuclideanDistance
	return g
}

// DescriptorChecksum hashes usernames and vectors so a cached index can be
// detected as stale after re-registration.
func DescriptorChecksum(descriptors []StoredDescriptor) uint64 {
	h := fnv.New64a()
	var buf [4]byte
	for _, d := range descriptors {
		_, _ = h.Write([]byte(d.Username))
		_, _ = h.Write([]byte{0})
		for _, v := range d.Descriptor {
			binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
			_, _ = h.Write(buf[:])
		}
	}
	return h.Sum64()
}

// Build replaces the index contents with the given descriptors.
// Descriptors whose length differs from the first one are skipped.
func (x *DescriptorIndex) Build(descriptors []StoredDescriptor) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.usernames = make([]string, len(descriptors))
	x.checksum = DescriptorChecksum(descriptors)
	if len(descriptors) == 0 {
		x.graph = nil
		return
	}

	g := newDescriptorGraph()
	dim := len(descriptors[0].Descriptor)
	for i, d := range descriptors {
		x.usernames[i] = d.Username
		if len(d.Descriptor) != dim || dim == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(i, d.Descriptor))
	}
	x.graph = g
}

// Search returns up to k candidate positions nearest to the probe.
// Distances are recomputed exactly from the node vectors.
func (x *DescriptorIndex) Search(probe []float32, k int) ([]int, []float64, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.graph == nil {
		return nil, nil, errors.New("index not initialized")
	}
	if x.graph.Len() == 0 {
		return nil, nil, nil
	}
	if dims := x.graph.Dims(); dims != len(probe) {
		return nil, nil, fmt.Errorf("probe has %d dimensions, index has %d", len(probe), dims)
	}

	neighbors := x.graph.Search(probe, k)
	positions := make([]int, len(neighbors))
	distances := make([]float64, len(neighbors))
	for i, n := range neighbors {
		positions[i] = n.Key
		distances[i] = EuclideanDistance(probe, n.Value)
	}
	return positions, distances, nil
}

// Username returns the username stored at a node position.
func (x *DescriptorIndex) Username(position int) (string, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if position < 0 || position >= len(x.usernames) {
		return "", false
	}
	return x.usernames[position], true
}

// Count returns the number of indexed descriptors.
func (x *DescriptorIndex) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.graph == nil {
		return 0
	}
	return x.graph.Len()
}

// Fresh reports whether the index was built from exactly these descriptors.
func (x *DescriptorIndex) Fresh(descriptors []StoredDescriptor) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.graph != nil && x.checksum == DescriptorChecksum(descriptors)
}

// Save persists the graph and its metadata next to each other.
// An empty index removes any existing files.
func (x *DescriptorIndex) Save(path string) error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.graph == nil {
		_ = os.Remove(path)
		_ = os.Remove(path + ".meta")
		return nil
	}

	var buf bytes.Buffer
	if err := x.graph.Export(&buf); err != nil {
		return fmt.Errorf("exporting descriptor graph: %w", err)
	}
	if err := renameio.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write descriptor index: %w", err)
	}

	meta, err := json.Marshal(DescriptorIndexMetadata{
		Usernames: x.usernames,
		Checksum:  x.checksum,
		BuildTime: time.Now(),
		Version:   descriptorIndexVersion,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := renameio.WriteFile(path+".meta", meta, 0o600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	return nil
}

// Load reads a previously saved index. A missing file is not an error and
// leaves the index empty.
func (x *DescriptorIndex) Load(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read descriptor index: %w", err)
	}

	metaData, err := os.ReadFile(path + ".meta") //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to read metadata file: %w", err)
	}
	var meta DescriptorIndexMetadata
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	if meta.Version != descriptorIndexVersion {
		return fmt.Errorf("unsupported descriptor index version %d", meta.Version)
	}

	g := newDescriptorGraph()
	if err := g.Import(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("importing descriptor graph: %w", err)
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.graph = g
	x.usernames = meta.Usernames
	x.checksum = meta.Checksum
	return nil
}
