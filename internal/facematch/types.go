// Package facematch resolves probe faces to registered usernames. Both the
// descriptor-distance and the trained-classifier strategies implement Matcher
// so the recognition session and the front-ends share one code path.
package facematch

import (
	"context"
	"encoding/json"
	"image"
	"math"
)

// Strategy names as used in configuration.
const (
	StrategyDescriptor = "descriptor"
	StrategyClassifier = "classifier"
)

// Probe is one detected face region ready for matching. Descriptor is used by
// the descriptor strategy, Crop (normalized grayscale) by the classifier.
type Probe struct {
	Rect       image.Rectangle
	Descriptor []float32
	Crop       *image.Gray
}

// Result is the outcome of matching a probe. An unknown face is a result with
// Known false, never an error.
type Result struct {
	Username string  `json:"username,omitempty"`
	Distance float64 `json:"distance"`
	Known    bool    `json:"known"`
}

// MarshalJSON renders a non-finite distance (no descriptors to compare with)
// as null.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	out := struct {
		plain
		Distance *float64 `json:"distance"`
	}{plain: plain(r)}
	if !math.IsInf(r.Distance, 0) && !math.IsNaN(r.Distance) {
		out.Distance = &r.Distance
	}
	return json.Marshal(out)
}

// Matcher resolves a probe to a username.
type Matcher interface {
	Match(ctx context.Context, probe Probe) (Result, error)
	// Strategy returns the configured strategy name.
	Strategy() string
	// NeedsDescriptor reports whether probes must carry a descriptor (true) or a crop (false).
	NeedsDescriptor() bool
}

func unknown(distance float64) Result {
	return Result{Distance: distance}
}
