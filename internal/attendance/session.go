package attendance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// State is a recognition session state.
type State int

const (
	StateIdle State = iota
	StateCameraOpen
	StateStreaming
	StateDetecting
	StateMatching
	StateMatchFound
	StateNoMatch
	StateClosed
)

var stateNames = [...]string{"idle", "camera_open", "streaming", "detecting", "matching", "match_found", "no_match", "closed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", text)
}

// FrameEvent describes one processed frame or a frame failure.
type FrameEvent struct {
	Frame   int       `json:"frame"`
	Time    time.Time `json:"time"`
	Regions []Region  `json:"regions,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// Summary counts what a session did.
type Summary struct {
	Frames   int `json:"frames"`
	Failures int `json:"failures"`
	Faces    int `json:"faces"`
	Unknown  int `json:"unknown"`
	Marked   int `json:"marked"`
	Skipped  int `json:"skipped"`
	Excluded int `json:"excluded"`
}

// Opener opens the frame source for a session.
type Opener func() (camera.Source, error)

// Session runs the per-frame recognition loop against one frame source.
type Session struct {
	svc     *Service
	matcher facematch.Matcher
	open    Opener

	// OnState and OnFrame are optional observers, called synchronously.
	OnState func(State)
	OnFrame func(FrameEvent)

	mu      sync.Mutex
	state   State
	summary Summary

	// gen is the descriptor generation the matcher was loaded at.
	gen uint64
}

// NewSession prepares a session. Nothing is opened until Run.
func (s *Service) NewSession(matcher facematch.Matcher, open Opener) *Session {
	return &Session{svc: s, matcher: matcher, open: open, gen: s.descriptorGen.Load()}
}

// State returns the current state.
func (ss *Session) State() State {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.state
}

// Summary returns the counters so far.
func (ss *Session) Summary() Summary {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.summary
}

func (ss *Session) setState(st State) {
	ss.mu.Lock()
	ss.state = st
	ss.mu.Unlock()
	if ss.OnState != nil {
		ss.OnState(st)
	}
}

// Run streams frames until ctx is canceled, the source is exhausted, or the
// consecutive failure budget runs out. Quitting and exhaustion return a nil
// error. A camera that cannot be opened or keeps failing returns
// ErrDeviceUnavailable.
func (ss *Session) Run(ctx context.Context) (Summary, error) {
	defer ss.setState(StateClosed)

	ss.setState(StateIdle)
	src, err := ss.open()
	if err != nil {
		if errors.Is(err, database.ErrDeviceUnavailable) {
			return ss.Summary(), err
		}
		return ss.Summary(), fmt.Errorf("%w: %w", database.ErrDeviceUnavailable, err)
	}
	defer src.Close()
	ss.setState(StateCameraOpen)

	budget := ss.svc.MaxFrameFailures()
	failures := 0
	frame := 0
	for {
		ss.setState(StateStreaming)
		if ctx.Err() != nil {
			return ss.Summary(), nil
		}

		img, err := src.Read(ctx)
		switch {
		case errors.Is(err, io.EOF):
			return ss.Summary(), nil
		case ctx.Err() != nil:
			return ss.Summary(), nil
		case err != nil:
			failures++
			ss.recordFailure(frame, err)
			if failures >= budget {
				return ss.Summary(), fmt.Errorf("%w: %d consecutive frame failures, last: %w",
					database.ErrDeviceUnavailable, failures, err)
			}
			continue
		}
		failures = 0
		frame++
		if err := ss.refreshMatcher(); err != nil {
			return ss.Summary(), err
		}

		ss.setState(StateDetecting)
		probes, err := ss.svc.probes(ctx, img, ss.matcher)
		if err != nil {
			if ctx.Err() != nil {
				return ss.Summary(), nil
			}
			return ss.Summary(), err
		}

		ss.setState(StateMatching)
		regions, err := ss.svc.matchProbes(ctx, probes, ss.matcher)
		if err != nil {
			if ctx.Err() != nil {
				return ss.Summary(), nil
			}
			return ss.Summary(), err
		}
		ss.record(frame, regions)
		if known(regions) {
			ss.setState(StateMatchFound)
		} else {
			ss.setState(StateNoMatch)
		}
	}
}

// refreshMatcher reloads a descriptor matcher once the service has written
// descriptors since it was loaded, so students registered mid-session match.
func (ss *Session) refreshMatcher() error {
	r, ok := ss.matcher.(interface{ Reload() error })
	if !ok {
		return nil
	}
	gen := ss.svc.descriptorGen.Load()
	if gen == ss.gen {
		return nil
	}
	if err := r.Reload(); err != nil {
		return err
	}
	ss.gen = gen
	return nil
}

func known(regions []Region) bool {
	for _, r := range regions {
		if r.Result.Known {
			return true
		}
	}
	return false
}

func (ss *Session) recordFailure(frame int, err error) {
	ss.mu.Lock()
	ss.summary.Failures++
	ss.mu.Unlock()
	if ss.OnFrame != nil {
		ss.OnFrame(FrameEvent{Frame: frame, Time: ss.svc.opts.Now(), Error: err.Error()})
	}
}

func (ss *Session) record(frame int, regions []Region) {
	ss.mu.Lock()
	ss.summary.Frames++
	for _, r := range regions {
		ss.summary.Faces++
		if !r.Result.Known {
			ss.summary.Unknown++
			continue
		}
		if r.Outcome == nil {
			continue
		}
		switch *r.Outcome {
		case database.OutcomeWritten:
			ss.summary.Marked++
		case database.OutcomeSkipped:
			ss.summary.Skipped++
		case database.OutcomeExcluded:
			ss.summary.Excluded++
		}
	}
	ss.mu.Unlock()

	if ss.OnFrame != nil {
		ss.OnFrame(FrameEvent{Frame: frame, Time: ss.svc.opts.Now(), Regions: regions})
	}
}
