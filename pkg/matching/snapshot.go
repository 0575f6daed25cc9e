package matching

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot is the immutable outcome of one successful calculation.
type Snapshot struct {
	results       []MatchResult
	config        ScoringConfiguration
	history       json.RawMessage
	executionTime float64
	createdAt     time.Time
}

// SnapshotOption sets optional snapshot metadata.
type SnapshotOption func(*Snapshot)

// WithHistory attaches the raw operation history returned with the results.
func WithHistory(raw json.RawMessage) SnapshotOption {
	return func(s *Snapshot) {
		if len(raw) > 0 {
			s.history = append(json.RawMessage(nil), raw...)
		}
	}
}

// WithExecutionTime records the server-reported calculation time in seconds.
func WithExecutionTime(seconds float64) SnapshotOption {
	return func(s *Snapshot) {
		s.executionTime = seconds
	}
}

// WithCreatedAt overrides the capture time, e.g. when loading from storage.
func WithCreatedAt(t time.Time) SnapshotOption {
	return func(s *Snapshot) {
		s.createdAt = t
	}
}

// NewSnapshot copies results so later changes to the caller's slice are
// not observed.
func NewSnapshot(results []MatchResult, cfg ScoringConfiguration, opts ...SnapshotOption) *Snapshot {
	s := &Snapshot{
		results:   cloneResults(results),
		config:    cfg,
		createdAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Results returns a copy of the results in server order.
func (s *Snapshot) Results() []MatchResult {
	if s == nil {
		return nil
	}
	return cloneResults(s.results)
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.results)
}

// Config returns the configuration that produced the snapshot.
func (s *Snapshot) Config() ScoringConfiguration { return s.config }

// History returns a copy of the raw history attachment, if any.
func (s *Snapshot) History() json.RawMessage {
	if s == nil || s.history == nil {
		return nil
	}
	return append(json.RawMessage(nil), s.history...)
}

func (s *Snapshot) ExecutionTime() float64 { return s.executionTime }

func (s *Snapshot) CreatedAt() time.Time { return s.createdAt }

func cloneResults(in []MatchResult) []MatchResult {
	if in == nil {
		return nil
	}
	out := make([]MatchResult, len(in))
	copy(out, in)
	for i := range out {
		if out[i].Pair != nil {
			out[i].Pair = append([]Label(nil), out[i].Pair...)
		}
	}
	return out
}

// State is the lifecycle position of a Store.
type State int

const (
	StateEmpty State = iota
	StateLoading
	StatePopulated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StatePopulated:
		return "populated"
	case StateFailed:
		return "failed"
	default:
		return "empty"
	}
}

// Store holds the current snapshot and the calculation lifecycle around it.
// A failed calculation keeps the previous snapshot visible next to the
// error.
type Store struct {
	snap atomic.Pointer[Snapshot]

	mu    sync.Mutex
	state State
	err   error
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Begin marks a calculation as in flight.
func (s *Store) Begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateLoading
}

// Complete swaps in snap and clears any previous error.
func (s *Store) Complete(snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Store(snap)
	s.state = StatePopulated
	s.err = nil
}

// Fail records err. The current snapshot, if any, is left in place.
func (s *Store) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateFailed
	s.err = err
}

// Snapshot returns the current snapshot, or nil when none was captured.
func (s *Store) Snapshot() *Snapshot {
	return s.snap.Load()
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error of the last failed calculation.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// View filters and then sorts the current snapshot. A zero SortSpec keeps
// server order.
func (s *Store) View(criteria FilterCriteria, spec SortSpec) []MatchResult {
	snap := s.Snapshot()
	if snap == nil {
		return nil
	}
	var view []MatchResult
	if criteria.IsZero() {
		view = cloneResults(snap.results)
	} else {
		view = Filter(snap.results, criteria)
	}
	if spec.Field == "" {
		return view
	}
	return Sort(view, spec)
}
