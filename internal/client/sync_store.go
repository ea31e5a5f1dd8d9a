// Package client holds the subscriber side of the flight board: the synced
// flight list, the HTTP API client and the push channel client.
package client

import (
	"context"
	"sync"

	"flightboard-service/internal/domain/entity"
)

// State is the lifecycle state of a SyncStore
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	}
	return "unknown"
}

// MergeOutcome is what a pushed flight did to the list
type MergeOutcome int

const (
	// MergeDropped means the push was ignored
	MergeDropped MergeOutcome = iota
	// MergeUpdated means an existing entry was replaced in place
	MergeUpdated
	// MergeInserted means the flight was appended
	MergeInserted
)

func (o MergeOutcome) String() string {
	switch o {
	case MergeUpdated:
		return "updated"
	case MergeInserted:
		return "inserted"
	}
	return "dropped"
}

// Fetcher runs a filtered flight read
type Fetcher interface {
	GetFlights(ctx context.Context, criteria entity.FilterCriteria) ([]entity.FlightRecord, error)
}

// Ticket identifies one in-flight read. Only the ticket of the latest
// applied filter can complete.
type Ticket struct {
	Criteria   entity.FilterCriteria
	generation uint64
}

// Snapshot is a consistent copy of the store contents
type Snapshot struct {
	State    State
	Criteria entity.FilterCriteria
	Flights  []entity.FlightRecord
	Touched  string
	Err      error
}

// SyncStore is the client-side list of flights for the active filter. Reads
// replace the list, pushes are merged into it. All mutations are serialized
// so readers never observe a half-applied merge.
type SyncStore struct {
	mu         sync.Mutex
	state      State
	criteria   entity.FilterCriteria
	generation uint64
	flights    []entity.FlightRecord
	index      map[string]int
	touched    string
	err        error
	onChange   func(Snapshot)
}

// NewSyncStore creates an idle store. onChange, when set, is called with a
// snapshot after every change, outside the store lock.
func NewSyncStore(onChange func(Snapshot)) *SyncStore {
	return &SyncStore{
		flights:  []entity.FlightRecord{},
		index:    make(map[string]int),
		onChange: onChange,
	}
}

// Begin applies criteria and moves to Loading. Any read still in flight for
// an earlier filter becomes stale.
func (s *SyncStore) Begin(criteria entity.FilterCriteria) Ticket {
	s.mu.Lock()
	s.generation++
	s.criteria = criteria
	s.state = StateLoading
	t := Ticket{Criteria: criteria, generation: s.generation}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return t
}

// Complete delivers the result of the read identified by t. Results of
// stale tickets are discarded and Complete reports false. On failure the
// current list is kept and the error is recorded.
func (s *SyncStore) Complete(t Ticket, flights []entity.FlightRecord, err error) bool {
	s.mu.Lock()
	if t.generation != s.generation {
		s.mu.Unlock()
		return false
	}
	s.state = StateReady
	s.err = err
	if err == nil {
		s.replaceLocked(flights)
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return true
}

// Apply runs a fresh filtered read for criteria through fetcher
func (s *SyncStore) Apply(ctx context.Context, fetcher Fetcher, criteria entity.FilterCriteria) error {
	t := s.Begin(criteria)
	flights, err := fetcher.GetFlights(ctx, criteria)
	if !s.Complete(t, flights, err) {
		return nil
	}
	return err
}

// Refresh re-runs the read for the active filter
func (s *SyncStore) Refresh(ctx context.Context, fetcher Fetcher) error {
	return s.Apply(ctx, fetcher, s.Criteria())
}

// Merge applies a pushed flight. A flight already in the list is replaced in
// place even when it no longer matches the filter. A new flight is appended
// only when it matches. Pushes are dropped while the store is Idle.
func (s *SyncStore) Merge(flight entity.FlightRecord) MergeOutcome {
	s.mu.Lock()
	if s.state == StateIdle || flight.FlightNumber == "" {
		s.mu.Unlock()
		return MergeDropped
	}

	var outcome MergeOutcome
	if i, ok := s.index[flight.FlightNumber]; ok {
		s.flights[i] = flight
		outcome = MergeUpdated
	} else if s.criteria.Matches(flight) {
		s.index[flight.FlightNumber] = len(s.flights)
		s.flights = append(s.flights, flight)
		outcome = MergeInserted
	} else {
		s.mu.Unlock()
		return MergeDropped
	}
	s.touched = flight.FlightNumber
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return outcome
}

// Flights returns a copy of the current list
func (s *SyncStore) Flights() []entity.FlightRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.FlightRecord{}, s.flights...)
}

// Touched returns the identity of the most recently merged flight
func (s *SyncStore) Touched() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}

// State returns the lifecycle state
func (s *SyncStore) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Criteria returns the active filter
func (s *SyncStore) Criteria() entity.FilterCriteria {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.criteria
}

// Err returns the error of the last completed read, if it failed
func (s *SyncStore) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Snapshot returns a consistent copy of the whole store
func (s *SyncStore) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *SyncStore) replaceLocked(flights []entity.FlightRecord) {
	s.flights = make([]entity.FlightRecord, 0, len(flights))
	s.index = make(map[string]int, len(flights))
	for _, f := range flights {
		if i, ok := s.index[f.FlightNumber]; ok && f.FlightNumber != "" {
			s.flights[i] = f
			continue
		}
		if f.FlightNumber != "" {
			s.index[f.FlightNumber] = len(s.flights)
		}
		s.flights = append(s.flights, f)
	}
}

func (s *SyncStore) snapshotLocked() Snapshot {
	return Snapshot{
		State:    s.state,
		Criteria: s.criteria,
		Flights:  append([]entity.FlightRecord{}, s.flights...),
		Touched:  s.touched,
		Err:      s.err,
	}
}

func (s *SyncStore) notify(snap Snapshot) {
	if s.onChange != nil {
		s.onChange(snap)
	}
}
