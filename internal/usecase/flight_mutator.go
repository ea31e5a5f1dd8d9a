package usecase

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"flightboard-service/internal/domain/entity"
	"flightboard-service/pkg/logger"
	"flightboard-service/pkg/metrics"
)

// Mutation kinds applied by the mutator
const (
	MutationStatus      = "status"
	MutationDelay       = "delay"
	MutationDestination = "destination"
)

// maxDelayMinutes bounds the delay a flight can accumulate
const maxDelayMinutes = 120

// DefaultStatuses are the states the mutator moves flights between
var DefaultStatuses = []string{"hangar", "airborne", "malfunction"}

// FlightStore is what the mutator reads from and writes through
type FlightStore interface {
	GetFlights(ctx context.Context, criteria entity.FilterCriteria) ([]entity.FlightRecord, error)
	GetAirports(ctx context.Context) ([]entity.Airport, error)
	SaveFlight(ctx context.Context, flight entity.FlightRecord) (string, error)
}

// MutatorOptions configures the mutator
type MutatorOptions struct {
	Interval time.Duration
	Statuses []string
	// Seed makes the mutation sequence reproducible when non-zero
	Seed uint64
}

// FlightMutator picks a random flight on a fixed cadence and changes its
// status, its delay or its destination
type FlightMutator struct {
	store    FlightStore
	interval time.Duration
	limiter  *rate.Limiter
	statuses []string
	logger   logger.Logger
	metrics  *metrics.Metrics

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewFlightMutator creates a new flight mutator
func NewFlightMutator(store FlightStore, opts MutatorOptions, logger logger.Logger, m *metrics.Metrics) *FlightMutator {
	if opts.Interval <= 0 {
		opts.Interval = 300 * time.Millisecond
	}
	if len(opts.Statuses) == 0 {
		opts.Statuses = DefaultStatuses
	}
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &FlightMutator{
		store:    store,
		interval: opts.Interval,
		limiter:  rate.NewLimiter(rate.Every(opts.Interval), 1),
		statuses: opts.Statuses,
		logger:   logger,
		metrics:  m,
		rnd:      rand.New(rand.NewPCG(seed, seed>>1|1)),
	}
}

// Run mutates one flight per interval until ctx is cancelled
func (m *FlightMutator) Run(ctx context.Context) error {
	m.logger.Info("Flight mutator started", "interval", m.interval)
	// the first token is spent up front so the first mutation waits a full interval
	m.limiter.Allow()
	for {
		if err := m.limiter.Wait(ctx); err != nil {
			// Wait also fails early when the next token lies past the deadline
			<-ctx.Done()
			m.logger.Info("Flight mutator stopped")
			return nil
		}
		if _, err := m.Tick(ctx); err != nil {
			m.logger.Error("Flight mutation failed", "error", err)
		}
	}
}

// Tick applies one mutation and returns its kind. It returns an empty kind
// when there was nothing to mutate.
func (m *FlightMutator) Tick(ctx context.Context) (string, error) {
	flights, err := m.store.GetFlights(ctx, entity.FilterCriteria{})
	if err != nil {
		return "", err
	}
	if len(flights) == 0 {
		m.logger.Warn("No flights found to mutate")
		return "", nil
	}

	flight := flights[m.intN(len(flights))]
	var kind string
	switch m.intN(3) {
	case 0:
		kind = MutationStatus
		m.mutateStatus(&flight)
	case 1:
		kind = MutationDelay
		m.mutateDelay(&flight)
	default:
		kind = MutationDestination
		airports, err := m.store.GetAirports(ctx)
		if err != nil {
			return "", err
		}
		if len(airports) == 0 {
			m.logger.Warn("No airports available for destination update", "flightNumber", flight.FlightNumber)
			return "", nil
		}
		flight.LandingAirport = airports[m.intN(len(airports))].AirportCode
	}

	if _, err := m.store.SaveFlight(ctx, flight); err != nil {
		return "", err
	}
	if m.metrics != nil {
		m.metrics.MutationsApplied.WithLabelValues(kind).Inc()
	}
	m.logger.Debug("Flight mutated", "flightNumber", flight.FlightNumber, "kind", kind)
	return kind, nil
}

func (m *FlightMutator) mutateStatus(flight *entity.FlightRecord) {
	flight.Status = m.statuses[m.intN(len(m.statuses))]
}

// mutateDelay shifts both times by the same amount so that the new delay
// stays in [0, maxDelayMinutes)
func (m *FlightMutator) mutateDelay(flight *entity.FlightRecord) {
	low := -int(flight.DelayMinutes)
	high := maxDelayMinutes - int(flight.DelayMinutes)
	if high <= low {
		return
	}
	shift := low + m.intN(high-low)
	d := time.Duration(shift) * time.Minute
	if !flight.TakeoffTime.IsZero() {
		flight.TakeoffTime = flight.TakeoffTime.Add(d)
	}
	if !flight.LandingTime.IsZero() {
		flight.LandingTime = flight.LandingTime.Add(d)
	}
	flight.DelayMinutes += int32(shift)
}

func (m *FlightMutator) intN(n int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rnd.IntN(n)
}
