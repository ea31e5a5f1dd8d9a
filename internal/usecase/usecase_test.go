package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"flightboard-service/internal/domain/entity"
	"flightboard-service/internal/domain/failure"
	"flightboard-service/internal/domain/repository"
	"flightboard-service/pkg/logger"
	"flightboard-service/pkg/metrics"
)

type memoryFlights struct {
	mu      sync.Mutex
	flights []entity.FlightRecord
	next    int
	err     error
}

func (m *memoryFlights) Filter(_ context.Context, criteria entity.FilterCriteria) ([]entity.FlightRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := []entity.FlightRecord{}
	for _, f := range m.flights {
		if criteria.Matches(f) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *memoryFlights) Save(_ context.Context, flight *entity.FlightRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	if flight.IsNew() {
		m.next++
		flight.FlightNumber = fmt.Sprintf("FL%04d", m.next)
		m.flights = append(m.flights, *flight)
		return flight.FlightNumber, nil
	}
	for i := range m.flights {
		if m.flights[i].FlightNumber == flight.FlightNumber {
			m.flights[i] = *flight
			return flight.FlightNumber, nil
		}
	}
	m.flights = append(m.flights, *flight)
	return flight.FlightNumber, nil
}

func (m *memoryFlights) SaveBatch(ctx context.Context, flights []entity.FlightRecord) ([]string, error) {
	ids := make([]string, 0, len(flights))
	for i := range flights {
		id, err := m.Save(ctx, &flights[i])
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *memoryFlights) get(id string) entity.FlightRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.flights {
		if f.FlightNumber == id {
			return f
		}
	}
	return entity.FlightRecord{}
}

type memoryAirports struct {
	airports []entity.Airport
	err      error
}

func (m *memoryAirports) List(context.Context) ([]entity.Airport, error) {
	if m.err != nil {
		return nil, m.err
	}
	return append([]entity.Airport{}, m.airports...), nil
}

func (m *memoryAirports) SaveAll(_ context.Context, airports []entity.Airport) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.airports = append(m.airports, airports...)
	return int64(len(airports)), nil
}

type memoryHistory struct {
	events []entity.FlightUpdated
	err    error
}

func (m *memoryHistory) Append(_ context.Context, event entity.FlightUpdated) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

func (m *memoryHistory) FindByFlightNumber(_ context.Context, flightNumber string, limit int64) ([]entity.FlightUpdated, error) {
	out := []entity.FlightUpdated{}
	for i := len(m.events) - 1; i >= 0 && int64(len(out)) < limit; i-- {
		if m.events[i].Flight.FlightNumber == flightNumber {
			out = append(out, m.events[i])
		}
	}
	return out, nil
}

type recordingPublisher struct {
	published []entity.FlightRecord
}

func (p *recordingPublisher) Publish(flight entity.FlightRecord) (entity.FlightUpdated, bool) {
	p.published = append(p.published, flight)
	return entity.NewFlightUpdated(flight), true
}

func newService(flights *memoryFlights, airports *memoryAirports, history repository.FlightHistoryRepository, pub Publisher) *FlightService {
	return NewFlightService(flights, airports, history, pub, logger.NewNopLogger())
}

func TestSaveFlightPublishesSavedSnapshot(t *testing.T) {
	flights := &memoryFlights{}
	pub := &recordingPublisher{}
	svc := newService(flights, &memoryAirports{}, nil, pub)

	id, err := svc.SaveFlight(context.Background(), entity.FlightRecord{TakeoffAirport: "JFK", LandingAirport: "LAX"})
	assert.Equal(t, nil, err)
	assert.Equal(t, "FL0001", id)
	assert.Equal(t, 1, len(pub.published))
	assert.Equal(t, "FL0001", pub.published[0].FlightNumber)
}

func TestSaveFlightFailureDoesNotPublish(t *testing.T) {
	flights := &memoryFlights{err: failure.NewQuery("SaveNewOrUpdateFlight", errors.New("deadlock"))}
	pub := &recordingPublisher{}
	svc := newService(flights, &memoryAirports{}, nil, pub)

	_, err := svc.SaveFlight(context.Background(), entity.FlightRecord{TakeoffAirport: "JFK"})
	assert.Equal(t, true, errors.Is(err, failure.Query))
	assert.Equal(t, 0, len(pub.published))
}

func TestSaveFlightWithoutPublisher(t *testing.T) {
	svc := NewFlightService(&memoryFlights{}, &memoryAirports{}, nil, nil, logger.NewNopLogger())
	id, err := svc.SaveFlight(context.Background(), entity.FlightRecord{})
	assert.Equal(t, nil, err)
	assert.Equal(t, "FL0001", id)
}

func TestFlightHistory(t *testing.T) {
	history := &memoryHistory{}
	svc := newService(&memoryFlights{}, &memoryAirports{}, history, &recordingPublisher{})
	recorder := NewHistoryRecorder(history, logger.NewNopLogger())

	for _, status := range []string{"hangar", "airborne", "malfunction"} {
		event := entity.NewFlightUpdated(entity.FlightRecord{FlightNumber: "FL0001", Status: status})
		assert.Equal(t, true, recorder.CanHandle(event))
		assert.Equal(t, nil, recorder.Handle(context.Background(), event))
	}
	assert.Equal(t, false, recorder.CanHandle(entity.NewFlightUpdated(entity.FlightRecord{})))

	events, err := svc.FlightHistory(context.Background(), "FL0001", 2)
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(events))
	assert.Equal(t, "malfunction", events[0].Flight.Status)

	noHistory := newService(&memoryFlights{}, &memoryAirports{}, nil, nil)
	_, err = noHistory.FlightHistory(context.Background(), "FL0001", 0)
	assert.Equal(t, ErrHistoryUnavailable, err)
}

func TestHistoryRecorderWrapsErrors(t *testing.T) {
	boom := errors.New("mongo unavailable")
	recorder := NewHistoryRecorder(&memoryHistory{err: boom}, logger.NewNopLogger())
	err := recorder.Handle(context.Background(), entity.NewFlightUpdated(entity.FlightRecord{FlightNumber: "FL0001"}))
	assert.Equal(t, true, errors.Is(err, boom))
}

func TestAirportSeeder(t *testing.T) {
	airports := &memoryAirports{}
	seeder := NewAirportSeeder(airports, logger.NewNopLogger())

	n, err := seeder.Seed(context.Background(), []entity.Airport{
		{AirportCode: "JFK", AirportName: "New York"},
		{AirportName: "No code"},
		{AirportCode: "TLV", AirportName: "Tel Aviv"},
	})
	assert.Equal(t, nil, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 2, len(airports.airports))

	n, err = seeder.Seed(context.Background(), nil)
	assert.Equal(t, nil, err)
	assert.Equal(t, int64(0), n)

	failing := NewAirportSeeder(&memoryAirports{err: errors.New("down")}, logger.NewNopLogger())
	_, err = failing.Seed(context.Background(), []entity.Airport{{AirportCode: "JFK"}})
	assert.NotEqual(t, nil, err)
}

func TestFlightSeeder(t *testing.T) {
	flights := &memoryFlights{}
	seeder := NewFlightSeeder(flights, logger.NewNopLogger())

	ids, err := seeder.Seed(context.Background(), []entity.FlightRecord{
		{TakeoffAirport: "JFK", LandingAirport: "TLV", Status: "hangar"},
		{TakeoffAirport: "CDG"},
		{TakeoffAirport: "LAX", LandingAirport: "ORD", Status: "airborne"},
	})
	assert.Equal(t, nil, err)
	assert.Equal(t, []string{"FL0001", "FL0002"}, ids)
	assert.Equal(t, "ORD", flights.get("FL0002").LandingAirport)

	// the board is no longer empty
	ids, err = seeder.Seed(context.Background(), []entity.FlightRecord{{TakeoffAirport: "ATL", LandingAirport: "LHR"}})
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, len(ids))
	assert.Equal(t, 2, len(flights.flights))

	failing := NewFlightSeeder(&memoryFlights{err: failure.NewConnection("GetFlightsByFilters", errors.New("refused"))}, logger.NewNopLogger())
	_, err = failing.Seed(context.Background(), []entity.FlightRecord{{TakeoffAirport: "JFK", LandingAirport: "TLV"}})
	assert.Equal(t, true, errors.Is(err, failure.Connection))
}

// stallingFlights stalls the first save after it has committed
type stallingFlights struct {
	*memoryFlights
	committed chan struct{}
	once      sync.Once

	mu      sync.Mutex
	commits []string
}

func (s *stallingFlights) Save(ctx context.Context, flight *entity.FlightRecord) (string, error) {
	id, err := s.memoryFlights.Save(ctx, flight)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.commits = append(s.commits, id)
	first := len(s.commits) == 1
	s.mu.Unlock()
	if first {
		s.once.Do(func() { close(s.committed) })
		time.Sleep(50 * time.Millisecond)
	}
	return id, nil
}

type orderPublisher struct {
	mu        sync.Mutex
	published []string
}

func (p *orderPublisher) Publish(flight entity.FlightRecord) (entity.FlightUpdated, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, flight.FlightNumber)
	return entity.NewFlightUpdated(flight), true
}

func TestSaveFlightPublishesInCommitOrder(t *testing.T) {
	flights := &stallingFlights{memoryFlights: &memoryFlights{}, committed: make(chan struct{})}
	pub := &orderPublisher{}
	svc := NewFlightService(flights, &memoryAirports{}, nil, pub, logger.NewNopLogger())

	done := make(chan error, 1)
	go func() {
		_, err := svc.SaveFlight(context.Background(), entity.FlightRecord{FlightNumber: "FL0001", Status: "hangar"})
		done <- err
	}()
	<-flights.committed

	_, err := svc.SaveFlight(context.Background(), entity.FlightRecord{FlightNumber: "FL0002", Status: "airborne"})
	assert.Equal(t, nil, err)
	assert.Equal(t, nil, <-done)

	flights.mu.Lock()
	commits := append([]string{}, flights.commits...)
	flights.mu.Unlock()
	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Equal(t, []string{"FL0001", "FL0002"}, commits)
	assert.Equal(t, commits, pub.published)
}

func seededFlight(delay int32) entity.FlightRecord {
	return entity.FlightRecord{
		TakeoffAirport: "JFK",
		LandingAirport: "LAX",
		Status:         "hangar",
		TakeoffTime:    time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
		LandingTime:    time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC),
		DelayMinutes:   delay,
	}
}

func TestMutatorTickKeepsInvariants(t *testing.T) {
	flights := &memoryFlights{}
	airports := &memoryAirports{airports: []entity.Airport{{AirportCode: "TLV"}, {AirportCode: "ORD"}}}
	pub := &recordingPublisher{}
	svc := newService(flights, airports, nil, pub)
	_, err := flights.SaveBatch(context.Background(), []entity.FlightRecord{seededFlight(0), seededFlight(90)})
	assert.Equal(t, nil, err)

	m := metrics.NewNopMetrics()
	mutator := NewFlightMutator(svc, MutatorOptions{Seed: 42}, logger.NewNopLogger(), m)

	kinds := map[string]int{}
	for i := 0; i < 300; i++ {
		kind, err := mutator.Tick(context.Background())
		assert.Equal(t, nil, err)
		kinds[kind]++
	}
	assert.Equal(t, 300, len(pub.published))
	assert.NotEqual(t, 0, kinds[MutationStatus])
	assert.NotEqual(t, 0, kinds[MutationDelay])
	assert.NotEqual(t, 0, kinds[MutationDestination])
	assert.Equal(t, float64(kinds[MutationDelay]), testutil.ToFloat64(m.MutationsApplied.WithLabelValues(MutationDelay)))

	for _, id := range []string{"FL0001", "FL0002"} {
		f := flights.get(id)
		assert.Equal(t, true, f.DelayMinutes >= 0 && f.DelayMinutes < maxDelayMinutes)
		assert.Equal(t, 6*time.Hour, f.LandingTime.Sub(f.TakeoffTime))
		assert.Equal(t, true, f.LandingAirport == "LAX" || f.LandingAirport == "TLV" || f.LandingAirport == "ORD")
		assert.Equal(t, true, f.Status == "hangar" || f.Status == "airborne" || f.Status == "malfunction")
	}
}

func TestMutatorDelayShiftsBothTimes(t *testing.T) {
	mutator := NewFlightMutator(&FlightService{}, MutatorOptions{Seed: 7}, logger.NewNopLogger(), nil)
	for i := 0; i < 50; i++ {
		f := seededFlight(int32(i * 2))
		before := f
		mutator.mutateDelay(&f)
		shift := time.Duration(f.DelayMinutes-before.DelayMinutes) * time.Minute
		assert.Equal(t, before.TakeoffTime.Add(shift), f.TakeoffTime)
		assert.Equal(t, before.LandingTime.Add(shift), f.LandingTime)
		assert.Equal(t, true, f.DelayMinutes >= 0 && f.DelayMinutes < maxDelayMinutes)
	}
}

func TestMutatorNothingToMutate(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newService(&memoryFlights{}, &memoryAirports{}, nil, pub)
	mutator := NewFlightMutator(svc, MutatorOptions{Seed: 1}, logger.NewNopLogger(), nil)

	kind, err := mutator.Tick(context.Background())
	assert.Equal(t, nil, err)
	assert.Equal(t, "", kind)
	assert.Equal(t, 0, len(pub.published))
}

func TestMutatorNoAirportsSkipsDestination(t *testing.T) {
	flights := &memoryFlights{}
	_, _ = flights.SaveBatch(context.Background(), []entity.FlightRecord{seededFlight(0)})
	pub := &recordingPublisher{}
	svc := newService(flights, &memoryAirports{}, nil, pub)
	mutator := NewFlightMutator(svc, MutatorOptions{Seed: 3}, logger.NewNopLogger(), nil)

	for i := 0; i < 60; i++ {
		kind, err := mutator.Tick(context.Background())
		assert.Equal(t, nil, err)
		assert.NotEqual(t, MutationDestination, kind)
	}
	assert.Equal(t, "LAX", flights.get("FL0001").LandingAirport)
}

func TestMutatorStoreFailure(t *testing.T) {
	boom := failure.NewConnection("open", errors.New("refused"))
	svc := newService(&memoryFlights{err: boom}, &memoryAirports{}, nil, nil)
	mutator := NewFlightMutator(svc, MutatorOptions{Seed: 1}, logger.NewNopLogger(), nil)

	_, err := mutator.Tick(context.Background())
	assert.Equal(t, true, errors.Is(err, failure.Connection))
}

func TestMutatorRunStopsOnCancel(t *testing.T) {
	flights := &memoryFlights{}
	_, _ = flights.SaveBatch(context.Background(), []entity.FlightRecord{seededFlight(0)})
	pub := &recordingPublisher{}
	svc := newService(flights, &memoryAirports{airports: []entity.Airport{{AirportCode: "TLV"}}}, nil, pub)
	mutator := NewFlightMutator(svc, MutatorOptions{Interval: 10 * time.Millisecond, Seed: 5}, logger.NewNopLogger(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- mutator.Run(ctx) }()

	select {
	case err := <-done:
		assert.Equal(t, nil, err)
	case <-time.After(2 * time.Second):
		t.Fatal("mutator did not stop")
	}
}
