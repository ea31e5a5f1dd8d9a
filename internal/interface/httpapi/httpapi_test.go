package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"flightboard-service/internal/domain/entity"
	"flightboard-service/internal/domain/failure"
	"flightboard-service/internal/infrastructure/broadcast"
	"flightboard-service/internal/usecase"
	"flightboard-service/pkg/logger"
	"flightboard-service/pkg/metrics"
)

type fakeBoard struct {
	flights     []entity.FlightRecord
	airports    []entity.Airport
	history     []entity.FlightUpdated
	err         error
	airportsErr error
	historyErr  error

	gotCriteria entity.FilterCriteria
	gotFlight   entity.FlightRecord
	gotLimit    int64
}

func (f *fakeBoard) GetFlights(_ context.Context, criteria entity.FilterCriteria) ([]entity.FlightRecord, error) {
	f.gotCriteria = criteria
	if f.err != nil {
		return nil, f.err
	}
	out := []entity.FlightRecord{}
	for _, fl := range f.flights {
		if criteria.Matches(fl) {
			out = append(out, fl)
		}
	}
	return out, nil
}

func (f *fakeBoard) GetAirports(context.Context) ([]entity.Airport, error) {
	return f.airports, f.airportsErr
}

func (f *fakeBoard) SaveFlight(_ context.Context, flight entity.FlightRecord) (string, error) {
	f.gotFlight = flight
	if f.err != nil {
		return "", f.err
	}
	if flight.FlightNumber == "" {
		return "FL0042", nil
	}
	return flight.FlightNumber, nil
}

func (f *fakeBoard) FlightHistory(_ context.Context, _ string, limit int64) ([]entity.FlightUpdated, error) {
	f.gotLimit = limit
	return f.history, f.historyErr
}

func newTestServer(t *testing.T, board FlightBoard, b *broadcast.Broadcaster) *httptest.Server {
	t.Helper()
	if b == nil {
		b = broadcast.New(broadcast.Options{}, logger.NewNopLogger(), nil)
	}
	reg := prometheus.NewRegistry()
	metrics.NewMetrics("flightboard", reg)
	srv := httptest.NewServer(NewRouter(board, b, Options{
		AllowedOrigin: "http://localhost:4200",
		Gatherer:      reg,
		WriteTimeout:  time.Second,
		PingInterval:  time.Second,
	}, logger.NewNopLogger()))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	return resp, buf.Bytes()
}

func TestGetFlightsWithWildcards(t *testing.T) {
	board := &fakeBoard{flights: []entity.FlightRecord{
		{FlightNumber: "FL0001", TakeoffAirport: "JFK", LandingAirport: "TLV"},
		{FlightNumber: "FL0002", TakeoffAirport: "LAX", LandingAirport: "TLV"},
		{FlightNumber: "FL0003", TakeoffAirport: "LAX", LandingAirport: "ORD"},
	}}
	srv := newTestServer(t, board, nil)

	resp, body := post(t, srv.URL+"/api/FlightManagement/getflights",
		`{"flightNumber":"","takeoffAirport":"null","landingAirport":"TLV"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var flights []entity.FlightRecord
	assert.Equal(t, nil, json.Unmarshal(body, &flights))
	assert.Equal(t, 2, len(flights))
	assert.Equal(t, "null", board.gotCriteria.TakeoffAirport)
}

func TestGetFlightsEmptyBody(t *testing.T) {
	board := &fakeBoard{flights: []entity.FlightRecord{{FlightNumber: "FL0001"}}}
	srv := newTestServer(t, board, nil)

	resp, body := post(t, srv.URL+"/api/FlightManagement/getflights", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var flights []entity.FlightRecord
	assert.Equal(t, nil, json.Unmarshal(body, &flights))
	assert.Equal(t, 1, len(flights))
}

func TestGetFlightsFailure(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"connection", failure.NewConnection("open", errors.New("refused")), http.StatusServiceUnavailable},
		{"query", failure.NewQuery("GetFlightsByFilters", errors.New("syntax")), http.StatusInternalServerError},
		{"mapping", failure.NewMapping("DelayMinutes", errors.New("overflow")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeBoard{err: tt.err}, nil)
			resp, body := post(t, srv.URL+"/api/FlightManagement/getflights", "{}")
			assert.Equal(t, tt.status, resp.StatusCode)

			var payload map[string]string
			assert.Equal(t, nil, json.Unmarshal(body, &payload))
			assert.Equal(t, tt.err.Error(), payload["error"])
		})
	}
}

func TestGetFlightsBadBody(t *testing.T) {
	srv := newTestServer(t, &fakeBoard{}, nil)
	resp, _ := post(t, srv.URL+"/api/FlightManagement/getflights", "{not json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetAirportsDegradesToEmpty(t *testing.T) {
	srv := newTestServer(t, &fakeBoard{airportsErr: failure.NewConnection("open", errors.New("refused"))}, nil)

	resp, body := post(t, srv.URL+"/api/FlightManagement/getairports", "{}")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "[]", strings.TrimSpace(string(body)))
}

func TestGetAirports(t *testing.T) {
	srv := newTestServer(t, &fakeBoard{airports: []entity.Airport{{AirportCode: "TLV", AirportName: "Ben Gurion"}}}, nil)

	_, body := post(t, srv.URL+"/api/FlightManagement/getairports", "{}")
	var airports []entity.Airport
	assert.Equal(t, nil, json.Unmarshal(body, &airports))
	assert.Equal(t, []entity.Airport{{AirportCode: "TLV", AirportName: "Ben Gurion"}}, airports)
}

func TestSaveFlight(t *testing.T) {
	board := &fakeBoard{}
	srv := newTestServer(t, board, nil)

	resp, body := post(t, srv.URL+"/api/FlightManagement/saveflight",
		`{"takeoffAirport":"JFK","landingAirport":"LAX","status":"hangar","takeoffTime":"2024-06-01T08:00:00Z","delayMinutes":5}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var id string
	assert.Equal(t, nil, json.Unmarshal(body, &id))
	assert.Equal(t, "FL0042", id)
	assert.Equal(t, int32(5), board.gotFlight.DelayMinutes)
	assert.Equal(t, time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC), board.gotFlight.TakeoffTime)
}

func TestSaveFlightFailure(t *testing.T) {
	srv := newTestServer(t, &fakeBoard{err: failure.NewQuery("SaveNewOrUpdateFlight", errors.New("constraint"))}, nil)
	resp, body := post(t, srv.URL+"/api/FlightManagement/saveflight", `{"takeoffAirport":"JFK"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, true, strings.Contains(string(body), "SaveNewOrUpdateFlight"))
}

func TestFlightHistory(t *testing.T) {
	board := &fakeBoard{history: []entity.FlightUpdated{entity.NewFlightUpdated(entity.FlightRecord{FlightNumber: "FL0001"})}}
	srv := newTestServer(t, board, nil)

	resp, err := http.Get(srv.URL + "/api/FlightManagement/flighthistory/FL0001?limit=5")
	assert.Equal(t, nil, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(5), board.gotLimit)

	var events []entity.FlightUpdated
	assert.Equal(t, nil, json.NewDecoder(resp.Body).Decode(&events))
	assert.Equal(t, 1, len(events))

	bad, err := http.Get(srv.URL + "/api/FlightManagement/flighthistory/FL0001?limit=abc")
	assert.Equal(t, nil, err)
	bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestFlightHistoryUnavailable(t *testing.T) {
	srv := newTestServer(t, &fakeBoard{historyErr: usecase.ErrHistoryUnavailable}, nil)
	resp, err := http.Get(srv.URL + "/api/FlightManagement/flighthistory/FL0001")
	assert.Equal(t, nil, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, &fakeBoard{}, nil)

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/FlightManagement/getflights", nil)
	req.Header.Set("Origin", "http://localhost:4200")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	assert.Equal(t, nil, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:4200", resp.Header.Get("Access-Control-Allow-Origin"))

	req, _ = http.NewRequest(http.MethodOptions, srv.URL+"/api/FlightManagement/getflights", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err = http.DefaultClient.Do(req)
	assert.Equal(t, nil, err)
	resp.Body.Close()
	assert.Equal(t, "", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestCORSActualRequestAllowsCredentials(t *testing.T) {
	srv := newTestServer(t, &fakeBoard{}, nil)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	req.Header.Set("Origin", "http://localhost:4200")
	resp, err := http.DefaultClient.Do(req)
	assert.Equal(t, nil, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "http://localhost:4200", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "Origin", resp.Header.Get("Vary"))

	req, _ = http.NewRequest(http.MethodOptions, srv.URL+"/api/FlightManagement/saveflight", nil)
	req.Header.Set("Origin", "http://localhost:4200")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	resp, err = http.DefaultClient.Do(req)
	assert.Equal(t, nil, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "Content-Type", resp.Header.Get("Access-Control-Allow-Headers"))
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, &fakeBoard{}, nil)

	resp, err := http.Get(srv.URL + "/health")
	assert.Equal(t, nil, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	assert.Equal(t, nil, err)
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, strings.Contains(buf.String(), "flightboard_subscribers"))
}

func TestFlightHubStreamsUpdates(t *testing.T) {
	b := broadcast.New(broadcast.Options{}, logger.NewNopLogger(), nil)
	b.Start()
	defer b.Stop()
	srv := newTestServer(t, &fakeBoard{}, b)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/flightHub"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	deadline := time.Now().Add(2 * time.Second)
	for b.SubscriberCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, 1, b.SubscriberCount())

	b.Publish(entity.FlightRecord{FlightNumber: "FL0001", Status: "airborne"})
	b.Publish(entity.FlightRecord{FlightNumber: "FL0002", Status: "hangar"})

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	for _, want := range []string{"FL0001", "FL0002"} {
		var event entity.FlightUpdated
		assert.Equal(t, nil, ws.ReadJSON(&event))
		assert.Equal(t, entity.FlightUpdatedType, event.Type)
		assert.Equal(t, want, event.Flight.FlightNumber)
	}

	ws.Close()
	deadline = time.Now().Add(2 * time.Second)
	for b.SubscriberCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, 0, b.SubscriberCount())
}

func TestFlightHubRejectsForeignOrigin(t *testing.T) {
	srv := newTestServer(t, &fakeBoard{}, nil)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/flightHub"
	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	assert.NotEqual(t, nil, err)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
}
