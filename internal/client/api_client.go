package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"flightboard-service/internal/domain/entity"
)

const apiPrefix = "/api/FlightManagement"

// APIError is a non-2xx answer from the service
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("flightboard: HTTP %d", e.Status)
	}
	return fmt.Sprintf("flightboard: HTTP %d: %s", e.Status, e.Message)
}

// APIClient calls the FlightManagement endpoints
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIClient creates a client for the service at baseURL. A nil
// httpClient gets a client with a 30 second timeout.
func NewAPIClient(baseURL string, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &APIClient{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// GetFlights posts criteria to getflights
func (c *APIClient) GetFlights(ctx context.Context, criteria entity.FilterCriteria) ([]entity.FlightRecord, error) {
	flights := []entity.FlightRecord{}
	if err := c.post(ctx, "/getflights", criteria, &flights); err != nil {
		return nil, err
	}
	return flights, nil
}

// GetAirports lists every airport
func (c *APIClient) GetAirports(ctx context.Context) ([]entity.Airport, error) {
	airports := []entity.Airport{}
	if err := c.post(ctx, "/getairports", struct{}{}, &airports); err != nil {
		return nil, err
	}
	return airports, nil
}

// SaveFlight inserts or updates flight and returns its identifier
func (c *APIClient) SaveFlight(ctx context.Context, flight entity.FlightRecord) (string, error) {
	var id string
	if err := c.post(ctx, "/saveflight", flight, &id); err != nil {
		return "", err
	}
	return id, nil
}

// FlightHistory returns up to limit updates of one flight, newest first
func (c *APIClient) FlightHistory(ctx context.Context, flightNumber string, limit int64) ([]entity.FlightUpdated, error) {
	path := apiPrefix + "/flighthistory/" + url.PathEscape(flightNumber)
	if limit > 0 {
		path += "?limit=" + strconv.FormatInt(limit, 10)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	events := []entity.FlightUpdated{}
	if err := c.do(req, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *APIClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+apiPrefix+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *APIClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(body, &payload) == nil {
			apiErr.Message = payload.Error
		}
		return apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

// SearchAirports returns the airports whose code contains query, ignoring case
func SearchAirports(airports []entity.Airport, query string) []entity.Airport {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]entity.Airport, 0, len(airports))
	for _, a := range airports {
		if strings.Contains(strings.ToLower(a.AirportCode), q) {
			out = append(out, a)
		}
	}
	return out
}
