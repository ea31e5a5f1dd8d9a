package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"flightboard-service/internal/domain/entity"
	"flightboard-service/internal/domain/failure"
	"flightboard-service/internal/usecase"
	"flightboard-service/pkg/logger"
)

const maxBodyBytes = 1 << 20

// FlightBoard is the use case surface the handlers serve
type FlightBoard interface {
	GetFlights(ctx context.Context, criteria entity.FilterCriteria) ([]entity.FlightRecord, error)
	GetAirports(ctx context.Context) ([]entity.Airport, error)
	SaveFlight(ctx context.Context, flight entity.FlightRecord) (string, error)
	FlightHistory(ctx context.Context, flightNumber string, limit int64) ([]entity.FlightUpdated, error)
}

// Handler serves the FlightManagement endpoints
type Handler struct {
	board  FlightBoard
	logger logger.Logger
}

// NewHandler creates a new handler
func NewHandler(board FlightBoard, logger logger.Logger) *Handler {
	return &Handler{board: board, logger: logger}
}

// GetFlights answers with the flights matching the posted criteria. An empty
// body means no criteria.
func (h *Handler) GetFlights(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("getflights endpoint hit")

	var criteria entity.FilterCriteria
	if err := decodeBody(r, &criteria); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	flights, err := h.board.GetFlights(r.Context(), criteria)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, flights)
}

// GetAirports answers with every airport. A store failure degrades to an
// empty list.
func (h *Handler) GetAirports(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("getairports endpoint hit")

	airports, err := h.board.GetAirports(r.Context())
	if err != nil {
		h.logger.Warn("Answering getairports with an empty list", "error", err)
		airports = []entity.Airport{}
	}
	writeJSON(w, http.StatusOK, airports)
}

// SaveFlight inserts or updates the posted flight and answers with its identifier
func (h *Handler) SaveFlight(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("saveflight endpoint hit")

	var flight entity.FlightRecord
	if err := decodeBody(r, &flight); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	id, err := h.board.SaveFlight(r.Context(), flight)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, id)
}

// FlightHistory answers with the latest updates for one flight, newest first
func (h *Handler) FlightHistory(w http.ResponseWriter, r *http.Request) {
	flightNumber := chi.URLParam(r, "flightNumber")

	var limit int64
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	events, err := h.board.FlightHistory(r.Context(), flightNumber, limit)
	if errors.Is(err, usecase.ErrHistoryUnavailable) {
		writeError(w, http.StatusNotImplemented, err)
		return
	}
	if err != nil {
		h.logger.Error("Failed to load flight history", "flightNumber", flightNumber, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func statusFor(err error) int {
	switch failure.KindOf(err) {
	case failure.KindConnection:
		return http.StatusServiceUnavailable
	case failure.KindMapping, failure.KindQuery:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
