package repository

import (
	"context"
	"errors"

	"flightboard-service/internal/domain/entity"
	"flightboard-service/internal/domain/failure"
	"flightboard-service/internal/domain/repository"
	"flightboard-service/internal/infrastructure/mapping"
	"flightboard-service/internal/infrastructure/persistence"
	"flightboard-service/pkg/logger"
)

// SQLFlightRecordRepository implements FlightRecordRepository over the
// stored procedures
type SQLFlightRecordRepository struct {
	connector *persistence.Connector
	registry  *mapping.Registry
	logger    logger.Logger
}

// NewSQLFlightRecordRepository creates a new flight record repository
func NewSQLFlightRecordRepository(connector *persistence.Connector, registry *mapping.Registry, log logger.Logger) repository.FlightRecordRepository {
	return &SQLFlightRecordRepository{
		connector: connector,
		registry:  registry,
		logger:    log,
	}
}

// Filter finds the flights matching criteria
func (r *SQLFlightRecordRepository) Filter(ctx context.Context, criteria entity.FilterCriteria) (_ []entity.FlightRecord, err error) {
	normalized := criteria.Normalized()
	params, err := mapping.BuildParams(r.registry, &normalized)
	if err != nil {
		return nil, err
	}

	core := r.connector.Core()
	defer core.Close()

	cursor, err := core.Read(ctx, persistence.ProcGetFlightsByFilters, params.Params)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := cursor.Close(); closeErr != nil && err == nil {
			err = failure.NewConnection(persistence.ProcGetFlightsByFilters, closeErr)
		}
	}()

	return materializeAll[entity.FlightRecord](r.registry, persistence.ProcGetFlightsByFilters, cursor)
}

// Save inserts a new flight or updates an existing one. On success the
// stored identifier is written back into flight.
func (r *SQLFlightRecordRepository) Save(ctx context.Context, flight *entity.FlightRecord) (string, error) {
	params, err := mapping.BuildParams(r.registry, flight)
	if err != nil {
		return "", err
	}

	core := r.connector.Core()
	defer core.Close()

	res, err := core.WriteSet(ctx, params)
	if err != nil {
		return "", err
	}
	flight.FlightNumber = res.Identifier
	return res.Identifier, nil
}

// SaveBatch writes flights in one transaction, all or nothing
func (r *SQLFlightRecordRepository) SaveBatch(ctx context.Context, flights []entity.FlightRecord) ([]string, error) {
	if len(flights) == 0 {
		return []string{}, nil
	}
	batch, err := mapping.BuildBatch(r.registry, flights)
	if err != nil {
		return nil, err
	}

	core := r.connector.Core()
	defer core.Close()

	res, err := core.WriteBatch(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(res.Identifiers) != len(flights) {
		return nil, failure.NewQuery(persistence.ProcSaveNewOrUpdateFlight, errors.New("identifier count does not match batch size"))
	}
	for i := range flights {
		flights[i].FlightNumber = res.Identifiers[i]
	}
	r.logger.Debug("Saved flight batch", "count", len(flights))
	return res.Identifiers, nil
}
