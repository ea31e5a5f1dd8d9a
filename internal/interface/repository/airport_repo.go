package repository

import (
	"context"

	"flightboard-service/internal/domain/entity"
	"flightboard-service/internal/domain/repository"
	"flightboard-service/internal/infrastructure/mapping"
	"flightboard-service/internal/infrastructure/persistence"
	"flightboard-service/pkg/logger"
)

// SQLAirportRepository implements AirportRepository
type SQLAirportRepository struct {
	connector *persistence.Connector
	registry  *mapping.Registry
	logger    logger.Logger
}

// NewSQLAirportRepository creates a new airport repository
func NewSQLAirportRepository(connector *persistence.Connector, registry *mapping.Registry, log logger.Logger) repository.AirportRepository {
	return &SQLAirportRepository{
		connector: connector,
		registry:  registry,
		logger:    log,
	}
}

// List returns every airport ordered by code
func (r *SQLAirportRepository) List(ctx context.Context) ([]entity.Airport, error) {
	core := r.connector.Core()
	defer core.Close()

	cursor, err := core.Read(ctx, persistence.ProcGetAllAirports, nil)
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	return materializeAll[entity.Airport](r.registry, persistence.ProcGetAllAirports, cursor)
}

// SaveAll upserts airports in one transaction and returns the affected row count
func (r *SQLAirportRepository) SaveAll(ctx context.Context, airports []entity.Airport) (int64, error) {
	if len(airports) == 0 {
		return 0, nil
	}
	batch, err := mapping.BuildBatch(r.registry, airports)
	if err != nil {
		return 0, err
	}

	core := r.connector.Core()
	defer core.Close()

	res, err := core.WriteBatch(ctx, batch)
	if err != nil {
		return 0, err
	}
	r.logger.Info("Saved airports", "count", res.RowsAffected)
	return res.RowsAffected, nil
}
