package repository

import (
	"flightboard-service/internal/domain/failure"
	"flightboard-service/internal/infrastructure/mapping"
)

// materializeAll drains the cursor returned by proc. Scan and iteration
// errors from the driver carry no failure kind and are reported as a
// QueryFailure of proc. The result is never nil.
func materializeAll[T mapping.Entity](r *mapping.Registry, proc string, cursor mapping.Cursor) ([]T, error) {
	items, err := mapping.MaterializeAll[T](r, cursor)
	if err != nil {
		if failure.KindOf(err) == "" {
			return nil, failure.NewQuery(proc, err)
		}
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}
