package persistence

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/shopspring/decimal"

	"flightboard-service/internal/infrastructure/mapping"
)

func TestPostgresRenderRows(t *testing.T) {
	d := NewPostgresDialect(DefaultProcedures)
	proc, ok := d.Procedure("getflightsbyfilters")
	assert.Equal(t, true, ok)

	bound, err := bindParams([]mapping.Param{
		{Name: "FLIGHTNUMBER", Value: mapping.Null{Kind: mapping.KindString}},
		{Name: "TAKEOFFAIRPORT", Value: "JFK"},
	})
	assert.Equal(t, nil, err)

	stmt, err := d.Render(proc, bound)
	assert.Equal(t, nil, err)
	assert.Equal(t, "SELECT * FROM GetFlightsByFilters(FLIGHTNUMBER => $1::text, TAKEOFFAIRPORT => $2::text)", stmt.Query)
	assert.Equal(t, []any{nil, "JFK"}, stmt.Args)
	assert.Equal(t, false, stmt.ScalarResult)
}

func TestPostgresRenderScalar(t *testing.T) {
	d := NewPostgresDialect(DefaultProcedures)
	proc, ok := d.ProcedureForGroup("FLIGHT")
	assert.Equal(t, true, ok)
	assert.Equal(t, ProcSaveNewOrUpdateFlight, proc.Name)

	bound, err := bindParams([]mapping.Param{
		{Name: "TAKEOFFTIME", Value: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{Name: "DELAYMINUTES", Value: int32(7)},
	})
	assert.Equal(t, nil, err)

	stmt, err := d.Render(proc, bound)
	assert.Equal(t, nil, err)
	assert.Equal(t, "SELECT SaveNewOrUpdateFlight(TAKEOFFTIME => $1::timestamptz, DELAYMINUTES => $2::integer)", stmt.Query)
	assert.Equal(t, true, stmt.ScalarResult)
	assert.Equal(t, ShapeIdentifier, stmt.Shape)
}

func TestSQLiteRenderNamedArgs(t *testing.T) {
	d := NewSQLiteDialect()
	proc, ok := d.Procedure(ProcSaveAirport)
	assert.Equal(t, true, ok)

	bound, err := bindParams([]mapping.Param{{Name: "AIRPORTCODE", Value: "JFK"}})
	assert.Equal(t, nil, err)

	stmt, err := d.Render(proc, bound)
	assert.Equal(t, nil, err)
	assert.Equal(t, []any{sql.Named("AIRPORTCODE", "JFK")}, stmt.Args)
	assert.Equal(t, ShapeRowCount, stmt.Shape)

	_, err = d.Render(Procedure{Name: "Missing", Shape: ShapeRows}, nil)
	assert.Equal(t, true, errors.Is(err, ErrUnknownProcedure))
}

func TestInferTransport(t *testing.T) {
	tests := []struct {
		name  string
		in    any
		typ   TransportType
		value any
	}{
		{"int16", int16(3), TransportInteger, int64(3)},
		{"int32", int32(-4), TransportInteger, int64(-4)},
		{"text", "JFK", TransportText, "JFK"},
		{"bool", true, TransportBoolean, true},
		{"decimal", decimal.RequireFromString("1.25"), TransportDecimal, "1.250000000"},
		{"decimal pointer", func() *decimal.Decimal { d := decimal.New(12995, -2); return &d }(), TransportDecimal, "129.950000000"},
		{"nil decimal", (*decimal.Decimal)(nil), TransportDecimal, nil},
		{"float", 2.5, TransportDecimal, "2.5"},
		{"null time", mapping.Null{Kind: mapping.KindTime}, TransportTimestamp, nil},
		{"null int", mapping.Null{Kind: mapping.KindInt32}, TransportInteger, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ, value, err := inferTransport(tt.in)
			assert.Equal(t, nil, err)
			assert.Equal(t, tt.typ, typ)
			assert.Equal(t, tt.value, value)
		})
	}

	_, _, err := inferTransport([]string{"x"})
	assert.Equal(t, true, errors.Is(err, ErrUnknownParamType))

	_, _, err = inferTransport(mapping.Null{Kind: mapping.KindComposite})
	assert.Equal(t, true, errors.Is(err, ErrUnknownParamType))
}
