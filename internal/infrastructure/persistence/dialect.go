package persistence

import (
	"errors"
	"fmt"
	"strings"
)

// Procedure names the store exposes
const (
	ProcGetFlightsByFilters   = "GetFlightsByFilters"
	ProcGetAllAirports        = "GetAllAirports"
	ProcSaveNewOrUpdateFlight = "SaveNewOrUpdateFlight"
	ProcSaveAirport           = "SaveAirport"
)

// CallShape is what a procedure call hands back
type CallShape int

const (
	// ShapeRows returns a row set
	ShapeRows CallShape = iota + 1
	// ShapeIdentifier returns the identifier of the written entity
	ShapeIdentifier
	// ShapeRowCount returns the number of affected rows
	ShapeRowCount
)

// ErrUnknownProcedure is returned for a name missing from the dialect's catalog
var ErrUnknownProcedure = errors.New("unknown procedure")

// Procedure describes one callable unit of the store. Group is the storage
// group a write procedure persists and is empty for reads.
type Procedure struct {
	Name  string
	Shape CallShape
	Group string
}

// Statement is a rendered call, ready for database/sql
type Statement struct {
	Query string
	Args  []any
	Shape CallShape
	// ScalarResult means the identifier or row count is the single value of
	// the first result row rather than the driver's RowsAffected.
	ScalarResult bool
}

// Dialect renders procedure calls for one store engine
type Dialect interface {
	Name() string
	Procedure(name string) (Procedure, bool)
	ProcedureForGroup(group string) (Procedure, bool)
	Render(proc Procedure, params []BoundParam) (Statement, error)
}

// DefaultProcedures is the procedure set both dialects implement
var DefaultProcedures = []Procedure{
	{Name: ProcGetFlightsByFilters, Shape: ShapeRows},
	{Name: ProcGetAllAirports, Shape: ShapeRows},
	{Name: ProcSaveNewOrUpdateFlight, Shape: ShapeIdentifier, Group: "FLIGHT"},
	{Name: ProcSaveAirport, Shape: ShapeRowCount, Group: "AIRPORT"},
}

type catalog struct {
	byName  map[string]Procedure
	byGroup map[string]Procedure
}

func newCatalog(procs []Procedure) catalog {
	c := catalog{byName: make(map[string]Procedure), byGroup: make(map[string]Procedure)}
	for _, p := range procs {
		c.byName[strings.ToLower(p.Name)] = p
		if p.Group != "" {
			c.byGroup[p.Group] = p
		}
	}
	return c
}

func (c catalog) Procedure(name string) (Procedure, bool) {
	p, ok := c.byName[strings.ToLower(name)]
	return p, ok
}

func (c catalog) ProcedureForGroup(group string) (Procedure, bool) {
	p, ok := c.byGroup[group]
	return p, ok
}

// PostgresDialect calls stored functions using named notation. Every
// argument is cast to its transport type so NULLs resolve the overload.
type PostgresDialect struct {
	catalog
}

// NewPostgresDialect creates a dialect for the given procedures
func NewPostgresDialect(procs []Procedure) *PostgresDialect {
	return &PostgresDialect{catalog: newCatalog(procs)}
}

func (d *PostgresDialect) Name() string { return "postgres" }

func (d *PostgresDialect) Render(proc Procedure, params []BoundParam) (Statement, error) {
	args := make([]any, 0, len(params))
	named := make([]string, 0, len(params))
	for i, p := range params {
		sqlType, err := postgresType(p.Type)
		if err != nil {
			return Statement{}, fmt.Errorf("parameter %s: %w", p.Name, err)
		}
		named = append(named, fmt.Sprintf("%s => $%d::%s", p.Name, i+1, sqlType))
		args = append(args, p.Value)
	}
	call := fmt.Sprintf("%s(%s)", proc.Name, strings.Join(named, ", "))

	stmt := Statement{Args: args, Shape: proc.Shape}
	switch proc.Shape {
	case ShapeRows:
		stmt.Query = "SELECT * FROM " + call
	case ShapeIdentifier, ShapeRowCount:
		stmt.Query = "SELECT " + call
		stmt.ScalarResult = true
	default:
		return Statement{}, fmt.Errorf("procedure %s: unknown call shape %d", proc.Name, proc.Shape)
	}
	return stmt, nil
}

func postgresType(t TransportType) (string, error) {
	switch t {
	case TransportInteger:
		return "integer", nil
	case TransportText:
		return "text", nil
	case TransportTimestamp:
		return "timestamptz", nil
	case TransportBoolean:
		return "boolean", nil
	case TransportDecimal:
		return "numeric", nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownParamType, t)
}
