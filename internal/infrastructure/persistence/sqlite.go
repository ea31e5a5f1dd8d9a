package persistence

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

//go:embed sql/sqlite_schema.sql
var sqliteSchema string

// sqliteStatements implements the procedure catalog as plain statements
// with named parameters.
var sqliteStatements = map[string]string{
	ProcGetFlightsByFilters: `SELECT flightnumber AS FLIGHTNUMBER, takeoffairport AS TAKEOFFAIRPORT,
	landingairport AS LANDINGAIRPORT, status AS STATUS, takeofftime AS TAKEOFFTIME,
	landingtime AS LANDINGTIME, delayminutes AS DELAYMINUTES
FROM flights
WHERE (:FLIGHTNUMBER IS NULL OR flightnumber = :FLIGHTNUMBER)
  AND (:TAKEOFFAIRPORT IS NULL OR takeoffairport = :TAKEOFFAIRPORT)
  AND (:LANDINGAIRPORT IS NULL OR landingairport = :LANDINGAIRPORT)
ORDER BY flightnumber`,

	ProcGetAllAirports: `SELECT airportcode AS AIRPORTCODE, airportname AS AIRPORTNAME
FROM airports
ORDER BY airportcode`,

	ProcSaveNewOrUpdateFlight: `INSERT INTO flights (flightnumber, takeoffairport, landingairport, status, takeofftime, landingtime, delayminutes)
VALUES (
	COALESCE(:FLIGHTNUMBER, (
		WITH RECURSIVE seq(n) AS (
			SELECT COUNT(*) + 1 FROM flights
			UNION ALL
			SELECT n + 1 FROM seq WHERE EXISTS (SELECT 1 FROM flights WHERE flightnumber = printf('FL%04d', n))
		)
		SELECT printf('FL%04d', MAX(n)) FROM seq
	)),
	COALESCE(:TAKEOFFAIRPORT, ''),
	COALESCE(:LANDINGAIRPORT, ''),
	COALESCE(:STATUS, ''),
	:TAKEOFFTIME,
	:LANDINGTIME,
	COALESCE(:DELAYMINUTES, 0)
)
ON CONFLICT (flightnumber) DO UPDATE SET
	takeoffairport = excluded.takeoffairport,
	landingairport = excluded.landingairport,
	status = excluded.status,
	takeofftime = excluded.takeofftime,
	landingtime = excluded.landingtime,
	delayminutes = excluded.delayminutes
WHERE :FLIGHTNUMBER IS NOT NULL
RETURNING flightnumber`,

	ProcSaveAirport: `INSERT INTO airports (airportcode, airportname)
VALUES (:AIRPORTCODE, COALESCE(:AIRPORTNAME, ''))
ON CONFLICT (airportcode) DO UPDATE SET airportname = excluded.airportname`,
}

// SQLiteDialect looks procedures up in a statement catalog
type SQLiteDialect struct {
	catalog
	statements map[string]string
}

// NewSQLiteDialect creates the dialect for the built-in statement catalog
func NewSQLiteDialect() *SQLiteDialect {
	statements := make(map[string]string, len(sqliteStatements))
	for name, query := range sqliteStatements {
		statements[strings.ToLower(name)] = query
	}
	return &SQLiteDialect{catalog: newCatalog(DefaultProcedures), statements: statements}
}

func (d *SQLiteDialect) Name() string { return "sqlite" }

func (d *SQLiteDialect) Render(proc Procedure, params []BoundParam) (Statement, error) {
	query, ok := d.statements[strings.ToLower(proc.Name)]
	if !ok {
		return Statement{}, fmt.Errorf("%w: %s", ErrUnknownProcedure, proc.Name)
	}
	args := make([]any, 0, len(params))
	for _, p := range params {
		args = append(args, sql.Named(p.Name, p.Value))
	}
	return Statement{Query: query, Args: args, Shape: proc.Shape}, nil
}

// OpenSQLite opens the database at path (":memory:" for a private in-memory
// database) and creates the schema. Timestamps are written in the sqlite
// text format unless the path already picks one. The pool is capped at one
// connection, which also keeps an in-memory database shared.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		path = "flightboard.db"
	}
	if !strings.Contains(path, "_time_format=") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		path += sep + "_time_format=sqlite"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := BootstrapSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// BootstrapSQLite applies the embedded schema
func BootstrapSQLite(ctx context.Context, db *sql.DB) error {
	for _, stmt := range strings.Split(sqliteSchema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return nil
}
