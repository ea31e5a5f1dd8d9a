// Package persistence owns the store connection, the procedure dialects and
// schema provisioning. Core is the unit-of-work handle repositories go
// through for every read and write.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"flightboard-service/internal/domain/failure"
	"flightboard-service/internal/infrastructure/mapping"
	"flightboard-service/pkg/logger"
	"flightboard-service/pkg/metrics"
)

var (
	// ErrNoTransaction is returned by Commit without an active transaction
	ErrNoTransaction = errors.New("no active transaction")
	// ErrTransactionActive is returned when a second transaction is started
	ErrTransactionActive = errors.New("transaction already active")
)

// Connector hands out one Core per unit of work over a shared *sql.DB
type Connector struct {
	db      *sql.DB
	dialect Dialect
	logger  logger.Logger
	metrics *metrics.Metrics
}

// NewConnector creates a connector for db using dialect
func NewConnector(db *sql.DB, dialect Dialect, log logger.Logger, m *metrics.Metrics) *Connector {
	return &Connector{db: db, dialect: dialect, logger: log, metrics: m}
}

// Core returns a fresh unit of work. It is not safe for concurrent use.
func (c *Connector) Core() *Core {
	return &Core{db: c.db, dialect: c.dialect, logger: c.logger, metrics: c.metrics}
}

// Dialect returns the dialect procedures are rendered with
func (c *Connector) Dialect() Dialect {
	return c.dialect
}

// Close closes the underlying database handle
func (c *Connector) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// WriteResult is the outcome of a write: an identifier for insert/upsert
// procedures, an affected-row count for the others.
type WriteResult struct {
	Identifier   string
	RowsAffected int64
}

// BatchResult aggregates the writes of a batch
type BatchResult struct {
	Identifiers  []string
	RowsAffected int64
}

// Core owns exactly one connection for the lifetime of a unit of work.
// Outside a transaction the connection is released after every write and
// when a read cursor is closed.
type Core struct {
	db      *sql.DB
	dialect Dialect
	logger  logger.Logger
	metrics *metrics.Metrics

	conn *sql.Conn
	tx   *sql.Tx
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Open acquires the connection. It is a no-op when already open.
func (c *Core) Open(ctx context.Context) error {
	return c.open(ctx, "open")
}

func (c *Core) open(ctx context.Context, op string) error {
	if c.conn != nil {
		return nil
	}
	if c.db == nil {
		return failure.NewConnection(op, errors.New("database handle is nil"))
	}
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return failure.NewConnection(op, err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return failure.NewConnection(op, err)
	}
	c.conn = conn
	return nil
}

// Close releases the connection, rolling back a dangling transaction first.
// It is always safe to call.
func (c *Core) Close() error {
	if c.tx != nil {
		if err := c.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			c.logger.Warn("Rollback on close failed", "error", err)
		}
		c.tx = nil
	}
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	if err != nil && !errors.Is(err, sql.ErrConnDone) {
		return failure.NewConnection("close", err)
	}
	return nil
}

// IsOpen reports whether the connection is held
func (c *Core) IsOpen() bool {
	return c.conn != nil
}

// InTransaction reports whether a transaction is active
func (c *Core) InTransaction() bool {
	return c.tx != nil
}

func (c *Core) q() querier {
	if c.tx != nil {
		return c.tx
	}
	return c.conn
}

// releaseOnFailure closes the connection after a failed call. Inside a
// transaction the scope owner rolls back and closes instead.
func (c *Core) releaseOnFailure() {
	if c.tx != nil {
		return
	}
	if err := c.Close(); err != nil {
		c.logger.Warn("Close after failure failed", "error", err)
	}
}

func (c *Core) release() error {
	if c.tx != nil {
		return nil
	}
	return c.Close()
}

func (c *Core) prepare(name string, params []mapping.Param, shapes ...CallShape) (Statement, error) {
	proc, ok := c.dialect.Procedure(name)
	if !ok {
		return Statement{}, failure.NewQuery(name, ErrUnknownProcedure)
	}
	if !shapeAllowed(proc.Shape, shapes) {
		return Statement{}, failure.NewQuery(name, fmt.Errorf("call shape %d not allowed here", proc.Shape))
	}
	bound, err := bindParams(params)
	if err != nil {
		return Statement{}, failure.NewMapping(name, err)
	}
	stmt, err := c.dialect.Render(proc, bound)
	if err != nil {
		return Statement{}, failure.NewQuery(name, err)
	}
	return stmt, nil
}

func shapeAllowed(shape CallShape, allowed []CallShape) bool {
	for _, s := range allowed {
		if s == shape {
			return true
		}
	}
	return false
}

func (c *Core) observe(procedure string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		c.metrics.ErrorsCount.WithLabelValues(string(failure.KindOf(err))).Inc()
	}
	c.metrics.StoreCalls.WithLabelValues(procedure, outcome).Inc()
	c.metrics.StoreCallDuration.WithLabelValues(procedure).Observe(time.Since(start).Seconds())
}

// Read calls a row-returning procedure. The caller must close the cursor;
// doing so releases the connection unless a transaction is active.
func (c *Core) Read(ctx context.Context, procedure string, params []mapping.Param) (_ *Cursor, err error) {
	start := time.Now()
	defer func() { c.observe(procedure, start, err) }()

	stmt, err := c.prepare(procedure, params, ShapeRows)
	if err != nil {
		c.releaseOnFailure()
		return nil, err
	}
	if err := c.open(ctx, procedure); err != nil {
		return nil, err
	}

	c.logger.Debug("Calling procedure", "procedure", procedure, "dialect", c.dialect.Name())
	rows, err := c.q().QueryContext(ctx, stmt.Query, stmt.Args...)
	if err != nil {
		c.releaseOnFailure()
		return nil, failure.NewQuery(procedure, err)
	}
	return &Cursor{Rows: rows, release: c.release}, nil
}

// Write calls an identifier- or row-count-returning procedure
func (c *Core) Write(ctx context.Context, procedure string, params []mapping.Param) (_ WriteResult, err error) {
	start := time.Now()
	defer func() { c.observe(procedure, start, err) }()

	stmt, err := c.prepare(procedure, params, ShapeIdentifier, ShapeRowCount)
	if err != nil {
		c.releaseOnFailure()
		return WriteResult{}, err
	}
	if err := c.open(ctx, procedure); err != nil {
		return WriteResult{}, err
	}

	c.logger.Debug("Calling procedure", "procedure", procedure, "dialect", c.dialect.Name())
	result, err := c.execute(ctx, stmt)
	if err != nil {
		c.releaseOnFailure()
		return WriteResult{}, failure.NewQuery(procedure, err)
	}
	if err := c.release(); err != nil {
		c.logger.Warn("Release after write failed", "procedure", procedure, "error", err)
	}
	return result, nil
}

func (c *Core) execute(ctx context.Context, stmt Statement) (WriteResult, error) {
	switch {
	case stmt.Shape == ShapeIdentifier:
		var id sql.NullString
		if err := c.q().QueryRowContext(ctx, stmt.Query, stmt.Args...).Scan(&id); err != nil {
			return WriteResult{}, err
		}
		if !id.Valid || id.String == "" {
			return WriteResult{}, errors.New("procedure returned no identifier")
		}
		return WriteResult{Identifier: id.String, RowsAffected: 1}, nil
	case stmt.ScalarResult:
		var n sql.NullInt64
		if err := c.q().QueryRowContext(ctx, stmt.Query, stmt.Args...).Scan(&n); err != nil {
			return WriteResult{}, err
		}
		return WriteResult{RowsAffected: n.Int64}, nil
	default:
		res, err := c.q().ExecContext(ctx, stmt.Query, stmt.Args...)
		if err != nil {
			return WriteResult{}, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return WriteResult{}, err
		}
		return WriteResult{RowsAffected: n}, nil
	}
}

// WriteSet writes one entity parameter set through the procedure registered
// for its storage group
func (c *Core) WriteSet(ctx context.Context, set mapping.ParamSet) (WriteResult, error) {
	proc, ok := c.dialect.ProcedureForGroup(set.Group)
	if !ok {
		c.releaseOnFailure()
		return WriteResult{}, failure.NewQuery(set.Group, fmt.Errorf("%w for storage group", ErrUnknownProcedure))
	}
	return c.Write(ctx, proc.Name, set.Params)
}

// WriteBatch writes every row of batch inside one transaction. When a
// transaction is already active the rows join it.
func (c *Core) WriteBatch(ctx context.Context, batch mapping.Batch) (BatchResult, error) {
	proc, ok := c.dialect.ProcedureForGroup(batch.Group)
	if !ok {
		c.releaseOnFailure()
		return BatchResult{}, failure.NewQuery(batch.Group, fmt.Errorf("%w for storage group", ErrUnknownProcedure))
	}

	var result BatchResult
	writeAll := func(core *Core) error {
		for _, params := range batch.Rows {
			res, err := core.Write(ctx, proc.Name, params)
			if err != nil {
				return err
			}
			if res.Identifier != "" {
				result.Identifiers = append(result.Identifiers, res.Identifier)
			}
			result.RowsAffected += res.RowsAffected
		}
		return nil
	}

	if c.tx != nil {
		return result, writeAll(c)
	}
	if err := c.RunInTransaction(ctx, writeAll); err != nil {
		return BatchResult{}, err
	}
	return result, nil
}

// BeginTransaction opens the connection if needed and starts a transaction
func (c *Core) BeginTransaction(ctx context.Context) error {
	if c.tx != nil {
		return failure.NewQuery("begin", ErrTransactionActive)
	}
	if err := c.open(ctx, "begin"); err != nil {
		return err
	}
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		c.releaseOnFailure()
		return failure.NewQuery("begin", err)
	}
	c.tx = tx
	return nil
}

// Commit commits the active transaction and releases the connection
func (c *Core) Commit() error {
	if c.tx == nil {
		return failure.NewQuery("commit", ErrNoTransaction)
	}
	err := c.tx.Commit()
	c.tx = nil
	if closeErr := c.Close(); closeErr != nil {
		c.logger.Warn("Close after commit failed", "error", closeErr)
	}
	if err != nil {
		return failure.NewQuery("commit", err)
	}
	return nil
}

// Rollback rolls back the active transaction, if any, and releases the connection
func (c *Core) Rollback() error {
	var err error
	if c.tx != nil {
		err = c.tx.Rollback()
		c.tx = nil
	}
	if closeErr := c.Close(); closeErr != nil {
		c.logger.Warn("Close after rollback failed", "error", closeErr)
	}
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return failure.NewQuery("rollback", err)
	}
	return nil
}

// RunInTransaction runs fn inside a transaction, committing on success and
// rolling back on any error or panic.
func (c *Core) RunInTransaction(ctx context.Context, fn func(*Core) error) (err error) {
	if err := c.BeginTransaction(ctx); err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = c.Rollback()
			panic(p)
		}
	}()

	if err := fn(c); err != nil {
		if rbErr := c.Rollback(); rbErr != nil {
			c.logger.Error("Rollback failed", "error", rbErr)
		}
		return err
	}
	return c.Commit()
}

// Cursor is a row cursor bound to a Core's connection
type Cursor struct {
	*sql.Rows
	release func() error
	once    sync.Once
}

// Close closes the rows and releases the owning connection
func (c *Cursor) Close() error {
	err := c.Rows.Close()
	c.once.Do(func() {
		if relErr := c.release(); relErr != nil && err == nil {
			err = relErr
		}
	})
	return err
}
