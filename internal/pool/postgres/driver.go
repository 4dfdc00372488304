// Package postgres implements the pool.Driver contract for PostgreSQL
// on top of pgxpool. The pgxpool primitive supplies admission control and
// FIFO waiter queueing; this package only translates handles and errors.
package postgres

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koustreak/ConnRi/internal/pool"
)

// Driver is a PostgreSQL pool.Driver backed by pgxpool.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	cfg *pool.Config

	mu sync.RWMutex
	db *pgxpool.Pool
}

// New prepares a Postgres driver for the given config (does not connect yet).
func New(cfg *pool.Config) *Driver {
	return &Driver{cfg: cfg.Normalized()}
}

// Connect creates the pgx connection pool. It does not probe connectivity —
// pgxpool connects lazily, and the pool manager probes through Acquire.
func (d *Driver) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db != nil {
		return nil
	}
	db, err := buildPool(ctx, d.cfg)
	if err != nil {
		return err
	}
	d.db = db
	return nil
}

// Acquire leases one physical connection, waiting FIFO until one is free
// or ctx expires.
func (d *Driver) Acquire(ctx context.Context) (pool.Conn, error) {
	d.mu.RLock()
	db := d.db
	d.mu.RUnlock()

	if db == nil {
		return nil, errNotConnected()
	}
	conn, err := db.Acquire(ctx)
	if err != nil {
		return nil, mapError(err, "failed to acquire connection")
	}
	return &pgConn{conn: conn}, nil
}

// Stat returns live occupancy counters without blocking.
func (d *Driver) Stat() pool.Stat {
	d.mu.RLock()
	db := d.db
	d.mu.RUnlock()

	if db == nil {
		return pool.Stat{}
	}
	s := db.Stat()
	return pool.Stat{
		Total: s.TotalConns(),
		Idle:  s.IdleConns(),
	}
}

// Close shuts the pool down. pgxpool.Close blocks until all acquired
// connections are released.
func (d *Driver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db != nil {
		d.db.Close()
		d.db = nil
	}
}

// --- pgConn wraps *pgxpool.Conn ---

type pgConn struct {
	conn *pgxpool.Conn
}

func (c *pgConn) Ping(ctx context.Context) error {
	if err := c.conn.Ping(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

func (c *pgConn) Query(ctx context.Context, sql string, args ...any) (pool.Rows, error) {
	rows, err := c.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return &pgRows{rows: rows}, nil
}

func (c *pgConn) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := c.conn.Exec(ctx, sql, args...)
	if err != nil {
		return 0, mapError(err, "exec failed")
	}
	return tag.RowsAffected(), nil
}

func (c *pgConn) Begin(ctx context.Context) (pool.Tx, error) {
	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return nil, mapError(err, "begin failed")
	}
	return &pgTx{tx: tx}, nil
}

func (c *pgConn) Release() {
	c.conn.Release()
}

// --- pgTx wraps pgx.Tx ---

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Query(ctx context.Context, sql string, args ...any) (pool.Rows, error) {
	rows, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return &pgRows{rows: rows}, nil
}

func (t *pgTx) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return 0, mapError(err, "exec failed")
	}
	return tag.RowsAffected(), nil
}

func (t *pgTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return mapError(err, "commit failed")
	}
	return nil
}

// Rollback aborts the transaction. A transaction already closed by a commit
// attempt rolls back server-side, so pgx.ErrTxClosed is treated as success.
func (t *pgTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return mapError(err, "rollback failed")
	}
	return nil
}

// --- pgRows wraps pgx.Rows ---

type pgRows struct {
	rows pgx.Rows
}

func (r *pgRows) Next() bool             { return r.rows.Next() }
func (r *pgRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *pgRows) Close()                 { r.rows.Close() }
func (r *pgRows) Err() error             { return r.rows.Err() }

func (r *pgRows) Columns() ([]string, error) {
	fields := r.rows.FieldDescriptions()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names, nil
}
