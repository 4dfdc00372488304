// Package mysql implements the pool.Driver contract for MySQL on top of
// database/sql and go-sql-driver/mysql. A leased handle is a dedicated
// *sql.Conn; database/sql supplies the bounded pool and FIFO waiter queue.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/koustreak/ConnRi/internal/pool"

	_ "github.com/go-sql-driver/mysql" // register "mysql" driver
)

// Driver is a MySQL pool.Driver backed by database/sql.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	cfg *pool.Config

	mu sync.RWMutex
	db *sql.DB
}

// New prepares a MySQL driver for the given config (does not connect yet).
func New(cfg *pool.Config) *Driver {
	return &Driver{cfg: cfg.Normalized()}
}

// Connect opens the sql.DB pool and applies the pool tuning knobs.
// database/sql connects lazily; the pool manager probes through Acquire.
func (d *Driver) Connect(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db != nil {
		return nil
	}

	db, err := sql.Open("mysql", buildDSN(d.cfg))
	if err != nil {
		return mapError(err, "invalid DSN")
	}

	db.SetMaxOpenConns(int(d.cfg.PoolSize))
	db.SetMaxIdleConns(int(d.cfg.PoolSize))
	db.SetConnMaxIdleTime(d.cfg.IdleTimeout)

	d.db = db
	return nil
}

// Acquire leases one dedicated connection, waiting FIFO until one is free
// or ctx expires.
func (d *Driver) Acquire(ctx context.Context) (pool.Conn, error) {
	d.mu.RLock()
	db := d.db
	d.mu.RUnlock()

	if db == nil {
		return nil, errNotConnected()
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, mapError(err, "failed to acquire connection")
	}
	return &myConn{conn: conn}, nil
}

// Stat returns live occupancy counters without blocking.
func (d *Driver) Stat() pool.Stat {
	d.mu.RLock()
	db := d.db
	d.mu.RUnlock()

	if db == nil {
		return pool.Stat{}
	}
	s := db.Stats()
	return pool.Stat{
		Total: int32(s.OpenConnections),
		Idle:  int32(s.Idle),
	}
}

// Close shuts the pool down. In-flight dedicated connections are closed as
// their owners release them; the pool manager drains leases before calling
// Close, so by this point none remain.
func (d *Driver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db != nil {
		_ = d.db.Close()
		d.db = nil
	}
}

// --- myConn wraps *sql.Conn ---

type myConn struct {
	conn *sql.Conn
}

func (c *myConn) Ping(ctx context.Context) error {
	if err := c.conn.PingContext(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

func (c *myConn) Query(ctx context.Context, query string, args ...any) (pool.Rows, error) {
	rows, err := c.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return &myRows{rows: rows}, nil
}

func (c *myConn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := c.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapError(err, "exec failed")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, mapError(err, "rows affected unavailable")
	}
	return affected, nil
}

func (c *myConn) Begin(ctx context.Context) (pool.Tx, error) {
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapError(err, "begin failed")
	}
	return &myTx{tx: tx}, nil
}

func (c *myConn) Release() {
	_ = c.conn.Close()
}

// --- myTx wraps *sql.Tx ---

type myTx struct {
	tx *sql.Tx
}

func (t *myTx) Query(ctx context.Context, query string, args ...any) (pool.Rows, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return &myRows{rows: rows}, nil
}

func (t *myTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapError(err, "exec failed")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, mapError(err, "rows affected unavailable")
	}
	return affected, nil
}

func (t *myTx) Commit(_ context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return mapError(err, "commit failed")
	}
	return nil
}

// Rollback aborts the transaction. A transaction already finished by a
// commit attempt needs no rollback, so sql.ErrTxDone is treated as success.
func (t *myTx) Rollback(_ context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return mapError(err, "rollback failed")
	}
	return nil
}

// --- myRows wraps *sql.Rows ---

type myRows struct {
	rows *sql.Rows
}

func (r *myRows) Next() bool                 { return r.rows.Next() }
func (r *myRows) Scan(dest ...any) error     { return r.rows.Scan(dest...) }
func (r *myRows) Columns() ([]string, error) { return r.rows.Columns() }
func (r *myRows) Close()                     { _ = r.rows.Close() }
func (r *myRows) Err() error                 { return r.rows.Err() }
