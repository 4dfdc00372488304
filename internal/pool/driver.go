package pool

import "context"

// Driver is the contract every database engine must satisfy. It wraps the
// engine's own pooled-connection primitive (pgxpool for Postgres, sql.DB for
// MySQL); ConnRi relies on the primitive's admission control and FIFO waiter
// queue rather than reimplementing them. All layers above this package talk
// only to these interfaces — they never import the postgres or mysql
// packages directly.
type Driver interface {
	// Connect creates the underlying pool. It does not probe connectivity;
	// the manager does that through an acquired handle.
	Connect(ctx context.Context) error

	// Acquire leases one physical connection, waiting until one is free or
	// ctx expires. Waiters are served in arrival order.
	Acquire(ctx context.Context) (Conn, error)

	// Stat returns live pool occupancy counters. Must not block.
	Stat() Stat

	// Close releases all resources held by the pool.
	Close()
}

// Conn is a leased physical connection. It is exclusively owned by the
// calling operation and must be released exactly once.
type Conn interface {
	// Ping verifies the connection with a lightweight round trip.
	Ping(ctx context.Context) error

	// Query executes a statement that returns rows.
	Query(ctx context.Context, sql string, args ...any) (Rows, error)

	// Exec executes a statement and returns the number of rows affected.
	Exec(ctx context.Context, sql string, args ...any) (int64, error)

	// Begin opens a transaction bound to this connection. At most one
	// transaction may be active per connection at a time.
	Begin(ctx context.Context) (Tx, error)

	// Release returns the connection to the pool.
	Release()
}

// Tx is a transaction bound to one connection.
type Tx interface {
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
	Commit(ctx context.Context) error

	// Rollback aborts the transaction. Rolling back a transaction that was
	// already closed by a commit attempt is a no-op, not an error.
	Rollback(ctx context.Context) error
}

// Rows is an abstraction over a database result set.
// Callers must always call Close() when done, even on error.
type Rows interface {
	// Next advances to the next row. Returns false when no more rows
	// exist or on error.
	Next() bool

	// Scan copies the current row's columns into the provided destinations.
	Scan(dest ...any) error

	// Columns returns the column names of the result set.
	Columns() ([]string, error)

	// Close releases resources held by the result set.
	Close()

	// Err returns any error encountered during iteration.
	Err() error
}

// Stat is a point-in-time view of pool occupancy.
type Stat struct {
	Total int32 // physical connections currently open
	Idle  int32 // open connections not leased to anyone
}
