package pool

import (
	"context"
	"errors"
	"time"

	"github.com/koustreak/ConnRi/internal/errs"
)

// Result is the outcome of one Query call: the materialized row set plus
// basic execution metadata.
type Result struct {
	Rows     []map[string]any
	RowCount int
	Duration time.Duration
}

// Query executes a single statement on one pooled connection. The handle is
// acquired for the duration of the call and released on every exit path.
// Valid only while the pool is Ready or Degraded.
func (m *Manager) Query(ctx context.Context, sql string, args ...any) (*Result, error) {
	l, err := m.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer l.Release()

	execCtx, cancel := m.statementContext(ctx)
	defer cancel()

	start := time.Now()
	rows, err := l.conn.Query(execCtx, sql, args...)
	if err != nil {
		m.noteResult(err)
		return nil, queryErr(err)
	}

	set, err := scanRows(rows)
	if err != nil {
		m.noteResult(err)
		return nil, queryErr(err)
	}
	dur := time.Since(start)
	m.noteResult(nil)

	m.log.DebugEvent().
		Str("query", truncateQuery(sql)).
		Int("rows", len(set)).
		Dur("duration", dur).
		Msg("query executed")

	if m.cfg.SlowQueryThreshold > 0 && dur > m.cfg.SlowQueryThreshold {
		m.log.WarnEvent().
			Str("query", truncateQuery(sql)).
			Dur("duration", dur).
			Dur("threshold", m.cfg.SlowQueryThreshold).
			Msg("slow query")
	}

	return &Result{Rows: set, RowCount: len(set), Duration: dur}, nil
}

// Exec executes a single statement that returns no rows and reports the
// number of rows affected.
func (m *Manager) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	l, err := m.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer l.Release()

	execCtx, cancel := m.statementContext(ctx)
	defer cancel()

	affected, err := l.conn.Exec(execCtx, sql, args...)
	m.noteResult(err)
	if err != nil {
		return 0, queryErr(err)
	}
	return affected, nil
}

// Transaction runs fn inside a transaction on a single pooled connection:
// begin, fn, commit on normal return, rollback on any failure. The handle is
// exclusively held for the whole unit of work and released in all cases.
// Atomicity is scoped to that one connection.
func (m *Manager) Transaction(ctx context.Context, fn func(Tx) error) error {
	l, err := m.acquire(ctx)
	if err != nil {
		return err
	}
	defer l.Release()

	execCtx, cancel := m.statementContext(ctx)
	defer cancel()

	tx, err := l.conn.Begin(execCtx)
	if err != nil {
		m.noteResult(err)
		return errs.Wrap(errs.ErrKindTransaction, "failed to begin transaction", err)
	}

	finished := false
	defer func() {
		// Covers a panicking fn: the transaction is rolled back before the
		// panic continues up, and the deferred Release above still runs.
		if !finished {
			_ = tx.Rollback(execCtx)
		}
	}()

	if err := fn(tx); err != nil {
		rbErr := tx.Rollback(execCtx)
		finished = true
		m.noteResult(err)
		if rbErr != nil {
			return errs.Wrap(errs.ErrKindTransaction,
				"unit of work failed and rollback failed", errors.Join(err, rbErr))
		}
		return errs.Wrap(errs.ErrKindTransaction, "unit of work failed", err)
	}

	if err := tx.Commit(execCtx); err != nil {
		rbErr := tx.Rollback(execCtx)
		finished = true
		m.noteResult(err)
		if rbErr != nil {
			return errs.Wrap(errs.ErrKindTransaction,
				"commit failed and rollback failed", errors.Join(err, rbErr))
		}
		return errs.Wrap(errs.ErrKindTransaction, "commit failed", err)
	}
	finished = true
	m.noteResult(nil)

	return nil
}

// statementContext applies the default query deadline when the caller's
// context does not carry one of its own.
func (m *Manager) statementContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, has := ctx.Deadline(); !has && m.cfg.QueryTimeout > 0 {
		return context.WithTimeout(ctx, m.cfg.QueryTimeout)
	}
	return ctx, func() {}
}

// queryErr ensures a statement failure surfaces as a unified error and
// never leaks a raw driver error. Errors already carrying a kind (the
// drivers wrap everything they return) pass through untouched.
func queryErr(err error) error {
	var e *errs.Error
	if errors.As(err, &e) {
		return err
	}
	return errs.Wrap(errs.ErrKindQuery, "statement failed", err)
}

// scanRows reads all rows from the result set and returns them as a slice
// of maps keyed by column name. The returned slice is always non-nil.
// scanRows always closes the Rows — callers do not need to call Close().
func scanRows(rows Rows) ([]map[string]any, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindQuery, "failed to read column names", err)
	}

	result := make([]map[string]any, 0)

	for rows.Next() {
		// Allocate scan targets as *any so the driver can write any type.
		dest := make([]any, len(columns))
		destPtrs := make([]any, len(columns))
		for i := range dest {
			destPtrs[i] = &dest[i]
		}

		if err := rows.Scan(destPtrs...); err != nil {
			return nil, errs.Wrap(errs.ErrKindQuery, "failed to scan row", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = dest[i]
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrKindQuery, "error during row iteration", err)
	}

	return result, nil
}

// truncateQuery shortens long statements for log lines.
func truncateQuery(sql string) string {
	const maxLen = 120
	if len(sql) <= maxLen {
		return sql
	}
	return sql[:maxLen] + "..."
}
