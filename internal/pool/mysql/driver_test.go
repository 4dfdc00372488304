package mysql

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	gomysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/ConnRi/internal/errs"
	"github.com/koustreak/ConnRi/internal/pool"
)

// newMockDriver returns a Driver whose sql.DB is backed by sqlmock, letting
// tests script server behavior without a real MySQL instance.
func newMockDriver(t *testing.T) (*Driver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &Driver{cfg: pool.DefaultConfig(), db: db}, mock
}

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  *pool.Config
		want string
	}{
		{
			name: "default port",
			cfg:  &pool.Config{Host: "localhost", Database: "appdb", User: "app", Password: "secret"},
			want: "app:secret@tcp(localhost:3306)/appdb?parseTime=true",
		},
		{
			name: "explicit port",
			cfg:  &pool.Config{Host: "db.internal", Port: 3307, Database: "appdb", User: "app", Password: "pw"},
			want: "app:pw@tcp(db.internal:3307)/appdb?parseTime=true",
		},
		{
			name: "tls enabled",
			cfg:  &pool.Config{Host: "localhost", Database: "appdb", User: "app", Password: "pw", SSL: true},
			want: "app:pw@tcp(localhost:3306)/appdb?parseTime=true&tls=true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildDSN(tt.cfg))
		})
	}
}

func TestAcquireBeforeConnect(t *testing.T) {
	d := New(pool.DefaultConfig())

	_, err := d.Acquire(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsNotConnected(err))
}

func TestAcquireAndPing(t *testing.T) {
	d, mock := newMockDriver(t)
	mock.ExpectPing()

	conn, err := d.Acquire(context.Background())
	require.NoError(t, err)
	defer conn.Release()

	assert.NoError(t, conn.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnQuery(t *testing.T) {
	d, mock := newMockDriver(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), "ada").
			AddRow(int64(2), "grace"))

	conn, err := d.Acquire(context.Background())
	require.NoError(t, err)
	defer conn.Release()

	rows, err := conn.Query(context.Background(), "SELECT id, name FROM users")
	require.NoError(t, err)
	defer rows.Close()

	cols, err := rows.Columns()
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, cols)

	var ids []int64
	var names []string
	for rows.Next() {
		var id int64
		var name string
		require.NoError(t, rows.Scan(&id, &name))
		ids = append(ids, id)
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []int64{1, 2}, ids)
	assert.Equal(t, []string{"ada", "grace"}, names)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnExec(t *testing.T) {
	d, mock := newMockDriver(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET active = ?")).
		WithArgs(true).
		WillReturnResult(sqlmock.NewResult(0, 3))

	conn, err := d.Acquire(context.Background())
	require.NoError(t, err)
	defer conn.Release()

	affected, err := conn.Exec(context.Background(), "UPDATE users SET active = ?", true)
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxCommit(t *testing.T) {
	d, mock := newMockDriver(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	conn, err := d.Acquire(context.Background())
	require.NoError(t, err)
	defer conn.Release()

	tx, err := conn.Begin(context.Background())
	require.NoError(t, err)

	_, err = tx.Exec(context.Background(), "INSERT INTO audit (action) VALUES (?)", "login")
	require.NoError(t, err)
	require.NoError(t, tx.Commit(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxRollback(t *testing.T) {
	d, mock := newMockDriver(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	conn, err := d.Acquire(context.Background())
	require.NoError(t, err)
	defer conn.Release()

	tx, err := conn.Begin(context.Background())
	require.NoError(t, err)
	assert.NoError(t, tx.Rollback(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxRollbackAfterCommitIsNoop(t *testing.T) {
	d, mock := newMockDriver(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	conn, err := d.Acquire(context.Background())
	require.NoError(t, err)
	defer conn.Release()

	tx, err := conn.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Commit(context.Background()))

	// The finished transaction needs no rollback.
	assert.NoError(t, tx.Rollback(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatBeforeConnect(t *testing.T) {
	d := New(pool.DefaultConfig())
	assert.Equal(t, pool.Stat{}, d.Stat())
}

func TestCloseIsIdempotent(t *testing.T) {
	d, mock := newMockDriver(t)
	mock.ExpectClose()

	d.Close()
	d.Close()
	assert.Nil(t, d.db)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		pred func(error) bool
	}{
		{"deadline exceeded", context.DeadlineExceeded, errs.IsTimeout},
		{"cancellation", context.Canceled, errs.IsTimeout},
		{"connection done", sql.ErrConnDone, errs.IsConnection},
		{"invalid conn", gomysql.ErrInvalidConn, errs.IsConnection},
		{"access denied", &gomysql.MySQLError{Number: errAccessDenied, Message: "denied"}, errs.IsConnection},
		{"unknown database", &gomysql.MySQLError{Number: errUnknownDatabase, Message: "no db"}, errs.IsConnection},
		{"too many connections", &gomysql.MySQLError{Number: errTooManyConns, Message: "full"}, errs.IsConnection},
		{"server shutdown", &gomysql.MySQLError{Number: errServerShutdown, Message: "bye"}, errs.IsConnection},
		{"lock wait timeout", &gomysql.MySQLError{Number: errLockWaitTimeout, Message: "waited"}, errs.IsTimeout},
		{"syntax error", &gomysql.MySQLError{Number: errSyntax, Message: "near SELEC"}, errs.IsQuery},
		{"unknown column", &gomysql.MySQLError{Number: errBadField, Message: "no col"}, errs.IsQuery},
		{"missing table", &gomysql.MySQLError{Number: errNoSuchTable, Message: "no tbl"}, errs.IsQuery},
		{"unlisted server code", &gomysql.MySQLError{Number: 1366, Message: "bad value"}, errs.IsQuery},
		{"unreachable server", errors.New("dial tcp: connection refused"), errs.IsConnection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := mapError(tt.err, "op failed")
			require.Error(t, mapped)
			assert.True(t, tt.pred(mapped), "got kind %s", mapped.Kind)
			assert.True(t, errors.Is(mapped, tt.err), "cause must be preserved")
		})
	}

	assert.Nil(t, mapError(nil, "no error"))
}
