package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/koustreak/ConnRi/internal/errs"
)

// MySQL error numbers relevant to pooling.
// Full list: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	errAccessDenied    = 1045
	errUnknownDatabase = 1049
	errTooManyConns    = 1040
	errAborted         = 1152
	errServerShutdown  = 1053
	errBadField        = 1054
	errSyntax          = 1064
	errNoSuchTable     = 1146
	errLockWaitTimeout = 1205
)

func errNotConnected() *errs.Error {
	return errs.New(errs.ErrKindNotConnected, "mysql pool is not connected")
}

// mapError translates go-sql-driver/mysql errors into a unified *errs.Error.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, gomysql.ErrInvalidConn) {
		return errs.Wrap(errs.ErrKindConnection, msg, err)
	}

	var mysqlErr *gomysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return errs.Wrap(
			classifyCode(mysqlErr.Number),
			fmt.Sprintf("%s: %s", msg, mysqlErr.Message),
			err,
		)
	}

	// No server error number means the server was never reached.
	return errs.Wrap(errs.ErrKindConnection, msg, err)
}

// classifyCode maps MySQL error numbers to error kinds.
func classifyCode(code uint16) errs.ErrKind {
	switch code {
	case errAccessDenied, errUnknownDatabase, errTooManyConns, errAborted, errServerShutdown:
		return errs.ErrKindConnection
	case errLockWaitTimeout:
		return errs.ErrKindTimeout
	case errBadField, errSyntax, errNoSuchTable:
		return errs.ErrKindQuery
	default:
		return errs.ErrKindQuery
	}
}
