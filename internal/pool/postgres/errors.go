package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/koustreak/ConnRi/internal/errs"
)

// PostgreSQL SQLSTATE class prefixes and codes relevant to pooling.
// Full list: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgClassConnection   = "08"    // connection exceptions
	pgClassAuth         = "28"    // invalid authorization
	pgErrQueryCanceled  = "57014" // statement timeout / cancel
	pgErrAdminShutdown  = "57P01"
	pgErrCannotConnect  = "57P03"
	pgErrTooManyConns   = "53300"
	pgErrInvalidCatalog = "3D000" // unknown database
)

func errNotConnected() *errs.Error {
	return errs.New(errs.ErrKindNotConnected, "postgres pool is not connected")
}

// mapError translates a pgx error into a unified *errs.Error.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case len(pgErr.Code) >= 2 && (pgErr.Code[:2] == pgClassConnection || pgErr.Code[:2] == pgClassAuth):
			return errs.Wrap(errs.ErrKindConnection, fmt.Sprintf("%s: %s", msg, pgErr.Message), err)
		case pgErr.Code == pgErrAdminShutdown, pgErr.Code == pgErrCannotConnect,
			pgErr.Code == pgErrTooManyConns, pgErr.Code == pgErrInvalidCatalog:
			return errs.Wrap(errs.ErrKindConnection, fmt.Sprintf("%s: %s", msg, pgErr.Message), err)
		case pgErr.Code == pgErrQueryCanceled:
			return errs.Wrap(errs.ErrKindTimeout, fmt.Sprintf("%s: %s", msg, pgErr.Message), err)
		default:
			return errs.Wrap(errs.ErrKindQuery, fmt.Sprintf("%s: %s", msg, pgErr.Message), err)
		}
	}

	// No SQLSTATE means the server was never reached (dial, TLS, DNS).
	return errs.Wrap(errs.ErrKindConnection, msg, err)
}
