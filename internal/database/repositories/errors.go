package repositories

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	pkgerrors "github.com/pkg/errors"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// ErrLinkFailure marks a query that failed because the database could not be reached.
var ErrLinkFailure = errors.New("communications link failure")

// wrap annotates err with message and a stack trace. Connection-level failures are
// additionally tagged with ErrLinkFailure. A nil err stays nil.
func wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if isConnectionError(err) {
		err = fmt.Errorf("%w: %w", ErrLinkFailure, err)
	}
	return pkgerrors.Wrap(err, message)
}

func isConnectionError(err error) bool {
	var opErr *net.OpError
	return errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.As(err, &opErr)
}
