package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/noah-isme/lms-identity-api/pkg/errors"
)

const retryBackoff = 100 * time.Millisecond

// isUnavailable classifies transport-level failures that are worth one
// retry: dropped connections, network errors and PostgreSQL connection
// (class 08) or shutdown (class 57) conditions. Constraint violations and
// missing rows are never retried.
func isUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		class := pqErr.Code.Class()
		return class == "08" || class == "57"
	}
	return false
}

// withRetry runs fn, retrying exactly once after a short backoff when the
// store looks unavailable. A second failure surfaces as the retryable
// STORE_UNAVAILABLE error so the gateway answers 503, not 500.
func withRetry(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil || !isUnavailable(err) {
		return err
	}

	select {
	case <-ctx.Done():
		return appErrors.Wrap(ctx.Err(), appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "store call cancelled")
	case <-time.After(retryBackoff):
	}

	if err = fn(); err != nil && isUnavailable(err) {
		return &appErrors.Error{
			Code:      appErrors.ErrStoreUnavailable.Code,
			Status:    appErrors.ErrStoreUnavailable.Status,
			Message:   appErrors.ErrStoreUnavailable.Message,
			Retryable: true,
			Err:       err,
		}
	}
	return err
}
