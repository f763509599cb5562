package attacks

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/lib/pq"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrStoreUnavailable marks transient I/O failures talking to the store.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrSequenceConflict means an eventId was already taken.
	ErrSequenceConflict = errors.New("event id already allocated")
)

// ValidationError reports a malformed request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

const eventIDConstraint = "attack_events_event_id_key"

// classify maps driver errors onto the package taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "23505" && pqErr.Constraint == eventIDConstraint:
			return fmt.Errorf("%s: %w", op, ErrSequenceConflict)
		case pqErr.Code == "23503":
			return fmt.Errorf("%s: %w: %s", op, ErrNotFound, pqErr.Detail)
		case pqErr.Code.Class() == "08", pqErr.Code.Class() == "57":
			return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) ||
		strings.Contains(err.Error(), "connection refused") {
		return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
