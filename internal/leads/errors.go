package leads

import (
	"errors"
	"fmt"
)

// ErrLeadNotFound is returned when an operation addresses a lead id that does not exist.
var ErrLeadNotFound = errors.New("lead not found")

// ValidationError reports a missing required field or a value outside a closed set.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "leads: " + e.Reason
	}
	return fmt.Sprintf("leads: invalid %s: %s", e.Field, e.Reason)
}

// StoreError wraps a persistence failure. The core never retries it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("leads: %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrLeadNotFound, id)
}

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStore reports whether err carries a StoreError.
func IsStore(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
