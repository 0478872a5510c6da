package storeclient

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotFound           = errors.New("record not found")
)

// PersistenceError is any network or backend failure of a store call.
type PersistenceError struct {
	Op     string // e.g. "update document"
	Status int    // HTTP status, 0 when no response arrived
	Err    error
}

func (e *PersistenceError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// AsPersistenceError returns err unchanged if it already is (or wraps) a
// PersistenceError, and wraps it as one otherwise.
func AsPersistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// IsPersistenceError reports whether err is a store failure.
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
