package apperr

import (
	"errors"
	"fmt"
)

// ErrCollaboratorUnavailable marks failures of a backing service (workbook,
// database, session cache). It is never used for bad caller input.
var ErrCollaboratorUnavailable = errors.New("collaborator unavailable")

// Unavailable wraps err so errors.Is matches both err and
// ErrCollaboratorUnavailable.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrCollaboratorUnavailable) {
		return err
	}
	return &unavailableError{op: op, err: err}
}

type unavailableError struct {
	op  string
	err error
}

func (e *unavailableError) Error() string {
	return fmt.Sprintf("%s: %v", e.op, e.err)
}

func (e *unavailableError) Unwrap() []error {
	return []error{ErrCollaboratorUnavailable, e.err}
}
