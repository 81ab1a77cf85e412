package api

import (
	"fmt"

	"refinery/internal/session"
)

// Error describes a failed backend call. Kind is session.ErrConnectivity or
// session.ErrService; errors.Is matches both Kind and the underlying cause.
type Error struct {
	Kind    error
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: %v (status %d): %s", e.Op, e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func connectivity(op string, status int, msg string, cause error) *Error {
	return &Error{Kind: session.ErrConnectivity, Op: op, Status: status, Message: msg, Err: cause}
}

func service(op string, status int, msg string) *Error {
	return &Error{Kind: session.ErrService, Op: op, Status: status, Message: msg}
}
