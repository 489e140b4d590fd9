// Package errors provides a printf-style error constructor.
//
// Errors built with New keep their arguments around, so a wrapped cause
// can be recovered with the stdlib errors.Is and errors.As.
package errors

import (
	"fmt"
)

type err struct {
	msg  string
	args []interface{}
}

func (err err) Error() string {
	return fmt.Sprintf(err.msg, err.args...)
}

// Unwrap returns the first arg that is itself an error, if any.
func (err err) Unwrap() error {
	for _, arg := range err.args {
		if wrapped, ok := arg.(error); ok {
			return wrapped
		}
	}
	return nil
}

// New builds an error from a format string. The first error among args
// becomes the wrapped cause.
func New(msg string, args ...interface{}) error {
	return err{msg, args}
}
