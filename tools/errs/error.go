package errs

import (
	"errors"
	"fmt"
)

// Error is the minimal contract shared by all gateway errors.
type Error interface {
	Is(err error) bool
	Wrap() error
	WrapMsg(msg string, kv ...any) error
	error
}

func New(msg string, kv ...any) Error {
	return &errorString{s: toString(msg, kv)}
}

type errorString struct {
	s string
}

func (e *errorString) Error() string { return e.s }

func (e *errorString) Is(err error) bool {
	if err == nil {
		return false
	}
	var t *errorString
	return errors.As(err, &t) && e.s == t.s
}

func (e *errorString) Wrap() error { return e }

func (e *errorString) WrapMsg(msg string, kv ...any) error {
	return fmt.Errorf("%s: %w", toString(msg, kv), e)
}

func toString(msg string, kv []any) string {
	if len(kv) == 0 {
		return msg
	}
	s := msg
	for i := 0; i < len(kv); i += 2 {
		if i+1 < len(kv) {
			s += fmt.Sprintf(" %v=%v", kv[i], kv[i+1])
		} else {
			s += fmt.Sprintf(" %v", kv[i])
		}
	}
	return s
}
