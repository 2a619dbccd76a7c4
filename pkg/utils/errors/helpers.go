package errors

import "errors"

// FromError returns the Errno carried by err, wrapping anything else as
// ErrInternal. A nil error stays nil.
func FromError(err error) *Errno {
	if err == nil {
		return nil
	}
	if e, ok := asErrno(err); ok {
		return e
	}
	return ErrInternal.WithCause(err)
}

// IsCode reports whether err carries code.
func IsCode(err error, code int) bool {
	e, ok := asErrno(err)
	return ok && e.Code == code
}

// GetCode returns the Errno code of err, or -1.
func GetCode(err error) int {
	if e, ok := asErrno(err); ok {
		return e.Code
	}
	return -1
}

func asErrno(err error) (*Errno, bool) {
	var e *Errno
	ok := errors.As(err, &e)
	return e, ok
}
