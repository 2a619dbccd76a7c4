package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/grpc/codes"
)

// Errno is an API error: a stable numeric code, its transport statuses and
// a bilingual message. Package-level values are templates; the With*
// methods return copies so a template is never mutated by a request.
//
//	return errors.ErrSourceNotFound.WithMessagef("document %s not found", id)
//	return errors.ErrEmbeddingBackend.WithCause(err)
type Errno struct {
	Code      int        `json:"code"`
	HTTP      int        `json:"-"`
	GRPCCode  codes.Code `json:"-"`
	MessageEN string     `json:"message"`
	MessageZH string     `json:"message_zh,omitempty"`

	cause error
}

// New returns an unregistered Errno. Use NewError or a category builder to
// declare package-level errors.
func New(code int, httpStatus int, grpcCode codes.Code, messageEN, messageZH string) *Errno {
	return &Errno{Code: code, HTTP: httpStatus, GRPCCode: grpcCode, MessageEN: messageEN, MessageZH: messageZH}
}

func (e *Errno) Error() string {
	msg := fmt.Sprintf("errno %d: %s", e.Code, e.MessageEN)
	if e.cause == nil {
		return msg
	}
	return msg + ": " + e.cause.Error()
}

func (e *Errno) Unwrap() error { return e.cause }

// Is matches any Errno with the same code, so a customised copy still
// satisfies errors.Is against its template.
func (e *Errno) Is(target error) bool {
	var t *Errno
	return errors.As(target, &t) && t.Code == e.Code
}

// WithCause returns a copy carrying cause.
func (e *Errno) WithCause(cause error) *Errno {
	c := *e
	c.cause = cause
	return &c
}

// WithMessage returns a copy with a request-specific message. The Chinese
// template no longer describes it and is dropped.
func (e *Errno) WithMessage(msg string) *Errno {
	c := *e
	c.MessageEN = msg
	c.MessageZH = ""
	return &c
}

func (e *Errno) WithMessagef(format string, args ...interface{}) *Errno {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// Message picks the Chinese text for any zh locale (zh, zh-CN, zh_TW, ...)
// when one exists.
func (e *Errno) Message(lang string) string {
	if e.MessageZH != "" && strings.HasPrefix(strings.ToLower(lang), "zh") {
		return e.MessageZH
	}
	return e.MessageEN
}

// HTTPStatus defaults to 500 when unset.
func (e *Errno) HTTPStatus() int {
	if e.HTTP == 0 {
		return http.StatusInternalServerError
	}
	return e.HTTP
}

// GRPCStatus defaults to Internal when unset.
func (e *Errno) GRPCStatus() codes.Code {
	if e.GRPCCode == codes.OK {
		return codes.Internal
	}
	return e.GRPCCode
}

// Format prints statuses and the cause chain for %+v.
func (e *Errno) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		_, _ = fmt.Fprintf(s, "errno %d [HTTP %d, gRPC %s]: %s", e.Code, e.HTTPStatus(), e.GRPCStatus(), e.MessageEN)
		if e.MessageZH != "" {
			_, _ = fmt.Fprintf(s, " (%s)", e.MessageZH)
		}
		if e.cause != nil {
			_, _ = fmt.Fprintf(s, "\ncaused by: %+v", e.cause)
		}
		return
	}
	if verb == 'q' {
		_, _ = fmt.Fprintf(s, "%q", e.Error())
		return
	}
	_, _ = fmt.Fprint(s, e.Error())
}
