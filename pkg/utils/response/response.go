// Package response defines the JSON envelope every endpoint answers with:
// {code, message, data, request_id}. Code 0 is success; any other value is
// an errors.Errno code.
package response

import (
	"net/http"
	"sync"

	"github.com/kart-io/retrieval-x/pkg/utils/errors"
)

type Response struct {
	Code      int         `json:"code"`
	HTTPCode  int         `json:"http_code,omitempty"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

var pool = sync.Pool{New: func() interface{} { return new(Response) }}

// Acquire takes a zeroed envelope from the pool.
func Acquire() *Response { return pool.Get().(*Response) }

// Release zeroes r and pools it. r must not be touched afterwards.
func Release(r *Response) {
	if r != nil {
		*r = Response{}
		pool.Put(r)
	}
}

func build(status int, message string, data interface{}) *Response {
	r := Acquire()
	r.HTTPCode, r.Message, r.Data = status, message, data
	return r
}

// Success wraps data in a 200 envelope.
func Success(data interface{}) *Response { return build(http.StatusOK, "success", data) }

// Accepted answers 202 for indexing that continues in the background.
func Accepted(message string, data interface{}) *Response {
	return build(http.StatusAccepted, message, data)
}

// Err converts an Errno into an envelope with its English message. A nil
// Errno is a success.
func Err(e *errors.Errno) *Response { return ErrIn(e, "") }

// ErrIn is Err with the message chosen for lang, e.g. an Accept-Language
// value.
func ErrIn(e *errors.Errno, lang string) *Response {
	if e == nil {
		return Success(nil)
	}
	r := build(e.HTTPStatus(), e.Message(lang), nil)
	r.Code = e.Code
	return r
}

func (r *Response) WithRequestID(requestID string) *Response {
	r.RequestID = requestID
	return r
}

func (r *Response) IsSuccess() bool { return r.Code == 0 }

// HTTPStatus prefers the explicit status, then the registered Errno, then
// the status implied by the code's category.
func (r *Response) HTTPStatus() int {
	switch {
	case r.HTTPCode != 0:
		return r.HTTPCode
	case r.Code == 0:
		return http.StatusOK
	}
	if e, ok := errors.Lookup(r.Code); ok {
		return e.HTTPStatus()
	}
	return errors.CategoryHTTPStatus(errors.GetCategory(r.Code))
}
