package errors

import (
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
)

// categoryStatus is the transport mapping used by the category builders.
var categoryStatus = map[int]struct {
	http int
	grpc codes.Code
}{
	CategoryRequest:       {http.StatusBadRequest, codes.InvalidArgument},
	CategoryAuth:          {http.StatusUnauthorized, codes.Unauthenticated},
	CategoryPermission:    {http.StatusForbidden, codes.PermissionDenied},
	CategoryResource:      {http.StatusNotFound, codes.NotFound},
	CategoryConflict:      {http.StatusConflict, codes.AlreadyExists},
	CategoryRateLimit:     {http.StatusTooManyRequests, codes.ResourceExhausted},
	CategoryInternal:      {http.StatusInternalServerError, codes.Internal},
	CategoryDatabase:      {http.StatusInternalServerError, codes.Internal},
	CategoryCache:         {http.StatusInternalServerError, codes.Internal},
	CategoryNetwork:       {http.StatusBadGateway, codes.Unavailable},
	CategoryTimeout:       {http.StatusGatewayTimeout, codes.DeadlineExceeded},
	CategoryConfig:        {http.StatusInternalServerError, codes.Internal},
	CategoryUnprocessable: {http.StatusUnprocessableEntity, codes.FailedPrecondition},
}

// NewError builds and registers an Errno. Out-of-range code parts or an
// empty English message panic, since errors are declared at package init.
func NewError(service, category, sequence int, httpStatus int, grpcCode codes.Code, messageEN, messageZH string) *Errno {
	switch {
	case service < 0 || service > 99:
		panic(fmt.Sprintf("errors: service %d out of range 0-99", service))
	case category < 0 || category > 99:
		panic(fmt.Sprintf("errors: category %d out of range 0-99", category))
	case sequence < 0 || sequence > 999:
		panic(fmt.Sprintf("errors: sequence %d out of range 0-999", sequence))
	case messageEN == "":
		panic("errors: english message is required")
	}
	return Register(New(MakeCode(service, category, sequence), httpStatus, grpcCode, messageEN, messageZH))
}

func newInCategory(service, category, sequence int, en, zh string) *Errno {
	st := categoryStatus[category]
	return NewError(service, category, sequence, st.http, st.grpc, en, zh)
}

// NewRequestErr registers a 400 validation error.
func NewRequestErr(service, sequence int, en, zh string) *Errno {
	return newInCategory(service, CategoryRequest, sequence, en, zh)
}

// NewAuthErr registers a 401 authentication error.
func NewAuthErr(service, sequence int, en, zh string) *Errno {
	return newInCategory(service, CategoryAuth, sequence, en, zh)
}

// NewNotFoundErr registers a 404 error.
func NewNotFoundErr(service, sequence int, en, zh string) *Errno {
	return newInCategory(service, CategoryResource, sequence, en, zh)
}

// NewRateLimitErr registers a 429 error.
func NewRateLimitErr(service, sequence int, en, zh string) *Errno {
	return newInCategory(service, CategoryRateLimit, sequence, en, zh)
}

// NewInternalErr registers a 500 error.
func NewInternalErr(service, sequence int, en, zh string) *Errno {
	return newInCategory(service, CategoryInternal, sequence, en, zh)
}

// NewDatabaseErr registers a 500 storage error.
func NewDatabaseErr(service, sequence int, en, zh string) *Errno {
	return newInCategory(service, CategoryDatabase, sequence, en, zh)
}

// NewCacheErr registers a 500 cache error.
func NewCacheErr(service, sequence int, en, zh string) *Errno {
	return newInCategory(service, CategoryCache, sequence, en, zh)
}

// NewNetworkErr registers a 502 error for a failing upstream such as an
// embedding or chat backend.
func NewNetworkErr(service, sequence int, en, zh string) *Errno {
	return newInCategory(service, CategoryNetwork, sequence, en, zh)
}

// NewUnprocessableErr registers a 422 error for well-formed input whose
// content cannot be processed, e.g. a file with no extractable text.
func NewUnprocessableErr(service, sequence int, en, zh string) *Errno {
	return newInCategory(service, CategoryUnprocessable, sequence, en, zh)
}

// CategoryHTTPStatus is the HTTP status a category maps to, 500 for
// unknown categories.
func CategoryHTTPStatus(category int) int {
	if st, ok := categoryStatus[category]; ok {
		return st.http
	}
	return http.StatusInternalServerError
}
