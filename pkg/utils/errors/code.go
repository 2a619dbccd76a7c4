// Package errors defines the numeric error codes returned by the retrieval
// API. A code has seven digits, AABBCCC: a two digit owner (00 common,
// 10-19 infrastructure, 21 retrieval), a two digit category that fixes the
// HTTP status, and a three digit sequence within the owner and category.
// ErrSourceNotFound is 2104001: retrieval, resource, first entry.
package errors

// Service codes (AA)
const (
	// ServiceCommon is for common/base errors shared by all services.
	ServiceCommon = 0

	// ServiceInfraStorage is for blob storage infrastructure.
	ServiceInfraStorage = 10

	// ServiceInfraCache is for cache infrastructure.
	ServiceInfraCache = 11

	// ServiceRetrieval is for the retrieval service.
	ServiceRetrieval = 21
)

// Category codes (BB)
const (
	CategorySuccess       = 0
	CategoryRequest       = 1
	CategoryAuth          = 2
	CategoryPermission    = 3
	CategoryResource      = 4
	CategoryConflict      = 5
	CategoryRateLimit     = 6
	CategoryInternal      = 7
	CategoryDatabase      = 8
	CategoryCache         = 9
	CategoryNetwork       = 10
	CategoryTimeout       = 11
	CategoryConfig        = 12
	CategoryUnprocessable = 13
)

// MakeCode packs the three parts into AABBCCC.
func MakeCode(service, category, sequence int) int {
	return service*100000 + category*1000 + sequence
}

// ParseCode is the inverse of MakeCode.
func ParseCode(code int) (service, category, sequence int) {
	service = code / 100000
	category = (code % 100000) / 1000
	sequence = code % 1000
	return
}

// GetCategory extracts BB.
func GetCategory(code int) int {
	_, category, _ := ParseCode(code)
	return category
}

// IsClientError reports whether the category belongs to the caller (4xx).
func IsClientError(code int) bool {
	switch GetCategory(code) {
	case CategoryRequest, CategoryAuth, CategoryPermission, CategoryResource,
		CategoryConflict, CategoryRateLimit, CategoryUnprocessable:
		return true
	}
	return false
}

// IsServerError reports whether the category is a server or upstream fault.
func IsServerError(code int) bool {
	c := GetCategory(code)
	return c >= CategoryInternal && c <= CategoryConfig
}
