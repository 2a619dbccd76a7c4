package errors

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
)

// catalog holds every Errno created through NewError together with the
// names of the services that own them. Codes are unique process-wide.
type catalog struct {
	mu       sync.RWMutex
	codes    map[int]*Errno
	services map[int]string
}

var defaultCatalog = &catalog{
	codes:    make(map[int]*Errno),
	services: make(map[int]string),
}

func (c *catalog) add(e *Errno) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.codes[e.Code]; ok {
		panic(fmt.Sprintf("errors: code %d is taken by %q", e.Code, prev.MessageEN))
	}
	c.codes[e.Code] = e
}

// Register adds e to the catalog. It panics when the code is already taken
// or when a client-side category is paired with a 5xx status.
func Register(e *Errno) *Errno {
	if IsClientError(e.Code) && e.HTTPStatus() >= http.StatusInternalServerError {
		panic(fmt.Sprintf("errors: code %d is a client category but maps to HTTP %d", e.Code, e.HTTP))
	}
	defaultCatalog.add(e)
	return e
}

// Lookup finds a registered Errno by code.
func Lookup(code int) (*Errno, bool) {
	defaultCatalog.mu.RLock()
	defer defaultCatalog.mu.RUnlock()
	e, ok := defaultCatalog.codes[code]
	return e, ok
}

// Catalog lists the registered errors of one service ordered by code.
func Catalog(service int) []*Errno {
	defaultCatalog.mu.RLock()
	defer defaultCatalog.mu.RUnlock()

	var out []*Errno
	for code, e := range defaultCatalog.codes {
		if code/100000 == service {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// RegisterService names a service code. Re-registering the same name is a
// no-op, a different name panics.
func RegisterService(code int, name string) {
	defaultCatalog.mu.Lock()
	defer defaultCatalog.mu.Unlock()

	if owner, ok := defaultCatalog.services[code]; ok && owner != name {
		panic(fmt.Sprintf("errors: service %d belongs to %q, not %q", code, owner, name))
	}
	defaultCatalog.services[code] = name
}

// ServiceName returns the name registered for a service code.
func ServiceName(code int) (string, bool) {
	defaultCatalog.mu.RLock()
	defer defaultCatalog.mu.RUnlock()
	name, ok := defaultCatalog.services[code]
	return name, ok
}
