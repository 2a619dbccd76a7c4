// Package middleware provides the gin middleware chain shared by HTTP servers.
package middleware

import (
	"context"
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	ctxlog "github.com/kart-io/retrieval-x/pkg/infra/logger"
)

const (
	// HeaderXRequestID is the header carrying the request id.
	HeaderXRequestID = "X-Request-ID"

	// RequestIDKey is the gin context key holding the request id.
	RequestIDKey = "request_id"
)

type requestIDCtxKey struct{}

// GetRequestID returns the request ID from the context.
// Returns empty string if not found.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDCtxKey{}).(string); ok {
		return id
	}
	return ""
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDCtxKey{}, requestID)
}

// ulidGenerator produces lexically sortable request ids. The monotonic
// entropy source is not safe for concurrent use.
type ulidGenerator struct {
	mu      sync.Mutex
	entropy io.Reader
}

func newULIDGenerator() *ulidGenerator {
	return &ulidGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (g *ulidGenerator) generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy).String()
}

// RequestID returns a middleware that propagates the caller's X-Request-ID
// or assigns a new ULID. The id is written to:
//   - Response header (X-Request-ID)
//   - gin context (RequestIDKey)
//   - Request context (GetRequestID)
func RequestID() gin.HandlerFunc {
	return RequestIDWithGenerator(newULIDGenerator().generate)
}

// RequestIDWithGenerator returns a RequestID middleware with a custom id generator.
func RequestIDWithGenerator(generate func() string) gin.HandlerFunc {
	if generate == nil {
		generate = newULIDGenerator().generate
	}
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderXRequestID)
		if requestID == "" {
			requestID = generate()
		}

		c.Header(HeaderXRequestID, requestID)
		c.Set(RequestIDKey, requestID)
		ctx := WithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctxlog.WithRequestID(ctx, requestID))

		c.Next()
	}
}
