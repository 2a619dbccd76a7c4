// Package logger carries structured log fields on a context so that every
// entry written while serving a request is tagged with its request, user
// and trace ids.
package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/kart-io/logger"
	"github.com/kart-io/logger/core"
)

type contextKey int

const (
	loggerFieldsKey contextKey = iota
	contextLoggerKey
)

// Field keys written by the helpers below.
const (
	FieldRequestID = "request_id"
	FieldUserID    = "user_id"
	FieldTraceID   = "trace_id"
	FieldSpanID    = "span_id"
)

// loggerFields is copied on write; a context never sees a later mutation.
type loggerFields struct {
	keys   []string
	values map[string]interface{}
}

func (lf *loggerFields) clone() *loggerFields {
	out := &loggerFields{
		keys:   append([]string(nil), lf.keys...),
		values: make(map[string]interface{}, len(lf.values)+1),
	}
	for k, v := range lf.values {
		out.values[k] = v
	}
	return out
}

func (lf *loggerFields) set(key string, value interface{}) {
	if _, ok := lf.values[key]; !ok {
		lf.keys = append(lf.keys, key)
	}
	lf.values[key] = value
}

// toSlice keeps insertion order so log lines are stable.
func (lf *loggerFields) toSlice() []interface{} {
	if len(lf.keys) == 0 {
		return nil
	}
	slice := make([]interface{}, 0, len(lf.keys)*2)
	for _, k := range lf.keys {
		slice = append(slice, k, lf.values[k])
	}
	return slice
}

func getLoggerFields(ctx context.Context) *loggerFields {
	if lf, ok := ctx.Value(loggerFieldsKey).(*loggerFields); ok {
		return lf
	}
	return &loggerFields{values: map[string]interface{}{}}
}

func withField(ctx context.Context, key string, value interface{}) context.Context {
	lf := getLoggerFields(ctx).clone()
	lf.set(key, value)
	return context.WithValue(ctx, loggerFieldsKey, lf)
}

// WithRequestID adds request_id to the context logger fields.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return withField(ctx, FieldRequestID, requestID)
}

// WithUserID adds user_id to the context logger fields.
func WithUserID(ctx context.Context, userID string) context.Context {
	if userID == "" {
		return ctx
	}
	return withField(ctx, FieldUserID, userID)
}

// WithFields adds key/value pairs. A trailing key without a value and
// non-string keys are ignored.
func WithFields(ctx context.Context, keysAndValues ...interface{}) context.Context {
	if len(keysAndValues) < 2 {
		return ctx
	}
	lf := getLoggerFields(ctx).clone()
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			lf.set(key, keysAndValues[i+1])
		}
	}
	return context.WithValue(ctx, loggerFieldsKey, lf)
}

// CopyFields moves the log fields of src onto dst. Used when work outlives
// the request that scheduled it.
func CopyFields(dst, src context.Context) context.Context {
	lf, ok := src.Value(loggerFieldsKey).(*loggerFields)
	if !ok {
		return dst
	}
	return context.WithValue(dst, loggerFieldsKey, lf)
}

// GetContextFields returns the context fields as a key/value slice, nil when
// there are none. trace_id and span_id are read from the active span.
func GetContextFields(ctx context.Context) []interface{} {
	fields := getLoggerFields(ctx).toSlice()
	sc := trace.SpanContextFromContext(ctx)
	if sc.IsValid() {
		fields = append(fields, FieldTraceID, sc.TraceID().String(), FieldSpanID, sc.SpanID().String())
	}
	return fields
}

// GetLogger returns the global logger bound to the context fields.
func GetLogger(ctx context.Context) core.Logger {
	if l, ok := ctx.Value(contextLoggerKey).(core.Logger); ok {
		return l
	}
	base := logger.Global()
	fields := GetContextFields(ctx)
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

// WithLogger pins a pre-configured logger to the context; GetLogger returns
// it as is.
func WithLogger(ctx context.Context, l core.Logger) context.Context {
	return context.WithValue(ctx, contextLoggerKey, l)
}
