package logger

import (
	"context"
	"testing"

	"github.com/kart-io/logger"
	"github.com/kart-io/logger/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func fieldMap(ctx context.Context) map[interface{}]interface{} {
	fields := GetContextFields(ctx)
	out := make(map[interface{}]interface{}, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		out[fields[i]] = fields[i+1]
	}
	return out
}

func TestWithIDs(t *testing.T) {
	tests := []struct {
		name string
		with func(context.Context, string) context.Context
		key  string
	}{
		{"request id", WithRequestID, FieldRequestID},
		{"user id", WithUserID, FieldUserID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := tt.with(context.Background(), "abc")
			assert.Equal(t, "abc", fieldMap(ctx)[tt.key])

			empty := tt.with(context.Background(), "")
			assert.Nil(t, GetContextFields(empty))
		})
	}
}

func TestFieldsAreCopiedOnWrite(t *testing.T) {
	parent := WithRequestID(context.Background(), "r1")
	child := WithUserID(parent, "alice")

	assert.NotContains(t, fieldMap(parent), FieldUserID)
	assert.Equal(t, []interface{}{FieldRequestID, "r1", FieldUserID, "alice"}, GetContextFields(child))
}

func TestWithFields(t *testing.T) {
	ctx := WithFields(context.Background(), "source_id", "d1", 42, "ignored", "dangling")
	assert.Equal(t, []interface{}{"source_id", "d1"}, GetContextFields(ctx))
	assert.Equal(t, context.Background(), WithFields(context.Background(), "only-key"))
}

func TestCopyFieldsToDetachedContext(t *testing.T) {
	req, cancel := context.WithCancel(WithRequestID(context.Background(), "r1"))
	cancel()

	detached := CopyFields(context.Background(), req)
	assert.NoError(t, detached.Err())
	assert.Equal(t, "r1", fieldMap(detached)[FieldRequestID])

	assert.Equal(t, context.Background(), CopyFields(context.Background(), context.Background()))
}

func TestTraceFieldsFromSpan(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	fields := fieldMap(ctx)
	assert.Equal(t, span.SpanContext().TraceID().String(), fields[FieldTraceID])
	assert.Equal(t, span.SpanContext().SpanID().String(), fields[FieldSpanID])
}

func TestGetLogger(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()))
	assert.NotNil(t, GetLogger(WithRequestID(context.Background(), "r1")))

	pinned, err := logger.New(option.DefaultLogOption())
	require.NoError(t, err)
	ctx := WithLogger(WithRequestID(context.Background(), "r1"), pinned)
	assert.Equal(t, pinned, GetLogger(ctx))
}
