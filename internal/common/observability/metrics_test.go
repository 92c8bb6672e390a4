package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestNilObservabilityIsSafe(t *testing.T) {
	var o *Observability
	ctx := context.Background()

	assert.NotPanics(t, func() {
		_, span := o.StartSpan(ctx, "run", attribute.String("project", "tower-a"))
		span.End()
		o.RecordJobProcessed(ctx, "completed")
		o.RecordJobDuration(ctx, time.Second, "completed")
		o.RecordRows(ctx, "succeeded", 3)
		o.Shutdown()
	})
}

func TestNew(t *testing.T) {
	o := New("assetid-test")
	defer o.Shutdown()

	ctx, span := o.StartSpan(context.Background(), "run")
	defer span.End()
	assert.True(t, span.SpanContext().IsValid())

	assert.NotPanics(t, func() {
		o.RecordJobProcessed(ctx, "completed")
		o.RecordJobDuration(ctx, 20*time.Millisecond, "completed")
		o.RecordRows(ctx, "failed", 0)
	})
}
