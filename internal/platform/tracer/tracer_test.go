package tracer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestNoopTracer(t *testing.T) {
	ctx := context.Background()
	newCtx, span := NewNoop().Start(ctx, "purchase.initiate", String("child_id", "c"))

	assert.Equal(t, ctx, newCtx)
	require.NotNil(t, span)
	span.SetAttributes(Bool("coppa", true))
	span.AddEvent("consent.checked", Int64("limit", 1000))
	span.End(errors.New("rejected"))
}

func TestOTelTracer_WithInjectedTracer(t *testing.T) {
	tr := NewOTel(WithOTelTracer(noop.NewTracerProvider().Tracer("test")))
	_, span := tr.Start(context.Background(), "purchase.complete", String("purchase_id", "p"), Int64("amount", 499))
	require.NotNil(t, span)
	span.AddEvent("payment.charged")
	span.End(nil)
}

func TestToOTelAttributes(t *testing.T) {
	attrs := toOTelAttributes([]Attribute{String("a", "x"), Bool("b", true), Int64("c", 3), {Key: "d", Value: 1}, {Key: "skip", Value: 1.5}})
	assert.Len(t, attrs, 4)
	assert.Nil(t, toOTelAttributes(nil))
}
