package tracing

import (
	"context"
	"errors"
	"testing"

	"example.com/eventwave/config"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledTracerIsNoop(t *testing.T) {
	tracer, err := NewTracer(config.TracingConfig{})
	require.NoError(t, err)

	txn := tracer.StartTransaction("refresh")
	assert.Nil(t, txn)

	seg := tracer.StartSpan("fetch", txn)
	assert.Nil(t, seg)
	seg.End()

	tracer.AddAttribute(txn, "k", "v")
	tracer.RecordError(txn, errors.New("boom"))
	tracer.EndTransaction(txn)
	assert.Nil(t, tracer.Application())
	tracer.Close()
}

func TestWithTransactionNil(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, WithTransaction(ctx, nil))
	assert.Nil(t, newrelic.FromContext(WithTransaction(ctx, nil)))
}
