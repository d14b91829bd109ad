package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yungbote/neurobridge-cdg/internal/platform/ctxutil"
)

func TestNewWithLevel(t *testing.T) {
	log, err := NewWithLevel("prod", "warn")
	require.NoError(t, err)
	assert.False(t, log.SugaredLogger.Desugar().Core().Enabled(-1))

	_, err = NewWithLevel("dev", "loud")
	assert.Error(t, err)

	assert.NotPanics(t, func() { Nop().With("graph_id", "g").Info("quiet") })
}

func TestSanitizeKVs(t *testing.T) {
	redactOnce.Do(func() {})
	redactionEnabled = true

	out := sanitizeKVs([]interface{}{
		"statement", "I have asthma",
		"password", "hunter2",
		"graph_id", "g1",
		"dangling",
	})
	require.Len(t, out, 7)
	assert.Contains(t, out[1], "hash:")
	assert.Equal(t, "[REDACTED]", out[3])
	assert.Equal(t, "g1", out[5])
	assert.Equal(t, "dangling", out[6])
}

func TestWithContextAddsTraceFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := &Logger{SugaredLogger: zap.New(core).Sugar()}
	ctx := ctxutil.WithGraphID(ctxutil.WithTraceData(context.Background(), &ctxutil.TraceData{RequestID: "r1"}), "g1")

	log.WithContext(ctx).Info("turn")
	assert.Same(t, log, log.WithContext(context.Background()))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "r1", fields["request_id"])
	assert.Equal(t, "g1", fields["graph_id"])
	assert.NotContains(t, fields, "trace_id")
}
