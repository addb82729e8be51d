package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveTransition("swap", "validating")
	m.ObserveTransition("swap", "validating")
	m.ObserveOutcome("swap", "failed", "slippage_exceeded", 2*time.Second)
	m.ObserveOutcome("swap", "succeeded", "", time.Second)
	m.ObserveQuote("ready")
	m.ObserveReserveRead(nil)
	m.ObserveReserveRead(errors.New("boom"))
	m.ObserveHead(42)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Transitions.WithLabelValues("swap", "validating")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Outcomes.WithLabelValues("swap", "failed", "slippage_exceeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Outcomes.WithLabelValues("swap", "succeeded", "none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Quotes.WithLabelValues("ready")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReserveReads.WithLabelValues("error")))

	assert.Equal(t, 42.0, testutil.ToFloat64(m.HeadBlock))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 6)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveTransition("swap", "idle")
	m.ObserveOutcome("swap", "failed", "read_failed", time.Second)
	m.ObserveQuote("ready")
	m.ObserveReserveRead(nil)
	m.ObserveHead(1)
}
