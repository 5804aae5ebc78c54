package monitor

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrunedCounterByReason(t *testing.T) {
	before := testutil.ToFloat64(Pruned.WithLabelValues(ReasonIsolated))
	Pruned.WithLabelValues(ReasonIsolated).Add(3)
	assert.Equal(t, before+3, testutil.ToFloat64(Pruned.WithLabelValues(ReasonIsolated)))
}

func TestGaussiansGauge(t *testing.T) {
	Gaussians.Set(128)
	assert.Equal(t, 128.0, testutil.ToFloat64(Gaussians))
}

func TestObserveStage(t *testing.T) {
	ObserveStage("unit_test", time.Now().Add(-time.Millisecond))
	assert.Equal(t, 1, testutil.CollectAndCount(CycleDuration, "splatsphere_cycle_duration_seconds"))
}
