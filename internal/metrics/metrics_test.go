package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"echobench/internal/runner"
)

func TestCollectorCounts(t *testing.T) {
	c := NewCollector()
	var _ runner.Observer = c

	c.ObserveSample("MQTT", 4.2)
	c.ObserveSample("MQTT", 1.1)
	c.ObserveFailure("MQTT", runner.ParseError)
	c.ObserveFailure("HTTP", runner.SendError)
	c.ObserveMiss("MQTT")

	assert.Equal(t, 3.0, testutil.ToFloat64(c.completed.WithLabelValues("MQTT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.completed.WithLabelValues("HTTP")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.failures.WithLabelValues("MQTT", "parse_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.misses.WithLabelValues("MQTT")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.latency))
}
