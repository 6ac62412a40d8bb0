package database

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func describe(c prometheus.Collector) []string {
	ch := make(chan *prometheus.Desc, 16)
	c.Describe(ch)
	close(ch)

	var out []string
	for d := range ch {
		out = append(out, d.String())
	}
	return out
}

func TestPoolStatsCollector_Describe(t *testing.T) {
	descs := describe(NewPoolStatsCollector(nil, "review"))
	assert.Len(t, descs, 8)

	joined := strings.Join(descs, "\n")
	for _, name := range []string{
		"db_pool_acquired_connections",
		"db_pool_idle_connections",
		"db_pool_max_connections",
		"db_pool_acquire_duration_seconds_total",
		"db_pool_canceled_acquire_count_total",
	} {
		assert.Contains(t, joined, name)
	}
}

func TestPoolStatsCollector_WithoutPoolCollectsNothing(t *testing.T) {
	c := NewPoolStatsCollector(nil, "review")
	assert.Equal(t, 0, testutil.CollectAndCount(c))
}

func TestRegisterPoolMetrics_Twice(t *testing.T) {
	assert.NotPanics(t, func() {
		RegisterPoolMetrics(nil, "review-metrics-test")
		RegisterPoolMetrics(nil, "review-metrics-test")
	})
}
