package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/webpa-gateway/cache"
	"github.com/c360/webpa-gateway/codec"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func TestObserveCachePublishesCurrentStatistics(t *testing.T) {
	cfg := cache.DefaultConfig()
	cfg.CleanupInterval = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	c := cache.New(ctx, cfg)
	t.Cleanup(func() { _ = c.Close() })

	c.Set("Device.A", codec.TypedValue{Value: "1", Type: codec.TypeInt}, 0)
	_, _ = c.Get("Device.A")
	_, _ = c.Get("Device.Missing")

	m := NewGatewayMetrics()
	m.ObserveCache(c)

	assert.Equal(t, float64(1), gaugeValue(t, m.CacheHits))
	assert.Equal(t, float64(1), gaugeValue(t, m.CacheMisses))
	assert.Equal(t, float64(1), gaugeValue(t, m.CacheSize))
}

func TestCollectorsReturnsEveryGauge(t *testing.T) {
	m := NewGatewayMetrics()
	assert.Len(t, m.Collectors(), 6)
}
