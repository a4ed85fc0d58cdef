package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func collect(t *testing.T, reader *metric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestHTTPMetrics_MetricsMiddleware(t *testing.T) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	m := newHTTPMetrics(mp.Meter(httpInstrumentationName), zap.NewNop())

	e := echo.New()
	e.Use(m.MetricsMiddleware())
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/command/:args", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"args": c.Param("args")})
	})
	e.GET("/limited", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusTooManyRequests, "slow down")
	})

	for _, path := range []string{"/health", "/command/c%201%201%20N", "/command/h", "/limited"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	metrics := collect(t, reader)

	requests, ok := metrics["gridwalker.http.requests_total"]
	require.True(t, ok, "requests counter not found")
	sum, ok := requests.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	byRoute := map[string]int64{}
	statuses := map[int64]int64{}
	for _, dp := range sum.DataPoints {
		route, _ := dp.Attributes.Value("route")
		status, _ := dp.Attributes.Value("status")
		byRoute[route.AsString()] += dp.Value
		statuses[status.AsInt64()] += dp.Value
	}
	assert.Equal(t, int64(2), byRoute["/command/:args"], "route labels use the registered path")
	assert.Equal(t, int64(1), byRoute["/health"])
	assert.Equal(t, int64(1), statuses[http.StatusTooManyRequests], "status reflects the handled error")

	dur, ok := metrics["gridwalker.http.request_duration_seconds"]
	require.True(t, ok, "duration histogram not found")
	hist, ok := dur.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(4), count)

	_, ok = metrics["gridwalker.http.response_size_bytes"]
	assert.True(t, ok, "response size histogram not found")

	throttled, ok := metrics["gridwalker.http.throttled_total"]
	require.True(t, ok)
	tsum := throttled.Data.(metricdata.Sum[int64])
	require.Len(t, tsum.DataPoints, 1)
	assert.Equal(t, int64(1), tsum.DataPoints[0].Value)
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "/"},
		{"/health", "/health"},
		{"/command/:args", "/command/:args"},
		{"/api/v1/commands", "/api/v1/commands"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, normalizePath(tt.input))
	}
}
