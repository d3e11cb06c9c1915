package infrastructure

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/config"
)

func TestInitializeOTel_Disabled(t *testing.T) {
	providers, err := InitializeOTel(config.TelemetryConfig{
		TraceExporter:  "none",
		MetricExporter: "none",
	}, DiscardLogger())
	require.NoError(t, err)

	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.Meter)
	assert.Nil(t, providers.PrometheusHTTP)
	assert.NoError(t, providers.Shutdown(context.Background()))
}

func TestInitializeOTel_UnsupportedExporter(t *testing.T) {
	_, err := InitializeOTel(config.TelemetryConfig{TraceExporter: "jaeger"}, DiscardLogger())
	assert.Error(t, err)

	_, err = InitializeOTel(config.TelemetryConfig{MetricExporter: "statsd"}, DiscardLogger())
	assert.Error(t, err)
}

func TestInitializeOTel_PrometheusEndpoint(t *testing.T) {
	providers, err := InitializeOTel(config.TelemetryConfig{
		TraceExporter:  "none",
		MetricExporter: "prometheus",
		SampleRatio:    1,
	}, DiscardLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())
	require.NotNil(t, providers.PrometheusHTTP)

	metrics, err := CreateBusinessMetrics(providers.Meter)
	require.NoError(t, err)
	metrics.CreditsConsumed.Add(context.Background(), 3)

	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "credits_consumed")
}

func TestCreateBusinessMetrics_NilMeter(t *testing.T) {
	metrics, err := CreateBusinessMetrics(nil)
	require.NoError(t, err)
	assert.NotNil(t, metrics.LicenseCacheHits)
}

func TestRegisterRuntimeMetrics(t *testing.T) {
	providers, err := InitializeOTel(config.TelemetryConfig{MetricExporter: "prometheus"}, DiscardLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	reg, err := RegisterRuntimeMetrics(providers.Meter, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	defer reg.Unregister()

	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, "runtime_goroutines")
	assert.Contains(t, body, "process_uptime_seconds")
}

func TestReadRuntimeStats(t *testing.T) {
	s := ReadRuntimeStats(time.Now().Add(-time.Hour))
	assert.Positive(t, s.Goroutines)
	assert.Positive(t, s.Sys)
	assert.GreaterOrEqual(t, s.Uptime, time.Hour)
}
