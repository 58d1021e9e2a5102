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

	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/dataprocessing"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/pkg/contracts/domain"
)

func TestInitializeOTelDisabled(t *testing.T) {
	providers, err := InitializeOTel(&OTelConfig{
		ServiceName:    "test",
		ServiceVersion: "0.0.1",
		Environment:    "test",
	}, NewLoggerWithWriter(io.Discard, "error"))
	require.NoError(t, err)

	assert.Nil(t, providers.TracerProvider)
	assert.Nil(t, providers.MeterProvider)
	assert.Nil(t, providers.PrometheusHTTP)
	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.Meter)

	metrics, err := CreateBusinessMetrics(providers.Meter)
	require.NoError(t, err)

	// No-op instruments accept records.
	RecordFetch(context.Background(), metrics, "BSE", "demand", time.Second, assert.AnError)
	RecordPollCycle(context.Background(), metrics, 2, 1)

	assert.NoError(t, providers.Shutdown(context.Background()))
}

func TestInitializeOTelUnsupportedExporter(t *testing.T) {
	_, err := InitializeOTel(&OTelConfig{
		EnableMetrics:  true,
		MetricExporter: "carrier-pigeon",
	}, NewLoggerWithWriter(io.Discard, "error"))
	assert.Error(t, err)
}

func TestPrometheusExposesSubscriptionMetrics(t *testing.T) {
	cfg := DefaultOTelConfig()
	cfg.EnableTracing = true
	cfg.TraceExporter = "none"

	providers, err := InitializeOTel(cfg, NewLoggerWithWriter(io.Discard, "error"))
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())
	require.NotNil(t, providers.PrometheusHTTP)

	metrics, err := CreateBusinessMetrics(providers.Meter)
	require.NoError(t, err)

	obs := NewEngineObserver(metrics)
	meta := dataprocessing.SnapshotMeta{OfferingID: "acme", Exchange: domain.ExchangeBSE}
	obs.SnapshotBuilt(meta, 2)
	obs.RowSkipped(meta, dataprocessing.RowHeader)
	obs.UnclassifiedRow(meta, "Anchor")
	obs.NoUsableData(meta)
	RecordFetch(context.Background(), metrics, "BSE", "demand", 250*time.Millisecond, nil)

	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "snapshots_built_total")
	assert.Contains(t, body, "rows_skipped_total")
	assert.Contains(t, body, `reason="header"`)
	assert.Contains(t, body, "unclassified_rows_total")
	assert.Contains(t, body, "snapshots_no_data_total")
	assert.Contains(t, body, "fetch_duration_seconds")
}

func TestEngineObserverWithoutMetrics(t *testing.T) {
	obs := NewEngineObserver(nil)
	meta := dataprocessing.SnapshotMeta{OfferingID: "acme"}

	assert.NotPanics(t, func() {
		obs.SnapshotBuilt(meta, 1)
		obs.RowSkipped(meta, dataprocessing.RowTotal)
		obs.UnclassifiedRow(meta, "x")
		obs.NoUsableData(meta)
	})
}

func TestTraceIDFromContext(t *testing.T) {
	cfg := &OTelConfig{
		ServiceName:   "test",
		EnableTracing: true,
		TraceExporter: "stdout",
		SampleRatio:   1,
	}
	providers, err := InitializeOTel(cfg, NewLoggerWithWriter(io.Discard, "error"))
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	ctx, span := providers.Tracer.Start(context.Background(), "poll")
	defer span.End()

	assert.Equal(t, span.SpanContext().TraceID().String(), TraceIDFromContext(ctx))
	assert.Empty(t, TraceIDFromContext(context.Background()))
}
