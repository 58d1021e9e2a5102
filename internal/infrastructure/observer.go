package infrastructure

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/dataprocessing"
)

// EngineObserver feeds normalization engine events into BusinessMetrics.
type EngineObserver struct {
	metrics *BusinessMetrics
}

var _ dataprocessing.Observer = (*EngineObserver)(nil)

// NewEngineObserver returns an observer recording into metrics.
func NewEngineObserver(metrics *BusinessMetrics) *EngineObserver {
	return &EngineObserver{metrics: metrics}
}

func exchangeAttr(meta dataprocessing.SnapshotMeta) attribute.KeyValue {
	return attribute.String("exchange", string(meta.Exchange))
}

// RowSkipped counts header, totals and malformed rows.
func (o *EngineObserver) RowSkipped(meta dataprocessing.SnapshotMeta, kind dataprocessing.RowKind) {
	if o.metrics == nil {
		return
	}
	o.metrics.RowsSkipped.Add(context.Background(), 1, metric.WithAttributes(
		exchangeAttr(meta),
		attribute.String("reason", kind.String()),
	))
}

// UnclassifiedRow counts rows excluded for an unknown label.
func (o *EngineObserver) UnclassifiedRow(meta dataprocessing.SnapshotMeta, _ string) {
	if o.metrics == nil {
		return
	}
	o.metrics.UnclassifiedRows.Add(context.Background(), 1, metric.WithAttributes(exchangeAttr(meta)))
}

// SnapshotBuilt counts successful builds.
func (o *EngineObserver) SnapshotBuilt(meta dataprocessing.SnapshotMeta, _ int) {
	if o.metrics == nil {
		return
	}
	o.metrics.SnapshotsBuilt.Add(context.Background(), 1, metric.WithAttributes(exchangeAttr(meta)))
}

// NoUsableData counts builds without usable rows.
func (o *EngineObserver) NoUsableData(meta dataprocessing.SnapshotMeta) {
	if o.metrics == nil {
		return
	}
	o.metrics.SnapshotsNoData.Add(context.Background(), 1, metric.WithAttributes(exchangeAttr(meta)))
}
