package dataprocessing

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Roshiii-8511/gainipo-subscription-scraper/pkg/contracts/domain"
)

// Observer receives per-build events, typically to feed metrics.
// Implementations must be safe for concurrent use.
type Observer interface {
	RowSkipped(meta SnapshotMeta, kind RowKind)
	UnclassifiedRow(meta SnapshotMeta, label string)
	SnapshotBuilt(meta SnapshotMeta, categories int)
	NoUsableData(meta SnapshotMeta)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) RowSkipped(SnapshotMeta, RowKind)      {}
func (NopObserver) UnclassifiedRow(SnapshotMeta, string)  {}
func (NopObserver) SnapshotBuilt(SnapshotMeta, int)       {}
func (NopObserver) NoUsableData(SnapshotMeta)             {}

// UnclassifiedRow records a data row whose label matched no category.
type UnclassifiedRow struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// Diagnostics counts what happened to each row of one build.
type Diagnostics struct {
	Rows            int               `json:"rows"`
	DataRows        int               `json:"data_rows"`
	HeaderRows      int               `json:"header_rows"`
	TotalRows       int               `json:"total_rows"`
	MalformedRows   int               `json:"malformed_rows"`
	Unclassified    []UnclassifiedRow `json:"unclassified,omitempty"`
	RatioMismatches int               `json:"ratio_mismatches"`
	SynthesizedNII  bool              `json:"synthesized_nii"`
}

// Result is a built snapshot plus its diagnostics.
type Result struct {
	Snapshot    domain.SubscriptionSnapshot
	Diagnostics Diagnostics
}

// Engine turns raw subscription tables into canonical snapshots. It keeps
// no state between builds and may be shared by concurrent fetch workers.
type Engine struct {
	classifier *Classifier
	normalizer *Normalizer
	aggregator *Aggregator
	observer   Observer
	logger     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for the warning channel.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithObserver sets the event observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithNormalizer replaces the default category normalizer.
func WithNormalizer(n *Normalizer) Option {
	return func(e *Engine) {
		if n != nil {
			e.normalizer = n
		}
	}
}

// NewEngine creates an engine with default classifier, normalizer and
// aggregator.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		classifier: NewClassifier(),
		normalizer: NewNormalizer(),
		aggregator: NewAggregator(),
		observer:   NopObserver{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(slog.String("component", "subscription_engine"))
	return e
}

// Build runs the pipeline and returns the snapshot. It returns an error
// wrapping ErrNoUsableData when no category could be populated.
func (e *Engine) Build(meta SnapshotMeta, rows []domain.RawRow, capturedAt time.Time) (domain.SubscriptionSnapshot, error) {
	res, err := e.Analyze(meta, rows, capturedAt)
	if err != nil {
		return domain.SubscriptionSnapshot{}, err
	}
	return res.Snapshot, nil
}

// BuildFromTable builds a snapshot from HTML-table cells.
func (e *Engine) BuildFromTable(meta SnapshotMeta, table [][]string, capturedAt time.Time) (domain.SubscriptionSnapshot, error) {
	return e.Build(meta, RowsFromCells(table), capturedAt)
}

// BuildFromRecords builds a snapshot from JSON-API records.
func (e *Engine) BuildFromRecords(meta SnapshotMeta, records []domain.APIRecord, capturedAt time.Time) (domain.SubscriptionSnapshot, error) {
	return e.Build(meta, RowsFromRecords(records), capturedAt)
}

// Analyze is Build plus per-row diagnostics. Diagnostics are returned
// even when the result is ErrNoUsableData.
func (e *Engine) Analyze(meta SnapshotMeta, rows []domain.RawRow, capturedAt time.Time) (Result, error) {
	logger := e.logger.With(
		slog.String("offering_id", meta.OfferingID),
		slog.String("exchange", string(meta.Exchange)),
	)

	diag := Diagnostics{Rows: len(rows)}
	entries := make([]Entry, 0, len(rows))

	for _, row := range e.classifier.Classify(rows) {
		switch row.Kind {
		case RowHeader:
			diag.HeaderRows++
			e.skip(logger, meta, row)
			continue
		case RowMalformed:
			diag.MalformedRows++
			e.skip(logger, meta, row)
			continue
		case RowTotal:
			// Source totals are unreliable; the total is recomputed below.
			diag.TotalRows++
			e.skip(logger, meta, row)
			continue
		}

		diag.DataRows++
		cat := e.normalizer.Normalize(row.Label)
		if cat == domain.CategoryUnclassified {
			diag.Unclassified = append(diag.Unclassified, UnclassifiedRow{Label: row.Label, Text: row.Text})
			logger.Warn("unclassified subscription category excluded from aggregation",
				slog.String("label", row.Label),
				slog.String("row_text", row.Text),
				slog.Int("row_index", row.Index))
			e.observer.UnclassifiedRow(meta, row.Label)
			continue
		}

		entry := Entry{Category: cat, Offered: ParseShares(row.Offered), Bid: ParseShares(row.Bid)}
		if ratioDisagrees(row.Ratio, entry) {
			diag.RatioMismatches++
			logger.Debug("published ratio differs from computed ratio",
				slog.String("category", string(cat)),
				slog.String("published", row.Ratio),
				slog.Float64("computed", Ratio(entry.Bid, entry.Offered)))
		}
		entries = append(entries, entry)
	}

	agg := e.aggregator.Aggregate(entries)
	diag.SynthesizedNII = agg.SynthesizedNII

	if agg.Categories.Len() == 0 {
		logger.Info("no usable subscription rows",
			slog.Int("rows", diag.Rows),
			slog.Int("unclassified", len(diag.Unclassified)))
		e.observer.NoUsableData(meta)
		return Result{Diagnostics: diag}, fmt.Errorf("%s: %w", meta.OfferingID, ErrNoUsableData)
	}

	snap := Assemble(meta, agg, capturedAt)
	e.observer.SnapshotBuilt(meta, agg.Categories.Len())
	logger.Debug("subscription snapshot built",
		slog.Int("categories", agg.Categories.Len()),
		slog.Int64("total_offered", snap.Total.SharesOffered),
		slog.Int64("total_bid", snap.Total.SharesBid),
		slog.Float64("total_ratio", snap.Total.SubscriptionRatio))

	return Result{Snapshot: snap, Diagnostics: diag}, nil
}

func (e *Engine) skip(logger *slog.Logger, meta SnapshotMeta, row ClassifiedRow) {
	logger.Debug("row skipped",
		slog.String("kind", row.Kind.String()),
		slog.Int("row_index", row.Index),
		slog.String("row_text", row.Text))
	e.observer.RowSkipped(meta, row.Kind)
}

// ratioDisagrees reports a published ratio that is off from the computed
// one by more than rounding noise.
func ratioDisagrees(published string, entry Entry) bool {
	if !IsNumericCell(published) || cleanCell(published) == "" || entry.Offered == 0 {
		return false
	}
	return math.Abs(ParseRatio(published)-Ratio(entry.Bid, entry.Offered)) > 0.011
}
