package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/dataprocessing"
	apierrors "github.com/Roshiii-8511/gainipo-subscription-scraper/internal/errors"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/infrastructure"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/storage"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/pkg/contracts/domain"
)

// Source is an exchange collaborator: it lists the offerings open for
// bidding and returns the raw subscription rows of one of them.
type Source interface {
	Exchange() domain.Exchange
	LiveOfferings(ctx context.Context) ([]domain.Offering, error)
	FetchRows(ctx context.Context, o domain.Offering) ([]domain.RawRow, error)
}

// OfferingResult is the outcome of one offering within a poll cycle.
type OfferingResult struct {
	OfferingID string          `json:"offering_id"`
	Exchange   domain.Exchange `json:"exchange"`
	DocID      string          `json:"doc_id,omitempty"`
	Categories int             `json:"categories,omitempty"`
	NoData     bool            `json:"no_data,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// CycleReport summarises one poll cycle.
type CycleReport struct {
	StartedAt    time.Time                  `json:"started_at"`
	FinishedAt   time.Time                  `json:"finished_at"`
	Discovered   int                        `json:"discovered"`
	Stored       int                        `json:"stored"`
	NoData       int                        `json:"no_data"`
	Failed       int                        `json:"failed"`
	Archived     []string                   `json:"archived,omitempty"`
	SourceErrors map[domain.Exchange]string `json:"source_errors,omitempty"`
	Results      []OfferingResult           `json:"results"`
}

// ErrNoSources is returned when no exchange could list its offerings.
var ErrNoSources = errors.New("no exchange source available")

// SubscriptionService runs poll cycles and serves stored snapshots.
type SubscriptionService struct {
	sources     []Source
	engine      *dataprocessing.Engine
	store       storage.SnapshotStore
	concurrency int
	metrics     *infrastructure.BusinessMetrics
	tracer      trace.Tracer
	now         func() time.Time
	logger      *slog.Logger
}

// SubscriptionOption configures a SubscriptionService.
type SubscriptionOption func(*SubscriptionService)

// WithConcurrency bounds the number of offerings fetched at once.
func WithConcurrency(n int) SubscriptionOption {
	return func(s *SubscriptionService) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithMetrics records fetches and cycles into metrics.
func WithMetrics(m *infrastructure.BusinessMetrics) SubscriptionOption {
	return func(s *SubscriptionService) { s.metrics = m }
}

// WithTracer sets the tracer used for cycle and fetch spans.
func WithTracer(t trace.Tracer) SubscriptionOption {
	return func(s *SubscriptionService) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithClock replaces time.Now as the capture clock.
func WithClock(now func() time.Time) SubscriptionOption {
	return func(s *SubscriptionService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithServiceLogger sets the service logger.
func WithServiceLogger(logger *slog.Logger) SubscriptionOption {
	return func(s *SubscriptionService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSubscriptionService creates the service. Sources are consulted in
// order; when two exchanges list the same offering the earlier source
// keeps it.
func NewSubscriptionService(store storage.SnapshotStore, engine *dataprocessing.Engine, sources []Source, opts ...SubscriptionOption) *SubscriptionService {
	s := &SubscriptionService{
		sources:     sources,
		engine:      engine,
		store:       store,
		concurrency: 4,
		tracer:      otel.Tracer(infrastructure.MeterName),
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.engine == nil {
		s.engine = dataprocessing.NewEngine(dataprocessing.WithLogger(s.logger))
	}
	s.logger = infrastructure.WithComponent(s.logger, "subscription_service")
	return s
}

type job struct {
	offering domain.Offering
	source   Source
}

// PollOnce runs one cycle: discover live offerings on every source, fetch
// and normalize each one, persist the snapshots and archive offerings
// that are no longer live. A failed offering does not stop the others.
func (s *SubscriptionService) PollOnce(ctx context.Context) (*CycleReport, error) {
	ctx, span := s.tracer.Start(ctx, "subscription.poll_cycle")
	defer span.End()

	report := &CycleReport{StartedAt: s.now()}
	jobs, polled := s.discover(ctx, report)
	report.Discovered = len(jobs)
	if len(polled) == 0 && len(s.sources) > 0 {
		span.SetStatus(codes.Error, ErrNoSources.Error())
		return report, ErrNoSources
	}

	report.Results = make([]OfferingResult, len(jobs))
	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for i, j := range jobs {
		g.Go(func() error {
			report.Results[i] = s.collect(ctx, j)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range report.Results {
		switch {
		case r.Error != "":
			report.Failed++
		case r.NoData:
			report.NoData++
		default:
			report.Stored++
		}
	}

	if err := ctx.Err(); err != nil {
		return report, err
	}

	archived, err := s.sweep(ctx, jobs, polled)
	report.Archived = archived
	if err != nil {
		s.logger.ErrorContext(ctx, "archive sweep failed", slog.String("error", err.Error()))
	}

	report.FinishedAt = s.now()
	infrastructure.RecordPollCycle(ctx, s.metrics, report.Stored, len(report.Archived))
	span.SetAttributes(
		attribute.Int("offerings.discovered", report.Discovered),
		attribute.Int("offerings.stored", report.Stored),
		attribute.Int("offerings.failed", report.Failed),
	)

	s.logger.InfoContext(ctx, "poll cycle completed",
		slog.Int("discovered", report.Discovered),
		slog.Int("stored", report.Stored),
		slog.Int("no_data", report.NoData),
		slog.Int("failed", report.Failed),
		slog.Int("archived", len(report.Archived)),
		slog.Duration("duration", report.FinishedAt.Sub(report.StartedAt)))
	return report, err
}

// discover lists live offerings on every source and drops duplicates by
// offering id. It returns the exchanges whose listing succeeded.
func (s *SubscriptionService) discover(ctx context.Context, report *CycleReport) ([]job, map[domain.Exchange]bool) {
	var (
		mu     sync.Mutex
		lists  = make([][]domain.Offering, len(s.sources))
		polled = make(map[domain.Exchange]bool)
	)

	g := new(errgroup.Group)
	for i, src := range s.sources {
		g.Go(func() error {
			start := time.Now()
			offerings, err := src.LiveOfferings(ctx)
			infrastructure.RecordFetch(ctx, s.metrics, string(src.Exchange()), "list", time.Since(start), err)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if report.SourceErrors == nil {
					report.SourceErrors = make(map[domain.Exchange]string)
				}
				report.SourceErrors[src.Exchange()] = err.Error()
				s.logger.WarnContext(ctx, "listing live offerings failed",
					slog.String("exchange", string(src.Exchange())),
					slog.String("error", err.Error()))
				return nil
			}
			lists[i] = offerings
			polled[src.Exchange()] = true
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]bool)
	var jobs []job
	for i, offerings := range lists {
		for _, o := range offerings {
			if o.ID == "" || seen[o.ID] {
				continue
			}
			seen[o.ID] = true
			jobs = append(jobs, job{offering: o, source: s.sources[i]})
		}
	}
	return jobs, polled
}

func (s *SubscriptionService) collect(ctx context.Context, j job) OfferingResult {
	o := j.offering
	res := OfferingResult{OfferingID: o.ID, Exchange: o.Exchange}

	ctx, span := s.tracer.Start(ctx, "subscription.collect", trace.WithAttributes(
		attribute.String("offering.id", o.ID),
		attribute.String("exchange", string(o.Exchange)),
	))
	defer span.End()

	ctx = infrastructure.WithOffering(ctx, o.ID, string(o.Exchange))

	start := time.Now()
	rows, err := j.source.FetchRows(ctx, o)
	infrastructure.RecordFetch(ctx, s.metrics, string(o.Exchange), "subscription", time.Since(start), err)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		s.logger.WarnContext(ctx, "fetching subscription rows failed", slog.String("error", err.Error()))
		res.Error = err.Error()
		return res
	}

	snap, err := s.engine.Build(dataprocessing.MetaFor(o), rows, s.now())
	if errors.Is(err, dataprocessing.ErrNoUsableData) {
		res.NoData = true
		return res
	}
	if err != nil {
		infrastructure.RecordError(ctx, err)
		res.Error = err.Error()
		return res
	}

	id, err := s.store.Save(ctx, snap)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		s.logger.ErrorContext(ctx, "saving snapshot failed", slog.String("error", err.Error()))
		res.Error = err.Error()
		return res
	}

	res.DocID = id
	res.Categories = snap.Categories.Len()
	s.logger.InfoContext(ctx, "snapshot stored",
		slog.String("doc_id", id),
		slog.Int("categories", res.Categories),
		slog.Float64("total_ratio", snap.Total.SubscriptionRatio))
	return res
}

// sweep archives active offerings of successfully polled exchanges that
// were not listed live this cycle.
func (s *SubscriptionService) sweep(ctx context.Context, jobs []job, polled map[domain.Exchange]bool) ([]string, error) {
	live := make(map[string]bool, len(jobs))
	for _, j := range jobs {
		live[j.offering.ID] = true
	}

	active, err := s.store.ActiveOfferings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active offerings: %w", err)
	}

	var archived []string
	var errs []error
	for _, o := range active {
		if live[o.OfferingID] || !polled[o.Exchange] {
			continue
		}
		if err := s.store.Archive(ctx, o.OfferingID); err != nil {
			errs = append(errs, fmt.Errorf("archive %s: %w", o.OfferingID, err))
			continue
		}
		archived = append(archived, o.OfferingID)
		s.logger.InfoContext(ctx, "offering archived", slog.String("offering_id", o.OfferingID))
	}
	return archived, errors.Join(errs...)
}

// Offerings lists the active offerings.
func (s *SubscriptionService) Offerings(ctx context.Context) ([]domain.TrackedOffering, error) {
	return s.store.ActiveOfferings(ctx)
}

// Latest returns the latest snapshot of an offering.
func (s *SubscriptionService) Latest(ctx context.Context, offeringID string) (domain.SubscriptionSnapshot, error) {
	snap, err := s.store.Latest(ctx, offeringID)
	if errors.Is(err, storage.ErrNotFound) {
		return snap, apierrors.NewNotFoundError("snapshot", err).WithContext("offering_id", offeringID)
	}
	return snap, err
}

// History returns up to limit recent snapshots of an offering, oldest
// first. Zero means all.
func (s *SubscriptionService) History(ctx context.Context, offeringID string, limit int) ([]domain.SubscriptionSnapshot, error) {
	if limit < 0 {
		return nil, apierrors.NewAppValidationError("invalid history limit", ErrInvalidLimit)
	}
	return s.store.History(ctx, offeringID, limit)
}

// Normalize runs the engine on caller-supplied rows without persisting.
func (s *SubscriptionService) Normalize(ctx context.Context, o domain.Offering, rows []domain.RawRow) (dataprocessing.Result, error) {
	_, span := s.tracer.Start(ctx, "subscription.normalize")
	defer span.End()
	return s.engine.Analyze(dataprocessing.MetaFor(o), rows, s.now())
}
