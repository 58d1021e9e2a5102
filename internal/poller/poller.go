package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/infrastructure"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/schedule"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/services"
)

// Cycler runs one poll cycle.
type Cycler interface {
	PollOnce(ctx context.Context) (*services.CycleReport, error)
}

// CyclerFunc is a function adapter for Cycler.
type CyclerFunc func(ctx context.Context) (*services.CycleReport, error)

func (f CyclerFunc) PollOnce(ctx context.Context) (*services.CycleReport, error) {
	return f(ctx)
}

// Config holds poller configuration.
type Config struct {
	Interval     time.Duration // time between cycles (default: 15m)
	Timeout      time.Duration // upper bound for one cycle, 0 for none
	IgnoreWindow bool          // poll outside market hours too
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{Interval: 15 * time.Minute}
}

// Poller runs poll cycles on a fixed interval while the market window is
// open.
type Poller struct {
	cfg    Config
	cycler Cycler
	window *schedule.Window
	now    func() time.Time
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a poller. A nil window polls at all times.
func New(cfg Config, cycler Cycler, window *schedule.Window, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	return &Poller{
		cfg:    cfg,
		cycler: cycler,
		window: window,
		now:    time.Now,
		logger: logger.With(slog.String("component", "poller")),
	}
}

// Start begins the polling loop in the background.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(p.ctx)
	}()

	p.logger.Info("subscription poller started",
		slog.Duration("interval", p.cfg.Interval),
		slog.Bool("ignore_market_hours", p.cfg.IgnoreWindow))
	return nil
}

// Stop cancels the loop and waits for the running cycle to finish.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("subscription poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run polls in the foreground until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	p.run(ctx)
	if err := ctx.Err(); !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (p *Poller) run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	p.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick runs one cycle if the market window is open. It reports whether
// a cycle ran.
func (p *Poller) Tick(ctx context.Context) (*services.CycleReport, bool) {
	now := p.now()
	if !p.cfg.IgnoreWindow && p.window != nil && !p.window.Contains(now) {
		p.logger.DebugContext(ctx, "outside market hours, cycle skipped",
			slog.Time("next_open", p.window.NextOpen(now)))
		return nil, false
	}

	// Each cycle logs under its own trace id.
	ctx = infrastructure.ContextWithTraceID(ctx)
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	report, err := p.cycler.PollOnce(ctx)
	if err != nil {
		p.logger.ErrorContext(ctx, "poll cycle failed", slog.String("error", err.Error()))
	}
	return report, true
}
