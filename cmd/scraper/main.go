package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/app"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/config"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/infrastructure"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/poller"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/schedule"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/pkg/contracts"
)

type options struct {
	configFile        string
	once              bool
	interval          time.Duration
	exchanges         string
	ignoreMarketHours bool
	headless          bool
	timeout           time.Duration
	version           bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("scraper", flag.ContinueOnError)
	fs.StringVar(&opts.configFile, "config", "", "path to config.yaml (default: config.yaml or configs/config.yaml)")
	fs.BoolVar(&opts.once, "once", false, "run a single poll cycle and print its report")
	fs.DurationVar(&opts.interval, "interval", 0, "time between poll cycles (default from config)")
	fs.StringVar(&opts.exchanges, "exchange", "", "comma separated exchanges to poll: bse,nse (default all enabled)")
	fs.BoolVar(&opts.ignoreMarketHours, "ignore-market-hours", false, "poll outside the market-hours window")
	fs.BoolVar(&opts.headless, "headless", true, "run the NSE browser headless")
	fs.DurationVar(&opts.timeout, "cycle-timeout", 10*time.Minute, "upper bound for one poll cycle")
	fs.BoolVar(&opts.version, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.interval < 0 {
		return opts, fmt.Errorf("interval must not be negative")
	}
	return opts, nil
}

func loadConfig(opts options) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configFile != "" {
		cfg, err = config.LoadFile(opts.configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	cfg.Sources.NSE.Headless = opts.headless
	if opts.interval > 0 {
		cfg.Schedule.Interval = opts.interval
	}
	if opts.ignoreMarketHours {
		cfg.Schedule.Enforce = false
	}
	return cfg, nil
}

func main() {
	var logger *slog.Logger
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("PANIC RECOVERED: %v\n", r)
			fmt.Printf("Stack trace:\n%s\n", debug.Stack())
			if logger != nil {
				logger.Error("Scraper panicked",
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())))
			}
			os.Exit(1)
		}
	}()

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if opts.version {
		fmt.Println(contracts.GetFullVersionString())
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts, os.Stdout, &logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, stdout io.Writer, loggerOut **slog.Logger) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	exchanges, err := app.ParseExchanges(opts.exchanges)
	if err != nil {
		return err
	}

	a, err := app.NewApplication(ctx, cfg, app.WithExchanges(exchanges...))
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	*loggerOut = a.Logger
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			a.Logger.Error("close failed", slog.String("error", err.Error()))
		}
	}()

	window, err := schedule.NewWindow(cfg.Schedule)
	if err != nil {
		return fmt.Errorf("failed to build market window: %w", err)
	}

	if opts.once {
		if now := time.Now(); cfg.Schedule.Enforce && !window.Contains(now) {
			a.Logger.Info("outside market hours, nothing to do",
				slog.Time("next_open", window.NextOpen(now)))
			return nil
		}
		cycleCtx, cancel := context.WithTimeout(infrastructure.EnsureTraceID(ctx), opts.timeout)
		defer cancel()
		report, err := a.Subscriptions.PollOnce(cycleCtx)
		if report != nil {
			if perr := printReport(stdout, report); perr != nil {
				return perr
			}
		}
		return err
	}

	return poller.New(poller.Config{
		Interval:     cfg.Schedule.Interval,
		Timeout:      opts.timeout,
		IgnoreWindow: !cfg.Schedule.Enforce,
	}, a.Subscriptions, window, a.Logger).Run(ctx)
}

func printReport(w io.Writer, report any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
