package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/app"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/config"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/exporter"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/infrastructure"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/middleware"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/storage"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/pkg/contracts/domain"
)

type options struct {
	configFile string
	offering   string
	all        bool
	format     exporter.Format
	output     string
	limit      int
}

func parseFlags(args []string) (options, error) {
	var (
		opts   options
		format string
	)
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.StringVar(&opts.configFile, "config", "", "path to config.yaml (default: config.yaml or configs/config.yaml)")
	fs.StringVar(&opts.offering, "offering", "", "offering id or security name to export")
	fs.BoolVar(&opts.all, "all", false, "export every active offering")
	fs.StringVar(&format, "format", "csv", "output format: csv | xlsx")
	fs.StringVar(&opts.output, "output", "", "output file, - for stdout (default: exports dir)")
	fs.IntVar(&opts.limit, "limit", 0, "export only the most recent N snapshots (0 = all)")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	f, err := exporter.ParseFormat(format)
	if err != nil {
		return opts, err
	}
	opts.format = f

	switch {
	case opts.offering == "" && !opts.all:
		return opts, fmt.Errorf("one of -offering or -all is required")
	case opts.offering != "" && opts.all:
		return opts, fmt.Errorf("-offering and -all are mutually exclusive")
	case opts.all && opts.output == "-":
		return opts, fmt.Errorf("-all writes one file per offering and cannot target stdout")
	case opts.limit < 0:
		return opts, fmt.Errorf("limit must not be negative")
	}

	// Accept a security name as well as an id.
	if opts.offering != "" && !middleware.ValidOfferingID(opts.offering) {
		opts.offering = domain.Slug(opts.offering)
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
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
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer infrastructure.CloseLogFile()

	paths, err := cfg.ResolvePaths("")
	if err != nil {
		return err
	}
	if err := paths.EnsureDirectories(); err != nil {
		return err
	}

	store, err := app.OpenStore(ctx, cfg, paths, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	written, err := export(ctx, store, paths, opts, os.Stdout, time.Now())
	for _, path := range written {
		logger.Info("history exported", slog.String("path", path), slog.String("format", string(opts.format)))
	}
	return err
}

// export writes the requested histories and returns the files written.
func export(ctx context.Context, store storage.SnapshotStore, paths *config.Paths, opts options, stdout io.Writer, now time.Time) ([]string, error) {
	ids := []string{opts.offering}
	if opts.all {
		active, err := store.ActiveOfferings(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing offerings: %w", err)
		}
		ids = ids[:0]
		for _, o := range active {
			ids = append(ids, o.OfferingID)
		}
	}

	var written []string
	for _, id := range ids {
		snaps, err := store.History(ctx, id, opts.limit)
		if err != nil {
			return written, fmt.Errorf("loading history of %s: %w", id, err)
		}
		if len(snaps) == 0 {
			return written, fmt.Errorf("no snapshots stored for %s", id)
		}

		if opts.output == "-" {
			if err := exporter.Write(stdout, opts.format, snaps); err != nil {
				return written, err
			}
			continue
		}

		path := paths.ExportPath(id, now.In(storage.IST), string(opts.format))
		if opts.output != "" && !opts.all {
			if path, err = filepath.Abs(opts.output); err != nil {
				return written, err
			}
		}
		if err := writeFile(paths, path, opts.format, snaps); err != nil {
			return written, fmt.Errorf("exporting %s: %w", id, err)
		}
		written = append(written, path)
	}
	return written, nil
}

func writeFile(paths *config.Paths, path string, format exporter.Format, snaps []domain.SubscriptionSnapshot) error {
	if format == exporter.FormatCSV {
		_, err := exporter.NewCSVWriter(paths).WriteHistory(path, snaps)
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := exporter.WriteXLSX(f, snaps); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
