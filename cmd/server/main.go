package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/app"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/config"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/pkg/contracts"
)

func main() {
	configFile := flag.String("config", "", "path to config.yaml (default: config.yaml or configs/config.yaml)")
	port := flag.Int("port", 0, "listen port (default from config)")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println(contracts.GetFullVersionString())
		return
	}

	var (
		cfg *config.Config
		err error
	)
	if *configFile != "" {
		cfg, err = config.LoadFile(*configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	// The server only reads the store; sources stay unset.
	application, err := app.NewApplication(context.Background(), cfg, app.WithSources())
	if err != nil {
		slog.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
