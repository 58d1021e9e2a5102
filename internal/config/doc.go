// Package config loads the scraper configuration.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//  1. Environment variables (highest priority)
//  2. A YAML file: $GAINIPO_CONFIG, config.yaml or configs/config.yaml
//  3. Default values (lowest priority)
//
// # Environment Variables
//
// Variables are namespaced with GAINIPO_ and follow the struct nesting:
//
//	GAINIPO_SERVER_PORT=8080
//	GAINIPO_LOGGING_LEVEL=debug
//	GAINIPO_FETCH_RPS=0.5
//	GAINIPO_STORAGE_DRIVER=postgres
//	GAINIPO_STORAGE_POSTGRES_PGHOST=db.internal
//	GAINIPO_SCHEDULE_INTERVAL=10m
//	GAINIPO_NORMALIZER_ALIASES=shareholder:Retail,policyholder:Employee
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	paths, err := cfg.ResolvePaths("")
package config
