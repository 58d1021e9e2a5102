package postgres

import (
	"fmt"
	"net/url"

	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/config"
)

// BuildConnString builds a PostgreSQL connection string from config.
func BuildConnString(cfg config.DBConfig) string {
	// URL-encode password to handle special characters
	escapedPassword := url.QueryEscape(cfg.Password)

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(cfg.User),
		escapedPassword,
		cfg.Host,
		cfg.Port,
		cfg.Database,
		sslMode,
	)
}
