package app

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/config"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/services"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/sources/bse"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/sources/nse"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/pkg/contracts/domain"
)

// ParseExchanges parses a comma separated exchange list ("bse,nse"). An
// empty string selects every exchange.
func ParseExchanges(s string) ([]domain.Exchange, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []domain.Exchange
	for _, part := range strings.Split(s, ",") {
		switch strings.ToUpper(strings.TrimSpace(part)) {
		case string(domain.ExchangeBSE):
			out = append(out, domain.ExchangeBSE)
		case string(domain.ExchangeNSE):
			out = append(out, domain.ExchangeNSE)
		case "":
		default:
			return nil, fmt.Errorf("unknown exchange %q", part)
		}
	}
	return out, nil
}

// BuildSources creates the enabled exchange sources, BSE first so it
// keeps offerings listed on both exchanges. A non-empty only list
// further restricts the set.
func BuildSources(cfg *config.Config, only []domain.Exchange, logger *slog.Logger) []services.Source {
	want := func(ex domain.Exchange) bool {
		if len(only) == 0 {
			return true
		}
		for _, o := range only {
			if o == ex {
				return true
			}
		}
		return false
	}

	var sources []services.Source
	if cfg.Sources.BSE.Enabled && want(domain.ExchangeBSE) {
		sources = append(sources, bse.NewClient(cfg.Sources, cfg.Fetch, bse.WithLogger(logger)))
	}
	if cfg.Sources.NSE.Enabled && want(domain.ExchangeNSE) {
		sources = append(sources, nse.NewClient(cfg.Sources, cfg.Fetch, nse.WithLogger(logger)))
	}
	return sources
}
