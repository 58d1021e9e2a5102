// Package nse reads subscription data from the NSE issue-information API.
// The API only answers browsers that hold the cookies set by the public
// pages, so requests run inside a headless Chrome session.
package nse

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/config"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/dataprocessing"
	apperrors "github.com/Roshiii-8511/gainipo-subscription-scraper/internal/errors"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/pkg/contracts/domain"
)

const (
	upcomingIssuesPath = "/market-data/all-upcoming-issues-ipo"
	currentIssuesPath  = "/api/ipo-current-issue"
)

// Client fetches NSE offerings and bid tables.
type Client struct {
	baseURL  string
	fetcher  Fetcher
	limiter  *rate.Limiter
	sessions *semaphore.Weighted // one browser session at a time
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithFetcher replaces the browser fetcher.
func WithFetcher(f Fetcher) Option {
	return func(c *Client) {
		if f != nil {
			c.fetcher = f
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient builds a client backed by headless Chrome.
func NewClient(src config.SourcesConfig, fetch config.FetchConfig, opts ...Option) *Client {
	limit := rate.Inf
	if fetch.RPS > 0 {
		limit = rate.Limit(fetch.RPS)
	}
	c := &Client{
		baseURL:  src.NSE.BaseURL,
		fetcher:  NewChromeFetcher(src.NSE.Headless, src.NSE.ChromePath, src.UserAgent, src.NSE.PageWait, fetch.Timeout),
		limiter:  rate.NewLimiter(limit, 1),
		sessions: semaphore.NewWeighted(1),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", "nse_client"))
	return c
}

// Exchange identifies the source.
func (c *Client) Exchange() domain.Exchange {
	return domain.ExchangeNSE
}

// LiveOfferings returns the issues currently open for bidding.
func (c *Client) LiveOfferings(ctx context.Context) ([]domain.Offering, error) {
	data, err := c.fetch(ctx, []string{c.baseURL + upcomingIssuesPath}, currentIssuesPath)
	if err != nil {
		return nil, err
	}
	offerings, err := DecodeCurrentIssues(data, c.baseURL)
	if err != nil {
		return nil, apperrors.NewParsingError("nse current issues", err)
	}
	c.logger.InfoContext(ctx, "live offerings discovered", slog.Int("count", len(offerings)))
	return offerings, nil
}

// BidRecords fetches the category records of one issue.
func (c *Client) BidRecords(ctx context.Context, o domain.Offering) ([]domain.APIRecord, error) {
	if o.SourceID == "" {
		return nil, apperrors.NewAppValidationError("offering has no NSE symbol", nil).
			WithContext("offering_id", o.ID)
	}
	series := o.Series
	if series == "" {
		series = "EQ"
	}
	pages := []string{
		c.baseURL + upcomingIssuesPath,
		IssuePageURL(c.baseURL, o.SourceID, series),
	}
	data, err := c.fetch(ctx, pages, BidAPIPath(o.SourceID, series))
	if err != nil {
		return nil, err
	}
	records, err := DecodeBidResponse(data)
	if err != nil {
		return nil, apperrors.NewParsingError("nse bid response", err).WithContext("symbol", o.SourceID)
	}
	return records, nil
}

// FetchRows fetches the bid records of an offering as engine rows.
func (c *Client) FetchRows(ctx context.Context, o domain.Offering) ([]domain.RawRow, error) {
	records, err := c.BidRecords(ctx, o)
	if err != nil {
		return nil, err
	}
	return dataprocessing.RowsFromRecords(records), nil
}

func (c *Client) fetch(ctx context.Context, pages []string, apiPath string) ([]byte, error) {
	if err := c.sessions.Acquire(ctx, 1); err != nil {
		return nil, apperrors.NewNetworkError("nse browser slot", err)
	}
	defer c.sessions.Release(1)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperrors.NewNetworkError("nse rate limiter", err)
	}

	c.logger.DebugContext(ctx, "nse browser fetch",
		slog.Int("pages", len(pages)),
		slog.String("api_path", apiPath))

	data, err := c.fetcher.FetchJSON(ctx, pages, apiPath)
	if err != nil {
		return nil, apperrors.NewNetworkError(fmt.Sprintf("nse fetch %s", apiPath), err)
	}
	return data, nil
}
