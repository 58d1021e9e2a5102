// Package bse reads subscription data from the BSE public-issue pages:
// the live issue list and the cumulative demand schedule of each issue.
// It returns table cells only; classification and normalization belong to
// the dataprocessing engine.
package bse

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/config"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/dataprocessing"
	apperrors "github.com/Roshiii-8511/gainipo-subscription-scraper/internal/errors"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/pkg/contracts/domain"
)

// maxBodySize bounds a downloaded page.
const maxBodySize = 8 << 20

// StatusError is a non-2xx response from the exchange.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bse: %s returned %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Retryable reports server-side and throttling failures.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Client fetches BSE pages with a browser user agent, a shared token
// bucket and bounded retries.
type Client struct {
	baseURL       string
	issueListPath string
	demandPath    string
	userAgent     string

	httpClient *http.Client
	limiter    *rate.Limiter
	retries    int
	retryDelay time.Duration
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client (tests point it at httptest).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
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

// NewClient builds a client from the sources and fetch configuration.
func NewClient(src config.SourcesConfig, fetch config.FetchConfig, opts ...Option) *Client {
	burst := fetch.Burst
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if fetch.RPS > 0 {
		limit = rate.Limit(fetch.RPS)
	}
	c := &Client{
		baseURL:       src.BSE.BaseURL,
		issueListPath: src.BSE.IssueListPath,
		demandPath:    src.BSE.DemandPath,
		userAgent:     src.UserAgent,
		httpClient:    &http.Client{Timeout: fetch.Timeout},
		limiter:       rate.NewLimiter(limit, burst),
		retries:       fetch.Retries,
		retryDelay:    fetch.RetryDelay,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", "bse_client"))
	return c
}

// Exchange identifies the source.
func (c *Client) Exchange() domain.Exchange {
	return domain.ExchangeBSE
}

// LiveOfferings returns the IPOs currently open for bidding.
func (c *Client) LiveOfferings(ctx context.Context) ([]domain.Offering, error) {
	var offerings []domain.Offering
	err := c.get(ctx, c.baseURL+c.issueListPath, func(body io.Reader) error {
		var perr error
		offerings, perr = ParseLiveIssues(body, c.baseURL)
		return perr
	})
	if err != nil {
		return nil, err
	}
	c.logger.InfoContext(ctx, "live offerings discovered", slog.Int("count", len(offerings)))
	return offerings, nil
}

// DemandScheduleURL is the cumulative demand schedule page of an issue.
func (c *Client) DemandScheduleURL(sourceID string) string {
	q := url.Values{}
	q.Set("ID", sourceID)
	q.Set("status", "L")
	return c.baseURL + c.demandPath + "?" + q.Encode()
}

// DemandSchedule fetches the raw cell table of an offering.
func (c *Client) DemandSchedule(ctx context.Context, o domain.Offering) ([][]string, error) {
	if o.SourceID == "" {
		return nil, apperrors.NewAppValidationError("offering has no BSE issue id", nil).
			WithContext("offering_id", o.ID)
	}
	var table [][]string
	err := c.get(ctx, c.DemandScheduleURL(o.SourceID), func(body io.Reader) error {
		var perr error
		table, perr = ParseDemandSchedule(body)
		return perr
	})
	if err != nil {
		return nil, err
	}
	return table, nil
}

// FetchRows fetches the demand schedule as engine rows.
func (c *Client) FetchRows(ctx context.Context, o domain.Offering) ([]domain.RawRow, error) {
	table, err := c.DemandSchedule(ctx, o)
	if err != nil {
		return nil, err
	}
	return dataprocessing.RowsFromCells(table), nil
}

// get performs a rate-limited GET with linear backoff, handing the body
// to parse. Parse failures are not retried.
func (c *Client) get(ctx context.Context, target string, parse func(io.Reader) error) error {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			wait := c.retryDelay * time.Duration(attempt)
			c.logger.DebugContext(ctx, "retrying request",
				slog.Int("attempt", attempt),
				slog.Duration("backoff", wait),
				slog.String("url", target))
			select {
			case <-ctx.Done():
				return apperrors.NewNetworkError("bse request cancelled", ctx.Err())
			case <-time.After(wait):
			}
		}

		err := c.once(ctx, target, parse)
		if err == nil {
			return nil
		}
		lastErr = err
		if !apperrors.Retryable(err) || ctx.Err() != nil {
			return err
		}
	}
	c.logger.WarnContext(ctx, "bse request failed after retries",
		slog.String("url", target),
		slog.Int("attempts", c.retries+1),
		slog.String("error", lastErr.Error()))
	return lastErr
}

func (c *Client) once(ctx context.Context, target string, parse func(io.Reader) error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return apperrors.NewNetworkError("bse rate limiter", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return apperrors.NewAppValidationError("build bse request", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", c.baseURL+"/")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.NewNetworkError("bse request", err).WithContext("url", target)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		serr := &StatusError{StatusCode: resp.StatusCode, URL: target}
		if serr.Retryable() {
			return apperrors.NewNetworkError("bse upstream status", serr)
		}
		if resp.StatusCode == http.StatusNotFound {
			return apperrors.NewNotFoundError("bse page", serr)
		}
		return apperrors.NewParsingError("bse unexpected status", serr)
	}

	if err := parse(io.LimitReader(resp.Body, maxBodySize)); err != nil {
		return apperrors.NewParsingError("bse page", err).WithContext("url", target)
	}
	return nil
}
