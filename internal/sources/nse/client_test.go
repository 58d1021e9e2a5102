package nse

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/config"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/dataprocessing"
	apperrors "github.com/Roshiii-8511/gainipo-subscription-scraper/internal/errors"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/shared/testutil"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/pkg/contracts/domain"
)

type fakeFetcher struct {
	mu      sync.Mutex
	calls   []fetchCall
	payload map[string]string
	err     error
}

type fetchCall struct {
	pages   []string
	apiPath string
}

func (f *fakeFetcher) FetchJSON(_ context.Context, pages []string, apiPath string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fetchCall{pages: pages, apiPath: apiPath})
	if f.err != nil {
		return nil, f.err
	}
	for prefix, body := range f.payload {
		if strings.HasPrefix(apiPath, prefix) {
			return []byte(body), nil
		}
	}
	return []byte(`<html>Access Denied</html>`), nil
}

func newTestClient(f Fetcher) *Client {
	cfg := config.Default()
	cfg.Fetch.RPS = 0
	return NewClient(cfg.Sources, cfg.Fetch,
		WithFetcher(f),
		WithLogger(slog.New(slog.NewJSONHandler(io.Discard, nil))))
}

func TestClient_LiveOfferings(t *testing.T) {
	f := &fakeFetcher{payload: map[string]string{currentIssuesPath: testutil.NSECurrentIssuesJSON}}
	c := newTestClient(f)

	offerings, err := c.LiveOfferings(context.Background())
	require.NoError(t, err)
	require.Len(t, offerings, 2)

	assert.Equal(t, domain.Offering{
		ID:        "acme_infra_and_power_limited",
		Name:      "Acme Infra & Power Limited",
		Exchange:  domain.ExchangeNSE,
		Board:     domain.BoardMainboard,
		SourceID:  "ACMEINFRA",
		Series:    "EQ",
		DetailURL: "https://www.nseindia.com/market-data/issue-information?series=EQ&symbol=ACMEINFRA&type=Active",
	}, offerings[0])
	assert.Equal(t, domain.BoardSME, offerings[1].Board)

	require.Len(t, f.calls, 1)
	assert.Equal(t, []string{"https://www.nseindia.com/market-data/all-upcoming-issues-ipo"}, f.calls[0].pages)
}

func TestClient_FetchRowsBuildsSnapshot(t *testing.T) {
	f := &fakeFetcher{payload: map[string]string{"/api/issue-information-bid": testutil.NSEBidResponseJSON}}
	c := newTestClient(f)
	o := domain.Offering{ID: "sunrise", Name: "Sunrise", Exchange: domain.ExchangeNSE, SourceID: "SUNAGRO", Series: "SME", Board: domain.BoardSME}

	rows, err := c.FetchRows(context.Background(), o)
	require.NoError(t, err)
	require.Len(t, rows, 6)

	require.Len(t, f.calls, 1)
	assert.Equal(t, "/api/issue-information-bid?series=SME&symbol=SUNAGRO", f.calls[0].apiPath)
	assert.Equal(t, "https://www.nseindia.com/market-data/issue-information?series=SME&symbol=SUNAGRO&type=Active", f.calls[0].pages[1])

	snap, err := dataprocessing.NewEngine().Build(dataprocessing.MetaFor(o), rows, time.Now())
	require.NoError(t, err)
	assert.Equal(t, []domain.Category{
		domain.CategoryQIB, domain.CategoryNII, domain.CategoryBNII, domain.CategorySNII, domain.CategoryRetail,
	}, snap.Categories.Keys())
	assert.Equal(t, int64(1400000), snap.Total.SharesOffered)
	assert.Equal(t, int64(2050000), snap.Total.SharesBid)
	assert.Equal(t, 1.46, snap.Total.SubscriptionRatio)
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name     string
		fetcher  *fakeFetcher
		offering domain.Offering
		wantType apperrors.ErrorType
	}{
		{
			name:     "browser failure is a network error",
			fetcher:  &fakeFetcher{err: errors.New("chrome not found")},
			offering: domain.Offering{ID: "x", SourceID: "X"},
			wantType: apperrors.ErrTypeNetwork,
		},
		{
			name:     "bot wall html is a parsing error",
			fetcher:  &fakeFetcher{},
			offering: domain.Offering{ID: "x", SourceID: "X"},
			wantType: apperrors.ErrTypeParsing,
		},
		{
			name:     "missing symbol",
			fetcher:  &fakeFetcher{},
			offering: domain.Offering{ID: "x"},
			wantType: apperrors.ErrTypeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestClient(tt.fetcher).BidRecords(context.Background(), tt.offering)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, tt.wantType), err.Error())
		})
	}
}

func TestClient_DefaultsSeriesToEQ(t *testing.T) {
	f := &fakeFetcher{payload: map[string]string{"/api/": `{"data":[]}`}}
	records, err := newTestClient(f).BidRecords(context.Background(), domain.Offering{ID: "x", SourceID: "ABC"})
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, "/api/issue-information-bid?series=EQ&symbol=ABC", f.calls[0].apiPath)
}

func TestFetchScript(t *testing.T) {
	js := fetchScript(`/api/issue-information-bid?symbol=A"B`)
	assert.Contains(t, js, `fetch("/api/issue-information-bid?symbol=A\"B"`)
	assert.Contains(t, js, `credentials: "include"`)
}

func TestChromeFetcher_AllocatorOptions(t *testing.T) {
	f := NewChromeFetcher(true, "/opt/chrome", "UA", time.Second, time.Second)
	assert.Greater(t, len(f.allocatorOptions()), 3)
}
