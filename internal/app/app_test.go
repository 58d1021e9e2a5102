package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/config"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/dataprocessing"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/services"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/storage"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/storage/sqlite"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/pkg/contracts/domain"
)

type stubSource struct {
	exchange  domain.Exchange
	offerings []domain.Offering
	rows      []domain.RawRow
}

func (s *stubSource) Exchange() domain.Exchange { return s.exchange }

func (s *stubSource) LiveOfferings(context.Context) ([]domain.Offering, error) {
	return s.offerings, nil
}

func (s *stubSource) FetchRows(context.Context, domain.Offering) ([]domain.RawRow, error) {
	return s.rows, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(dir, "data")
	cfg.Paths.ExportsDir = filepath.Join(dir, "data", "exports")
	cfg.Paths.LogsDir = filepath.Join(dir, "logs")
	cfg.Storage.Driver = "memory"
	cfg.Storage.SQLitePath = filepath.Join(dir, "data", "subscriptions.db")
	cfg.Telemetry.MetricsEnabled = false
	cfg.Server.RateLimit.Enabled = false
	return cfg
}

func acmeSource() *stubSource {
	return &stubSource{
		exchange: domain.ExchangeBSE,
		offerings: []domain.Offering{{
			ID:       "acme_infra_ltd",
			Name:     "Acme Infra Ltd",
			Exchange: domain.ExchangeBSE,
			Board:    domain.BoardMainboard,
			SourceID: "6012",
		}},
		rows: dataprocessing.RowsFromCells([][]string{
			{"Sr. No", "Category", "No. of shares offered", "No. of shares bid", "No. of times"},
			{"1", "Qualified Institutional Buyers", "1,00,000", "2,50,000", "2.50"},
			{"2", "Retail Individual Investors", "2,00,000", "3,00,000", "1.50"},
			{"", "Total", "3,00,000", "5,50,000", "1.83"},
		}),
	}
}

func newTestApp(t *testing.T, opts ...Option) *Application {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	a, err := NewApplication(context.Background(), testConfig(t), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func TestNewApplication_Wiring(t *testing.T) {
	a := newTestApp(t, WithSources(acmeSource()))

	assert.NotNil(t, a.Store)
	assert.NotNil(t, a.Engine)
	assert.NotNil(t, a.Subscriptions)
	assert.NotNil(t, a.Health)
	assert.NotNil(t, a.Router)
	require.NotNil(t, a.Server)
	assert.Equal(t, ":8080", a.Server.Addr)
	assert.DirExists(t, a.Paths.ExportsDir)
}

func TestRouter_PollThenServe(t *testing.T) {
	a := newTestApp(t, WithSources(acmeSource()))

	report, err := a.Subscriptions.PollOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Stored)

	t.Run("offerings", func(t *testing.T) {
		rec := httptest.NewRecorder()
		a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/offerings", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var offerings []domain.TrackedOffering
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &offerings))
		require.Len(t, offerings, 1)
		assert.Equal(t, "acme_infra_ltd", offerings[0].OfferingID)
	})

	t.Run("latest", func(t *testing.T) {
		rec := httptest.NewRecorder()
		a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/offerings/acme_infra_ltd/latest", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var snap domain.SubscriptionSnapshot
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
		assert.Equal(t, int64(300000), snap.Total.SharesOffered)
		assert.Equal(t, int64(550000), snap.Total.SharesBid)
		assert.Equal(t, 2, snap.Categories.Len())
	})

	t.Run("csv export", func(t *testing.T) {
		rec := httptest.NewRecorder()
		a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/offerings/acme_infra_ltd/export.csv", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "TOTAL")
	})

	t.Run("unknown offering", func(t *testing.T) {
		rec := httptest.NewRecorder()
		a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/offerings/nothing_here/latest", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	})
}

func TestRouter_HealthAndFallbacks(t *testing.T) {
	a := newTestApp(t, WithSources())

	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{"health", http.MethodGet, "/api/health", http.StatusOK},
		{"trailing slash", http.MethodGet, "/api/health/", http.StatusOK},
		{"unknown route", http.MethodGet, "/api/nope", http.StatusNotFound},
		{"bad offering id", http.MethodGet, "/api/offerings/Bad%20Id/latest", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			a.Router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
		})
	}
}

func TestRouter_PunctuatedNamesAreServable(t *testing.T) {
	for _, name := range []string{"Acme Infra Ltd.", "S.R. Foods (India) Limited"} {
		t.Run(name, func(t *testing.T) {
			src := acmeSource()
			src.offerings[0].Name = name
			src.offerings[0].ID = domain.Slug(name)
			a := newTestApp(t, WithSources(src))

			report, err := a.Subscriptions.PollOnce(context.Background())
			require.NoError(t, err)
			require.Equal(t, 1, report.Stored)

			for _, suffix := range []string{"latest", "history", "export.csv"} {
				rec := httptest.NewRecorder()
				a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/offerings/"+src.offerings[0].ID+"/"+suffix, nil))
				assert.Equal(t, http.StatusOK, rec.Code, "%s: %s", suffix, rec.Body.String())
			}
		})
	}
}

func TestRouter_Normalize(t *testing.T) {
	a := newTestApp(t, WithSources())

	body := `{"offering":{"name":"Zen Tech","exchange":"NSE","source_id":"ZEN"},
		"records":[{"category":"Retail Individual Investors(RII)","noOfShareOffered":1000,"noOfSharesBid":2500}]}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/normalize", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	a.Router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"Retail"`)
}

func TestRouter_NormalizeRejectsNonJSON(t *testing.T) {
	a := newTestApp(t, WithSources())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/normalize", strings.NewReader("category,offered"))
	req.Header.Set("Content-Type", "text/csv")
	a.Router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestStop_ClosesStore(t *testing.T) {
	cfg := testConfig(t)
	store, err := sqlite.Open(cfg.Storage.SQLitePath)
	require.NoError(t, err)

	a, err := NewApplication(context.Background(), cfg, WithLogger(quietLogger()), WithStore(store), WithSources())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Stop(ctx))

	_, err = store.ActiveOfferings(context.Background())
	assert.Error(t, err)
}

func TestOpenStore(t *testing.T) {
	logger := quietLogger()

	t.Run("memory", func(t *testing.T) {
		cfg := testConfig(t)
		paths, err := cfg.ResolvePaths("")
		require.NoError(t, err)

		store, err := OpenStore(context.Background(), cfg, paths, logger)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &storage.MemoryStore{}, store)
	})

	t.Run("sqlite", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Storage.Driver = "sqlite"
		paths, err := cfg.ResolvePaths("")
		require.NoError(t, err)
		require.NoError(t, paths.EnsureDirectories())

		store, err := OpenStore(context.Background(), cfg, paths, logger)
		require.NoError(t, err)
		defer store.Close()
		assert.FileExists(t, paths.SQLiteFile)
	})

	t.Run("unknown driver", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Storage.Driver = "dbase"
		paths, err := cfg.ResolvePaths("")
		require.NoError(t, err)

		_, err = OpenStore(context.Background(), cfg, paths, logger)
		assert.Error(t, err)
	})
}

func TestParseExchanges(t *testing.T) {
	tests := []struct {
		in      string
		want    []domain.Exchange
		wantErr bool
	}{
		{"", nil, false},
		{"bse", []domain.Exchange{domain.ExchangeBSE}, false},
		{"NSE, bse", []domain.Exchange{domain.ExchangeNSE, domain.ExchangeBSE}, false},
		{"bse,,", []domain.Exchange{domain.ExchangeBSE}, false},
		{"lse", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseExchanges(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildSources(t *testing.T) {
	exchanges := func(sources []services.Source) []domain.Exchange {
		var out []domain.Exchange
		for _, s := range sources {
			out = append(out, s.Exchange())
		}
		return out
	}

	cfg := config.Default()
	assert.Equal(t, []domain.Exchange{domain.ExchangeBSE, domain.ExchangeNSE}, exchanges(BuildSources(cfg, nil, quietLogger())))
	assert.Equal(t, []domain.Exchange{domain.ExchangeNSE}, exchanges(BuildSources(cfg, []domain.Exchange{domain.ExchangeNSE}, quietLogger())))

	cfg.Sources.NSE.Enabled = false
	assert.Equal(t, []domain.Exchange{domain.ExchangeBSE}, exchanges(BuildSources(cfg, nil, quietLogger())))
	assert.Empty(t, BuildSources(cfg, []domain.Exchange{domain.ExchangeNSE}, quietLogger()))
}
