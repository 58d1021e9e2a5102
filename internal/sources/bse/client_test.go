package bse

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/config"
	apperrors "github.com/Roshiii-8511/gainipo-subscription-scraper/internal/errors"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/shared/testutil"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/pkg/contracts/domain"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.Sources.BSE.BaseURL = srv.URL
	cfg.Fetch.RPS = 0
	cfg.Fetch.Retries = 2
	cfg.Fetch.RetryDelay = time.Millisecond
	cfg.Fetch.Timeout = 2 * time.Second

	return NewClient(cfg.Sources, cfg.Fetch,
		WithHTTPClient(srv.Client()),
		WithLogger(slog.New(slog.NewJSONHandler(io.Discard, nil))))
}

func TestClient_LiveOfferings(t *testing.T) {
	var ua string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/publicissue.html", r.URL.Path)
		ua = r.UserAgent()
		_, _ = io.WriteString(w, testutil.BSEIssueListHTML)
	}))

	offerings, err := c.LiveOfferings(context.Background())
	require.NoError(t, err)
	assert.Len(t, offerings, 2)
	assert.Contains(t, ua, "Chrome/122")
	assert.Equal(t, domain.ExchangeBSE, c.Exchange())
}

func TestClient_FetchRows(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets/publicIssues/CummDemandSchedule.aspx", r.URL.Path)
		assert.Equal(t, "4567", r.URL.Query().Get("ID"))
		assert.Equal(t, "L", r.URL.Query().Get("status"))
		_, _ = io.WriteString(w, testutil.BSEDemandScheduleHTML)
	}))

	rows, err := c.FetchRows(context.Background(), domain.Offering{ID: "acme", SourceID: "4567"})
	require.NoError(t, err)
	require.Len(t, rows, 8)
	assert.Equal(t, "Qualified Institutional Buyers (QIBs)", rows[1].Cells[1])
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, testutil.BSEDemandScheduleHTML)
	}))

	table, err := c.DemandSchedule(context.Background(), domain.Offering{ID: "acme", SourceID: "1"})
	require.NoError(t, err)
	assert.NotEmpty(t, table)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := c.DemandSchedule(context.Background(), domain.Offering{ID: "acme", SourceID: "1"})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNetwork))
	assert.Equal(t, int32(3), calls.Load(), "one attempt plus two retries")

	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusServiceUnavailable, serr.StatusCode)
}

func TestClient_DoesNotRetryDeterministicFailures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantType apperrors.ErrorType
	}{
		{name: "not found", status: http.StatusNotFound, wantType: apperrors.ErrTypeNotFound},
		{name: "forbidden", status: http.StatusForbidden, wantType: apperrors.ErrTypeParsing},
		{name: "page without table", status: http.StatusOK, body: "<html><p>closed</p></html>", wantType: apperrors.ErrTypeParsing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))

			_, err := c.DemandSchedule(context.Background(), domain.Offering{ID: "acme", SourceID: "1"})
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, tt.wantType), err.Error())
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestClient_MissingSourceID(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())
	_, err := c.DemandSchedule(context.Background(), domain.Offering{ID: "acme"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
}

func TestClient_ContextCancelled(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.LiveOfferings(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_DemandScheduleURL(t *testing.T) {
	c := NewClient(config.Default().Sources, config.Default().Fetch)
	assert.Equal(t,
		"https://www.bseindia.com/markets/publicIssues/CummDemandSchedule.aspx?ID=4567&status=L",
		c.DemandScheduleURL("4567"))
}
