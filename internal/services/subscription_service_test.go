package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/dataprocessing"
	apierrors "github.com/Roshiii-8511/gainipo-subscription-scraper/internal/errors"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/infrastructure"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/shared/testutil"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/storage"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/pkg/contracts/domain"
)

type fakeSource struct {
	exchange  domain.Exchange
	offerings []domain.Offering
	listErr   error
	rows      map[string][]domain.RawRow
	fetchErr  map[string]error

	mu      sync.Mutex
	fetched []string
}

func (f *fakeSource) Exchange() domain.Exchange { return f.exchange }

func (f *fakeSource) LiveOfferings(ctx context.Context) ([]domain.Offering, error) {
	return f.offerings, f.listErr
}

func (f *fakeSource) FetchRows(ctx context.Context, o domain.Offering) ([]domain.RawRow, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, o.ID)
	f.mu.Unlock()
	if err := f.fetchErr[o.ID]; err != nil {
		return nil, err
	}
	return f.rows[o.ID], nil
}

func offering(name string, ex domain.Exchange) domain.Offering {
	return domain.Offering{
		ID:       domain.Slug(name),
		Name:     name,
		Exchange: ex,
		Board:    domain.BoardMainboard,
		SourceID: "1",
	}
}

func demandRows(retailBid string) []domain.RawRow {
	return dataprocessing.RowsFromCells([][]string{
		{"Category", "No. of shares offered", "No. of shares bid", "No. of times"},
		{"QIB", "100", "250", "2.50"},
		{"Retail", "200", retailBid, ""},
		{"Total", "300", "999", "9.99"},
	})
}

var fixedNow = time.Date(2024, 1, 15, 6, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, store storage.SnapshotStore, sources ...Source) *SubscriptionService {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	return NewSubscriptionService(store, dataprocessing.NewEngine(dataprocessing.WithLogger(logger)), sources,
		WithClock(func() time.Time { return fixedNow }),
		WithConcurrency(2),
		WithServiceLogger(logger),
	)
}

func TestPollOnce_StoresSnapshots(t *testing.T) {
	acme := offering("Acme Infra Ltd", domain.ExchangeBSE)
	beta := offering("Beta Foods", domain.ExchangeBSE)
	src := &fakeSource{
		exchange:  domain.ExchangeBSE,
		offerings: []domain.Offering{acme, beta},
		rows: map[string][]domain.RawRow{
			acme.ID: demandRows("100"),
			beta.ID: demandRows("400"),
		},
	}
	store := storage.NewMemoryStore()
	svc := newTestService(t, store, src)

	report, err := svc.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Discovered)
	assert.Equal(t, 2, report.Stored)
	assert.Zero(t, report.Failed)
	assert.Equal(t, "acme_infra_ltd__20240115_1130", report.Results[0].DocID)

	snap, err := svc.Latest(context.Background(), beta.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(650), snap.Total.SharesBid)
	assert.Equal(t, 2.17, snap.Total.SubscriptionRatio)
	assert.Equal(t, domain.ExchangeBSE, snap.Source)
}

func TestPollOnce_FirstSourceWinsDuplicates(t *testing.T) {
	bse := &fakeSource{
		exchange:  domain.ExchangeBSE,
		offerings: []domain.Offering{offering("Acme Infra Ltd", domain.ExchangeBSE)},
		rows:      map[string][]domain.RawRow{"acme_infra_ltd": demandRows("100")},
	}
	nse := &fakeSource{
		exchange: domain.ExchangeNSE,
		offerings: []domain.Offering{
			offering("Acme Infra Ltd", domain.ExchangeNSE),
			offering("Sun Agro", domain.ExchangeNSE),
		},
		rows: map[string][]domain.RawRow{"sun_agro": demandRows("50")},
	}
	svc := newTestService(t, storage.NewMemoryStore(), bse, nse)

	report, err := svc.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Discovered)
	assert.Equal(t, []string{"acme_infra_ltd"}, bse.fetched)
	assert.Equal(t, []string{"sun_agro"}, nse.fetched)

	snap, err := svc.Latest(context.Background(), "acme_infra_ltd")
	require.NoError(t, err)
	assert.Equal(t, domain.ExchangeBSE, snap.Exchange)
}

func TestPollOnce_IsolatesFailures(t *testing.T) {
	ok := offering("Acme Infra Ltd", domain.ExchangeBSE)
	broken := offering("Broken Co", domain.ExchangeBSE)
	empty := offering("Empty Co", domain.ExchangeBSE)
	src := &fakeSource{
		exchange:  domain.ExchangeBSE,
		offerings: []domain.Offering{ok, broken, empty},
		rows: map[string][]domain.RawRow{
			ok.ID:    demandRows("100"),
			empty.ID: dataprocessing.RowsFromCells([][]string{{"Category", "Offered", "Bid"}}),
		},
		fetchErr: map[string]error{broken.ID: apierrors.NewNetworkError("bse down", errors.New("503"))},
	}
	svc := newTestService(t, storage.NewMemoryStore(), src)

	report, err := svc.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Stored)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.NoData)
	assert.NotEmpty(t, report.Results[1].Error)
	assert.True(t, report.Results[2].NoData)
}

func TestPollOnce_ArchivesOfferingsNoLongerLive(t *testing.T) {
	store := storage.NewMemoryStore()
	acme := offering("Acme Infra Ltd", domain.ExchangeBSE)
	gone := offering("Gone Ltd", domain.ExchangeBSE)
	sun := offering("Sun Agro", domain.ExchangeNSE)

	bse := &fakeSource{
		exchange:  domain.ExchangeBSE,
		offerings: []domain.Offering{acme, gone},
		rows:      map[string][]domain.RawRow{acme.ID: demandRows("100"), gone.ID: demandRows("100")},
	}
	nse := &fakeSource{
		exchange:  domain.ExchangeNSE,
		offerings: []domain.Offering{sun},
		rows:      map[string][]domain.RawRow{sun.ID: demandRows("100")},
	}
	svc := newTestService(t, store, bse, nse)
	_, err := svc.PollOnce(context.Background())
	require.NoError(t, err)

	// Next cycle: Gone Ltd closed on BSE and the NSE listing fails.
	bse.offerings = []domain.Offering{acme}
	nse.listErr = errors.New("browser crashed")
	report, err := svc.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{gone.ID}, report.Archived)
	assert.Contains(t, report.SourceErrors, domain.ExchangeNSE)

	active, err := svc.Offerings(context.Background())
	require.NoError(t, err)
	ids := make([]string, 0, len(active))
	for _, o := range active {
		ids = append(ids, o.OfferingID)
	}
	// Sun Agro stays active: its exchange could not be listed.
	assert.ElementsMatch(t, []string{acme.ID, sun.ID}, ids)
}

func TestPollOnce_AllSourcesDown(t *testing.T) {
	src := &fakeSource{exchange: domain.ExchangeBSE, listErr: errors.New("timeout")}
	svc := newTestService(t, storage.NewMemoryStore(), src)

	report, err := svc.PollOnce(context.Background())
	assert.ErrorIs(t, err, ErrNoSources)
	require.NotNil(t, report)
	assert.Contains(t, report.SourceErrors[domain.ExchangeBSE], "timeout")
}

func TestPollOnce_RecordsMetrics(t *testing.T) {
	metrics, err := infrastructure.CreateBusinessMetrics(nil)
	require.NoError(t, err)

	acme := offering("Acme Infra Ltd", domain.ExchangeBSE)
	src := &fakeSource{
		exchange:  domain.ExchangeBSE,
		offerings: []domain.Offering{acme},
		rows:      map[string][]domain.RawRow{acme.ID: demandRows("100")},
	}
	logger, _ := testutil.NewTestLogger(t)
	svc := NewSubscriptionService(storage.NewMemoryStore(), nil, []Source{src},
		WithMetrics(metrics), WithServiceLogger(logger))

	report, err := svc.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Stored)
}

func TestLatest_NotFound(t *testing.T) {
	svc := newTestService(t, storage.NewMemoryStore())

	_, err := svc.Latest(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apierrors.IsType(err, apierrors.ErrTypeNotFound))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestNormalize(t *testing.T) {
	svc := newTestService(t, storage.NewMemoryStore())
	o := offering("Acme Infra Ltd", domain.ExchangeNSE)

	res, err := svc.Normalize(context.Background(), o, demandRows("100"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Snapshot.Categories.Len())
	assert.Equal(t, 1, res.Diagnostics.HeaderRows)
	assert.Equal(t, 1, res.Diagnostics.TotalRows)

	_, err = svc.Normalize(context.Background(), o, nil)
	assert.ErrorIs(t, err, dataprocessing.ErrNoUsableData)
}

func TestHistory_NegativeLimit(t *testing.T) {
	svc := newTestService(t, storage.NewMemoryStore())

	_, err := svc.History(context.Background(), "acme", -1)
	assert.ErrorIs(t, err, ErrInvalidLimit)
	assert.True(t, apierrors.IsType(err, apierrors.ErrTypeValidation))
}
