// Package storetest holds the behaviour suite every SnapshotStore backend
// must pass.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/storage"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/pkg/contracts/domain"
)

// Snapshot returns a valid snapshot of offeringID captured at t.
func Snapshot(offeringID string, t time.Time, retailBid int64) domain.SubscriptionSnapshot {
	qib := domain.CategoryFigures{SharesOffered: 100, SharesBid: 250, SubscriptionRatio: 2.5}
	retail := domain.CategoryFigures{SharesOffered: 200, SharesBid: retailBid, SubscriptionRatio: float64(retailBid*100/200) / 100}
	return domain.SubscriptionSnapshot{
		OfferingID:   offeringID,
		OfferingName: "Acme Infra Ltd",
		Exchange:     domain.ExchangeBSE,
		Board:        domain.BoardMainboard,
		Categories: domain.NewCategories(
			domain.CategoryEntry{Category: domain.CategoryQIB, CategoryFigures: qib},
			domain.CategoryEntry{Category: domain.CategoryRetail, CategoryFigures: retail},
		),
		Total: domain.CategoryFigures{
			SharesOffered:     300,
			SharesBid:         250 + retailBid,
			SubscriptionRatio: float64((250+retailBid)*100/300) / 100,
		},
		CapturedAt: t,
		Source:     domain.ExchangeBSE,
	}
}

// Run exercises a fresh store returned by open for every subtest.
func Run(t *testing.T, open func(t *testing.T) storage.SnapshotStore) {
	ctx := context.Background()
	base := time.Date(2024, 1, 15, 6, 0, 0, 0, time.UTC) // 11:30 IST

	t.Run("save returns IST minute doc id", func(t *testing.T) {
		s := open(t)
		id, err := s.Save(ctx, Snapshot("acme_infra_ltd", base, 100))
		require.NoError(t, err)
		assert.Equal(t, "acme_infra_ltd__20240115_1130", id)
	})

	t.Run("latest follows newest capture", func(t *testing.T) {
		s := open(t)
		_, err := s.Save(ctx, Snapshot("acme", base, 100))
		require.NoError(t, err)
		_, err = s.Save(ctx, Snapshot("acme", base.Add(15*time.Minute), 300))
		require.NoError(t, err)
		// An older sample saved late must not replace the latest.
		_, err = s.Save(ctx, Snapshot("acme", base.Add(-15*time.Minute), 50))
		require.NoError(t, err)

		got, err := s.Latest(ctx, "acme")
		require.NoError(t, err)
		assert.True(t, got.CapturedAt.Equal(base.Add(15*time.Minute)))
		retail, ok := got.Categories.Get(domain.CategoryRetail)
		require.True(t, ok)
		assert.Equal(t, int64(300), retail.SharesBid)
		assert.Equal(t, []domain.Category{domain.CategoryQIB, domain.CategoryRetail}, got.Categories.Keys())
	})

	t.Run("same minute save replaces", func(t *testing.T) {
		s := open(t)
		_, err := s.Save(ctx, Snapshot("acme", base, 100))
		require.NoError(t, err)
		_, err = s.Save(ctx, Snapshot("acme", base.Add(20*time.Second), 180))
		require.NoError(t, err)

		hist, err := s.History(ctx, "acme", 0)
		require.NoError(t, err)
		require.Len(t, hist, 1)
		retail, _ := hist[0].Categories.Get(domain.CategoryRetail)
		assert.Equal(t, int64(180), retail.SharesBid)
	})

	t.Run("history is oldest first and limited to newest", func(t *testing.T) {
		s := open(t)
		for i := 0; i < 4; i++ {
			_, err := s.Save(ctx, Snapshot("acme", base.Add(time.Duration(i)*time.Hour), int64(100+i)))
			require.NoError(t, err)
		}

		all, err := s.History(ctx, "acme", 0)
		require.NoError(t, err)
		require.Len(t, all, 4)
		assert.True(t, all[0].CapturedAt.Equal(base))

		last2, err := s.History(ctx, "acme", 2)
		require.NoError(t, err)
		require.Len(t, last2, 2)
		assert.True(t, last2[0].CapturedAt.Equal(base.Add(2*time.Hour)))
		assert.True(t, last2[1].CapturedAt.Equal(base.Add(3*time.Hour)))
	})

	t.Run("unknown offering", func(t *testing.T) {
		s := open(t)
		_, err := s.Latest(ctx, "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)

		hist, err := s.History(ctx, "missing", 5)
		require.NoError(t, err)
		assert.Empty(t, hist)

		assert.ErrorIs(t, s.Archive(ctx, "missing"), storage.ErrNotFound)
	})

	t.Run("archive hides offering until next save", func(t *testing.T) {
		s := open(t)
		_, err := s.Save(ctx, Snapshot("acme", base, 100))
		require.NoError(t, err)
		_, err = s.Save(ctx, Snapshot("beta", base, 100))
		require.NoError(t, err)

		active, err := s.ActiveOfferings(ctx)
		require.NoError(t, err)
		require.Len(t, active, 2)
		assert.Equal(t, "acme", active[0].OfferingID)
		assert.Equal(t, domain.OfferingStatusActive, active[0].Status)
		assert.Equal(t, "acme__20240115_1130", active[0].LatestID)

		require.NoError(t, s.Archive(ctx, "acme"))
		active, err = s.ActiveOfferings(ctx)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, "beta", active[0].OfferingID)

		// History survives archiving.
		_, err = s.Latest(ctx, "acme")
		assert.NoError(t, err)

		_, err = s.Save(ctx, Snapshot("acme", base.Add(time.Hour), 120))
		require.NoError(t, err)
		active, err = s.ActiveOfferings(ctx)
		require.NoError(t, err)
		assert.Len(t, active, 2)
	})

	t.Run("invalid snapshot rejected", func(t *testing.T) {
		s := open(t)
		snap := Snapshot("acme", base, 100)
		snap.Categories = domain.NewCategories()
		_, err := s.Save(ctx, snap)
		assert.Error(t, err)

		snap = Snapshot("", base, 100)
		_, err = s.Save(ctx, snap)
		assert.Error(t, err)

		active, err := s.ActiveOfferings(ctx)
		require.NoError(t, err)
		assert.Empty(t, active)
	})
}
