package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/storage"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/pkg/contracts/domain"
)

type failingStore struct{ storage.SnapshotStore }

func (failingStore) ActiveOfferings(context.Context) ([]domain.TrackedOffering, error) {
	return nil, errors.New("database is locked")
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name        string
		store       storage.SnapshotStore
		status      string
		storeStatus string
	}{
		{"healthy store", storage.NewMemoryStore(), "ok", "ready"},
		{"failing store", failingStore{}, "degraded", "not_ready"},
		{"no store", nil, "degraded", "not_ready"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs := NewHealthService("1.2.3", tt.store, nil)
			got := hs.HealthCheck(context.Background())
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, "1.2.3", got.Version)
			assert.Equal(t, tt.storeStatus, got.Services["store"].Status)
		})
	}
}
