package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Roshiii-8511/gainipo-subscription-scraper/pkg/contracts/domain"
)

// MemoryStore is a process-local SnapshotStore, used for dry runs and
// tests.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string][]memDoc // offering id -> history, capture order
	offerings map[string]domain.TrackedOffering
}

type memDoc struct {
	id   string
	snap domain.SubscriptionSnapshot
}

var _ SnapshotStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string][]memDoc),
		offerings: make(map[string]domain.TrackedOffering),
	}
}

// Save implements SnapshotStore.
func (m *MemoryStore) Save(ctx context.Context, snap domain.SubscriptionSnapshot) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := Validate(snap); err != nil {
		return "", err
	}
	id := DocID(snap.OfferingID, snap.CapturedAt)

	m.mu.Lock()
	defer m.mu.Unlock()

	docs := m.snapshots[snap.OfferingID]
	replaced := false
	for i := range docs {
		if docs[i].id == id {
			docs[i].snap = snap
			replaced = true
			break
		}
	}
	if !replaced {
		docs = append(docs, memDoc{id: id, snap: snap})
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].snap.CapturedAt.Before(docs[j].snap.CapturedAt)
	})
	m.snapshots[snap.OfferingID] = docs

	next := Tracked(snap, id)
	if prev, ok := m.offerings[snap.OfferingID]; ok && prev.LastCapturedAt.After(snap.CapturedAt) {
		next.LatestID = prev.LatestID
		next.LastCapturedAt = prev.LastCapturedAt
	}
	m.offerings[snap.OfferingID] = next
	return id, nil
}

// Latest implements SnapshotStore.
func (m *MemoryStore) Latest(ctx context.Context, offeringID string) (domain.SubscriptionSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.offerings[offeringID]
	if !ok {
		return domain.SubscriptionSnapshot{}, fmt.Errorf("latest %s: %w", offeringID, ErrNotFound)
	}
	for _, d := range m.snapshots[offeringID] {
		if d.id == o.LatestID {
			return d.snap, nil
		}
	}
	return domain.SubscriptionSnapshot{}, fmt.Errorf("latest %s: %w", offeringID, ErrNotFound)
}

// History implements SnapshotStore.
func (m *MemoryStore) History(ctx context.Context, offeringID string, limit int) ([]domain.SubscriptionSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := m.snapshots[offeringID]
	if limit > 0 && len(docs) > limit {
		docs = docs[len(docs)-limit:]
	}
	out := make([]domain.SubscriptionSnapshot, len(docs))
	for i, d := range docs {
		out[i] = d.snap
	}
	return out, nil
}

// ActiveOfferings implements SnapshotStore.
func (m *MemoryStore) ActiveOfferings(ctx context.Context) ([]domain.TrackedOffering, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.TrackedOffering
	for _, o := range m.offerings {
		if o.Status == domain.OfferingStatusActive {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OfferingID < out[j].OfferingID })
	return out, nil
}

// Archive implements SnapshotStore.
func (m *MemoryStore) Archive(ctx context.Context, offeringID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.offerings[offeringID]
	if !ok {
		return fmt.Errorf("archive %s: %w", offeringID, ErrNotFound)
	}
	o.Status = domain.OfferingStatusArchived
	m.offerings[offeringID] = o
	return nil
}

// Close implements SnapshotStore.
func (m *MemoryStore) Close() error { return nil }
