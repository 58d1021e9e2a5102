// Package storage defines the snapshot store and the document-id scheme
// shared by its backends.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	apierrors "github.com/Roshiii-8511/gainipo-subscription-scraper/internal/errors"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/pkg/contracts/domain"
)

// ErrNotFound is returned when an offering or snapshot is not stored.
var ErrNotFound = errors.New("storage: not found")

// SnapshotStore persists snapshots as an append-only history per offering
// plus a pointer to the latest one.
type SnapshotStore interface {
	// Save stores snap and moves the offering's latest pointer to it. A
	// second save in the same IST minute replaces the first. It returns the
	// document id.
	Save(ctx context.Context, snap domain.SubscriptionSnapshot) (string, error)

	// Latest returns the most recent snapshot of an offering.
	Latest(ctx context.Context, offeringID string) (domain.SubscriptionSnapshot, error)

	// History returns up to limit of the most recent snapshots, oldest
	// first. limit <= 0 returns all of them.
	History(ctx context.Context, offeringID string, limit int) ([]domain.SubscriptionSnapshot, error)

	// ActiveOfferings lists offerings whose status is active.
	ActiveOfferings(ctx context.Context) ([]domain.TrackedOffering, error)

	// Archive marks an offering archived. Its history is kept.
	Archive(ctx context.Context, offeringID string) error

	Close() error
}

// IST is India Standard Time. India observes no daylight saving, so a
// fixed zone avoids depending on the host tz database.
var IST = time.FixedZone("IST", 5*3600+30*60)

// DocID returns the document id of a snapshot: the offering slug and the
// capture minute in IST, e.g. "acme_infra_ltd__20240115_1130".
func DocID(offeringID string, capturedAt time.Time) string {
	return Slug(offeringID) + "__" + capturedAt.In(IST).Format("20060102_1504")
}

// Slug normalizes an offering name or id for use in document ids.
func Slug(name string) string {
	return domain.Slug(name)
}

var validate = validator.New()

// Validate checks a snapshot before it is persisted.
func Validate(snap domain.SubscriptionSnapshot) error {
	if err := validate.Struct(snap); err != nil {
		return apierrors.NewAppValidationError("invalid snapshot", err)
	}
	if snap.Categories.Len() == 0 {
		return apierrors.NewAppValidationError("invalid snapshot", fmt.Errorf("%s: no categories", snap.OfferingID))
	}
	for _, e := range snap.Categories.Entries() {
		if err := validate.Struct(e); err != nil {
			return apierrors.NewAppValidationError("invalid snapshot category", err)
		}
	}
	return nil
}

// Tracked derives the offering record written alongside a snapshot.
func Tracked(snap domain.SubscriptionSnapshot, docID string) domain.TrackedOffering {
	return domain.TrackedOffering{
		OfferingID:     snap.OfferingID,
		OfferingName:   snap.OfferingName,
		Exchange:       snap.Exchange,
		Board:          snap.Board,
		Status:         domain.OfferingStatusActive,
		LatestID:       docID,
		LastCapturedAt: snap.CapturedAt,
	}
}
