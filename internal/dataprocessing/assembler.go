package dataprocessing

import (
	"time"

	"github.com/Roshiii-8511/gainipo-subscription-scraper/pkg/contracts/domain"
)

// SnapshotMeta is the caller-supplied identity of the offering being
// sampled.
type SnapshotMeta struct {
	OfferingID   string
	OfferingName string
	Exchange     domain.Exchange
	Board        domain.Board
	Source       domain.Exchange // exchange whose table produced the rows; defaults to Exchange
}

// MetaFor derives snapshot metadata from a discovered offering.
func MetaFor(o domain.Offering) SnapshotMeta {
	return SnapshotMeta{
		OfferingID:   o.ID,
		OfferingName: o.Name,
		Exchange:     o.Exchange,
		Board:        o.Board,
		Source:       o.Exchange,
	}
}

// Assemble combines aggregated figures with offering metadata into the
// final snapshot. It performs no I/O.
func Assemble(meta SnapshotMeta, agg Aggregate, capturedAt time.Time) domain.SubscriptionSnapshot {
	source := meta.Source
	if source == "" {
		source = meta.Exchange
	}
	board := meta.Board
	if board == "" {
		board = domain.BoardMainboard
	}
	return domain.SubscriptionSnapshot{
		OfferingID:   meta.OfferingID,
		OfferingName: meta.OfferingName,
		Exchange:     meta.Exchange,
		Board:        board,
		Categories:   agg.Categories,
		Total:        agg.Total,
		CapturedAt:   capturedAt.Round(0), // drop the monotonic reading
		Source:       source,
	}
}
