package dataprocessing

import "errors"

// ErrNoUsableData means no category could be populated from the rows.
// It is distinct from a snapshot whose categories all have zero bids.
var ErrNoUsableData = errors.New("no subscription data available for this offering")
