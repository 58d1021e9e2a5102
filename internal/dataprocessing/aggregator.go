package dataprocessing

import (
	"math"

	"github.com/Roshiii-8511/gainipo-subscription-scraper/pkg/contracts/domain"
)

// Entry is one classified, normalized row ready for aggregation.
type Entry struct {
	Category domain.Category
	Offered  int64
	Bid      int64
}

// Aggregate is the folded result of a set of entries.
type Aggregate struct {
	Categories     domain.Categories
	Total          domain.CategoryFigures
	SynthesizedNII bool
}

// Aggregator folds entries into per-category figures and a grand total.
type Aggregator struct{}

// NewAggregator creates an aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Aggregate sums entries per category in discovery order. When bNII or
// sNII rows exist without an explicit NII row, NII is synthesized from
// them and placed ahead of the first sub-tier. The total is computed
// from base-level categories only; sub-tiers are already inside NII.
func (a *Aggregator) Aggregate(entries []Entry) Aggregate {
	var order []domain.Category
	sums := make(map[domain.Category]*[2]int64)

	for _, e := range entries {
		if !e.Category.Valid() {
			continue
		}
		s, ok := sums[e.Category]
		if !ok {
			s = &[2]int64{}
			sums[e.Category] = s
			order = append(order, e.Category)
		}
		s[0] = addShares(s[0], e.Offered)
		s[1] = addShares(s[1], e.Bid)
	}

	synthesized := false
	if _, explicit := sums[domain.CategoryNII]; !explicit {
		var nii [2]int64
		firstTier := -1
		for i, cat := range order {
			if !cat.IsSubTier() {
				continue
			}
			if firstTier < 0 {
				firstTier = i
			}
			nii[0] = addShares(nii[0], sums[cat][0])
			nii[1] = addShares(nii[1], sums[cat][1])
		}
		if firstTier >= 0 {
			sums[domain.CategoryNII] = &nii
			order = append(order[:firstTier], append([]domain.Category{domain.CategoryNII}, order[firstTier:]...)...)
			synthesized = true
		}
	}

	result := make([]domain.CategoryEntry, 0, len(order))
	var total [2]int64
	for _, cat := range order {
		s := sums[cat]
		result = append(result, domain.CategoryEntry{Category: cat, CategoryFigures: figures(s[0], s[1])})
		if cat.IsBaseLevel() {
			total[0] = addShares(total[0], s[0])
			total[1] = addShares(total[1], s[1])
		}
	}

	return Aggregate{
		Categories:     domain.NewCategories(result...),
		Total:          figures(total[0], total[1]),
		SynthesizedNII: synthesized,
	}
}

// addShares adds two share counts, saturating at math.MaxInt64. Negative
// counts are treated as 0.
func addShares(a, b int64) int64 {
	a, b = max(a, 0), max(b, 0)
	if b > math.MaxInt64-a {
		return math.MaxInt64
	}
	return a + b
}

func figures(offered, bid int64) domain.CategoryFigures {
	return domain.CategoryFigures{
		SharesOffered:     offered,
		SharesBid:         bid,
		SubscriptionRatio: Ratio(bid, offered),
	}
}
