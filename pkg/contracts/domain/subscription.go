package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Category is a canonical investor category key. The set is closed and
// exchange-agnostic; raw exchange labels never appear as keys.
type Category string

const (
	CategoryQIB      Category = "QIB"
	CategoryNII      Category = "NII"
	CategoryBNII     Category = "bNII"
	CategorySNII     Category = "sNII"
	CategoryRetail   Category = "Retail"
	CategoryEmployee Category = "Employee"

	// CategoryUnclassified marks a label that matched no rule. It is never
	// stored in a snapshot.
	CategoryUnclassified Category = ""
)

// AllCategories lists the canonical categories in reporting order.
var AllCategories = []Category{
	CategoryQIB,
	CategoryNII,
	CategoryBNII,
	CategorySNII,
	CategoryRetail,
	CategoryEmployee,
}

// Valid reports whether c is one of the canonical categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryQIB, CategoryNII, CategoryBNII, CategorySNII, CategoryRetail, CategoryEmployee:
		return true
	}
	return false
}

// IsBaseLevel reports whether c contributes directly to the grand total.
func (c Category) IsBaseLevel() bool {
	switch c {
	case CategoryQIB, CategoryNII, CategoryRetail, CategoryEmployee:
		return true
	}
	return false
}

// IsSubTier reports whether c is a bid-size tier of NII.
func (c Category) IsSubTier() bool {
	return c == CategoryBNII || c == CategorySNII
}

// Exchange tags the stock exchange an offering or a data source belongs to.
type Exchange string

const (
	ExchangeBSE Exchange = "BSE"
	ExchangeNSE Exchange = "NSE"
)

// Board is the listing board of an offering.
type Board string

const (
	BoardMainboard Board = "mainboard"
	BoardSME       Board = "SME"
)

// RawRow is one row of a subscription table as delivered by a source,
// reduced to ordered text cells. It is consumed once per snapshot build.
type RawRow struct {
	Cells []string `json:"cells"`
}

// CategoryFigures holds the demand figures of one category.
// SubscriptionRatio is SharesBid/SharesOffered rounded to 2 decimals, or 0
// when nothing is on offer.
type CategoryFigures struct {
	SharesOffered     int64   `json:"shares_offered" validate:"min=0"`
	SharesBid         int64   `json:"shares_bid" validate:"min=0"`
	SubscriptionRatio float64 `json:"subscription_ratio" validate:"min=0"`
}

// CategoryEntry pairs a canonical category with its figures.
type CategoryEntry struct {
	Category Category `json:"category" validate:"required"`
	CategoryFigures
}

// Categories is an insertion-ordered, read-only mapping of canonical
// category to figures. Use NewCategories to build one.
type Categories struct {
	entries []CategoryEntry
}

// NewCategories builds a Categories value from entries in the given order.
// A repeated category keeps its first position and its last figures.
func NewCategories(entries ...CategoryEntry) Categories {
	out := Categories{entries: make([]CategoryEntry, 0, len(entries))}
	for _, e := range entries {
		if i := out.index(e.Category); i >= 0 {
			out.entries[i] = e
			continue
		}
		out.entries = append(out.entries, e)
	}
	return out
}

func (c Categories) index(cat Category) int {
	for i, e := range c.entries {
		if e.Category == cat {
			return i
		}
	}
	return -1
}

// Len returns the number of categories present.
func (c Categories) Len() int { return len(c.entries) }

// Get returns the figures for cat.
func (c Categories) Get(cat Category) (CategoryFigures, bool) {
	if i := c.index(cat); i >= 0 {
		return c.entries[i].CategoryFigures, true
	}
	return CategoryFigures{}, false
}

// Has reports whether cat is present.
func (c Categories) Has(cat Category) bool { return c.index(cat) >= 0 }

// Keys returns the categories in insertion order.
func (c Categories) Keys() []Category {
	keys := make([]Category, len(c.entries))
	for i, e := range c.entries {
		keys[i] = e.Category
	}
	return keys
}

// Entries returns a copy of the entries in insertion order.
func (c Categories) Entries() []CategoryEntry {
	out := make([]CategoryEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// BaseLevel returns the entries that make up the grand total.
func (c Categories) BaseLevel() []CategoryEntry {
	var out []CategoryEntry
	for _, e := range c.entries {
		if e.Category.IsBaseLevel() {
			out = append(out, e)
		}
	}
	return out
}

// MarshalJSON encodes the categories as a JSON object whose key order is
// the insertion order.
func (c Categories) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range c.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(e.Category))
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.CategoryFigures)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping the document key order.
// Unknown category keys are rejected.
func (c *Categories) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*c = Categories{}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("categories: expected object, got %v", tok)
	}

	var entries []CategoryEntry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		cat := Category(key)
		if !cat.Valid() {
			return fmt.Errorf("categories: unknown category %q", key)
		}
		var figures CategoryFigures
		if err := dec.Decode(&figures); err != nil {
			return fmt.Errorf("categories: decode %s: %w", key, err)
		}
		entries = append(entries, CategoryEntry{Category: cat, CategoryFigures: figures})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*c = NewCategories(entries...)
	return nil
}

// SubscriptionSnapshot is one normalized sample of an offering's demand.
// It is built fresh on every poll and never mutated afterwards.
type SubscriptionSnapshot struct {
	OfferingID   string          `json:"offering_id" validate:"required"`
	OfferingName string          `json:"offering_name,omitempty"`
	Exchange     Exchange        `json:"exchange" validate:"required,oneof=BSE NSE"`
	Board        Board           `json:"board" validate:"required,oneof=mainboard SME"`
	Categories   Categories      `json:"categories"`
	Total        CategoryFigures `json:"total"`
	CapturedAt   time.Time       `json:"captured_at" validate:"required"`
	Source       Exchange        `json:"source" validate:"required,oneof=BSE NSE"`
}
