package domain

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Offering identifies a public offering that is open for bidding.
type Offering struct {
	ID        string   `json:"id" validate:"required"`
	Name      string   `json:"name" validate:"required"`
	Exchange  Exchange `json:"exchange" validate:"required,oneof=BSE NSE"`
	Board     Board    `json:"board" validate:"required,oneof=mainboard SME"`
	SourceID  string   `json:"source_id" validate:"required"` // BSE issue id or NSE symbol
	Series    string   `json:"series,omitempty"`              // NSE series (EQ, SME)
	DetailURL string   `json:"detail_url,omitempty" validate:"omitempty,url"`
}

var slugReplacer = strings.NewReplacer("&", "and", " ", "_", "/", "_", "-", "_")

// Slug derives the stable offering id from a security name: lower case,
// "&" spelled "and", spaces, slashes and hyphens as underscores. Any other
// character ("Ltd.", "(India)", commas) is dropped, so the result only
// holds [a-z0-9_] and never starts with an underscore.
func Slug(name string) string {
	s := slugReplacer.Replace(strings.ToLower(strings.TrimSpace(name)))
	s = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return -1
	}, s)
	return strings.TrimLeft(s, "_")
}

// OfferingStatus is the lifecycle state of a tracked offering.
type OfferingStatus string

const (
	OfferingStatusActive   OfferingStatus = "active"
	OfferingStatusArchived OfferingStatus = "archived"
)

// TrackedOffering is an offering as known to the snapshot store.
type TrackedOffering struct {
	OfferingID     string         `json:"offering_id"`
	OfferingName   string         `json:"offering_name"`
	Exchange       Exchange       `json:"exchange"`
	Board          Board          `json:"board"`
	Status         OfferingStatus `json:"status"`
	LatestID       string         `json:"latest_snapshot_id"`
	LastCapturedAt time.Time      `json:"last_captured_at"`
}

// APIRecord is one category record of the exchange JSON API. Field names
// drifted across API versions, so decoding accepts every observed alias
// and keeps numeric values as their source text.
type APIRecord struct {
	Category      string `json:"category"`
	SharesOffered string `json:"shares_offered"`
	SharesBid     string `json:"shares_bid"`
	NoOfTimes     string `json:"no_of_times"`
}

var (
	offeredAliases = []string{"noOfShareOffered", "noOfSharesOffered", "sharesOffered", "shares_offered"}
	bidAliases     = []string{"noOfSharesBid", "noOfShareBid", "sharesBid", "shares_bid"}
	timesAliases   = []string{"noOfTimes", "noOfTime", "times", "no_of_times"}
	categoryAlias  = []string{"category", "categoryName"}
)

// UnmarshalJSON decodes a record whose numeric fields may be JSON numbers,
// strings or null.
func (r *APIRecord) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*r = APIRecord{
		Category:      pickText(fields, categoryAlias),
		SharesOffered: pickText(fields, offeredAliases),
		SharesBid:     pickText(fields, bidAliases),
		NoOfTimes:     pickText(fields, timesAliases),
	}
	return nil
}

// pickText returns the first present alias as text.
func pickText(fields map[string]json.RawMessage, aliases []string) string {
	for _, key := range aliases {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			return ""
		}
		if raw[0] == '"' {
			var s string
			if err := json.Unmarshal(raw, &s); err == nil {
				return strings.TrimSpace(s)
			}
			return ""
		}
		return string(raw)
	}
	return ""
}
