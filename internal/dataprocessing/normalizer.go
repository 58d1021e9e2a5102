package dataprocessing

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/Roshiii-8511/gainipo-subscription-scraper/pkg/contracts/domain"
)

// Rule maps labels to a category. A label matches when it contains any
// of Keywords, any of Qualifiers (if set) and none of Excluding.
type Rule struct {
	Category   domain.Category
	Keywords   []string
	Qualifiers []string
	Excluding  []string
}

func (r Rule) matches(label string) bool {
	if !containsAny(label, r.Keywords) {
		return false
	}
	if len(r.Qualifiers) > 0 && !containsAny(label, r.Qualifiers) {
		return false
	}
	return !containsAny(label, r.Excluding)
}

var (
	niiKeywords = []string{"non institutional", "non-institutional", "nii", "hni", "high net worth", "bnii", "snii", "bhni", "shni"}

	bigTicket = []string{"more than", "above 10", ">10", "> 10", "bhni", "bnii"}

	// An explicit upper bound marks the small tier even when the label
	// also says "more than" (e.g. "more than 2 lakh upto 10 lakh").
	smallTicket = []string{"upto 10 lakh", "up to", "upto", "shni", "snii", "below 10", "less than 10", "<10", "< 10"}
)

// defaultRules is evaluated top to bottom; the first match wins.
var defaultRules = []Rule{
	{Category: domain.CategoryBNII, Keywords: niiKeywords, Qualifiers: bigTicket, Excluding: smallTicket},
	{Category: domain.CategorySNII, Keywords: niiKeywords, Qualifiers: smallTicket},
	{Category: domain.CategoryNII, Keywords: niiKeywords},
	{Category: domain.CategoryQIB, Keywords: []string{"qualified institutional", "qib"}},
	{Category: domain.CategoryRetail, Keywords: []string{"retail", "rii", "individual"}},
	{Category: domain.CategoryEmployee, Keywords: []string{"employee"}},
}

// Normalizer maps raw exchange labels to canonical categories. It holds
// no mutable state and is safe for concurrent use.
type Normalizer struct {
	rules []Rule
}

// NewNormalizer returns a normalizer with the built-in rule table. Extra
// rules are tried after the built-in ones, before a label is declared
// unclassified.
func NewNormalizer(extra ...Rule) *Normalizer {
	rules := make([]Rule, 0, len(defaultRules)+len(extra))
	rules = append(rules, defaultRules...)
	for _, r := range extra {
		if !r.Category.Valid() || len(r.Keywords) == 0 {
			continue
		}
		rules = append(rules, foldRule(r))
	}
	return &Normalizer{rules: rules}
}

// AliasRules turns a keyword-to-category table (as loaded from
// configuration) into rules. Unknown categories are ignored.
func AliasRules(aliases map[string]string) []Rule {
	var rules []Rule
	for keyword, cat := range aliases {
		c := lookupCategory(cat)
		if c == domain.CategoryUnclassified || strings.TrimSpace(keyword) == "" {
			continue
		}
		rules = append(rules, Rule{Category: c, Keywords: []string{keyword}})
	}
	return rules
}

func lookupCategory(s string) domain.Category {
	for _, c := range domain.AllCategories {
		if strings.EqualFold(string(c), strings.TrimSpace(s)) {
			return c
		}
	}
	return domain.CategoryUnclassified
}

// Normalize returns the canonical category for label, or
// CategoryUnclassified when no rule matches.
func (n *Normalizer) Normalize(label string) domain.Category {
	folded := FoldLabel(label)
	if folded == "" {
		return domain.CategoryUnclassified
	}
	for _, r := range n.rules {
		if r.matches(folded) {
			return r.Category
		}
	}
	return domain.CategoryUnclassified
}

var (
	rupeeRe  = regexp.MustCompile(`\brs\.?\s*`)
	lakhRe   = regexp.MustCompile(`(\d+)\s*(?:lakhs?|lacs?|l)\b`)
	spacesRe = regexp.MustCompile(`\s+`)

	numberWords = strings.NewReplacer("two lakh", "2 lakh", "ten lakh", "10 lakh")

	dashes = strings.NewReplacer("\u20b9", "", "_", " ", "\u2013", " ", "\u2014", " ")
)

// FoldLabel canonicalises a label for keyword matching: NFKC, lower case,
// hyphens and underscores as spaces, currency markers dropped, lakh
// abbreviations expanded and whitespace collapsed.
func FoldLabel(label string) string {
	s := norm.NFKC.String(label)
	s = strings.ToLower(s)
	s = dashes.Replace(s)
	s = rupeeRe.ReplaceAllString(s, "")
	s = numberWords.Replace(s)
	s = lakhRe.ReplaceAllString(s, "$1 lakh")
	s = spacesRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	// "non-institutional" and "non - institutional" fold to one spelling.
	s = strings.ReplaceAll(s, "non - ", "non ")
	return strings.ReplaceAll(s, "non-", "non ")
}

func foldRule(r Rule) Rule {
	fold := func(in []string) []string {
		out := make([]string, 0, len(in))
		for _, s := range in {
			if f := FoldLabel(s); f != "" {
				out = append(out, f)
			}
		}
		return out
	}
	r.Keywords = fold(r.Keywords)
	r.Qualifiers = fold(r.Qualifiers)
	r.Excluding = fold(r.Excluding)
	return r
}

// containsAny reports whether s contains one of subs. Keywords of up to
// four characters ("qib", "nii", "rii") must start a word, so "technical"
// does not match "hni".
func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if len(sub) > 4 {
			if strings.Contains(s, sub) {
				return true
			}
			continue
		}
		if containsWordPrefix(s, sub) {
			return true
		}
	}
	return false
}

func containsWordPrefix(s, sub string) bool {
	for from := 0; from <= len(s)-len(sub); {
		i := strings.Index(s[from:], sub)
		if i < 0 {
			return false
		}
		i += from
		if i == 0 || !isWordByte(s[i-1]) {
			return true
		}
		from = i + 1
	}
	return false
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}
