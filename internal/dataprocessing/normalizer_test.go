package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Roshiii-8511/gainipo-subscription-scraper/pkg/contracts/domain"
)

func TestNormalize(t *testing.T) {
	n := NewNormalizer()

	tests := []struct {
		label    string
		expected domain.Category
	}{
		{label: "Qualified Institutional Buyers", expected: domain.CategoryQIB},
		{label: "Qualified Institutional Buyers(QIBs)", expected: domain.CategoryQIB},
		{label: "QIBs", expected: domain.CategoryQIB},
		{label: "  qib  ", expected: domain.CategoryQIB},
		{label: "Non Institutional Investors", expected: domain.CategoryNII},
		{label: "Non-Institutional Investors", expected: domain.CategoryNII},
		{label: "HNI", expected: domain.CategoryNII},
		{label: "Non Institutional Investors (Above ₹10L)", expected: domain.CategoryBNII},
		{label: "Non Institutional Investors (Upto ₹10L)", expected: domain.CategorySNII},
		{label: "NII (Bid amount of more than Ten Lakh Rupees)", expected: domain.CategoryBNII},
		{label: "NII (Bid amount of more than Two Lakh Rupees upto Ten Lakh Rupees)", expected: domain.CategorySNII},
		{label: "bNII (bids above ₹10L)", expected: domain.CategoryBNII},
		{label: "sNII (bids below ₹10L)", expected: domain.CategorySNII},
		{label: "bHNI", expected: domain.CategoryBNII},
		{label: "sHNI", expected: domain.CategorySNII},
		{label: "Retail Individual Investors (RIIs)", expected: domain.CategoryRetail},
		{label: "RII", expected: domain.CategoryRetail},
		{label: "Employees", expected: domain.CategoryEmployee},
		{label: "Employee Reservation", expected: domain.CategoryEmployee},
		{label: "Anchor Investors", expected: domain.CategoryUnclassified},
		{label: "Shareholders", expected: domain.CategoryUnclassified},
		{label: "Technical", expected: domain.CategoryUnclassified},
		{label: "", expected: domain.CategoryUnclassified},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got := n.Normalize(tt.label)
			assert.Equal(t, tt.expected, got)
			// Mapping is stable across calls.
			assert.Equal(t, got, n.Normalize(tt.label))
		})
	}
}

func TestNormalizeWithAliases(t *testing.T) {
	n := NewNormalizer(AliasRules(map[string]string{
		"shareholder":  "retail",
		"policyholder": "Employee",
		"anchor":       "unknown",
	})...)

	assert.Equal(t, domain.CategoryRetail, n.Normalize("Shareholders"))
	assert.Equal(t, domain.CategoryEmployee, n.Normalize("Policyholders Reservation"))
	assert.Equal(t, domain.CategoryUnclassified, n.Normalize("Anchor Investors"))
	// Built-in rules still win.
	assert.Equal(t, domain.CategoryQIB, n.Normalize("QIB"))
}

func TestFoldLabel(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "Non-Institutional  Investors", expected: "non institutional investors"},
		{input: "Above Rs. 10 Lakhs", expected: "above 10 lakh"},
		{input: "Upto ₹10L", expected: "upto 10 lakh"},
		{input: "more than Two Lakh", expected: "more than 2 lakh"},
		{input: "Retail_Individual", expected: "retail individual"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, FoldLabel(tt.input), tt.input)
	}
}

func TestNormalizeIndividualsOtherThanRIIs(t *testing.T) {
	// NSE lists this as a sub-row under NII; the "individual" keyword
	// still makes it Retail.
	n := NewNormalizer()
	assert.Equal(t, domain.CategoryRetail, n.Normalize("Individuals (Other than RIIs)"))

	// Aliases run after the built-in rules and cannot pull it back.
	n = NewNormalizer(AliasRules(map[string]string{"other than riis": "NII"})...)
	assert.Equal(t, domain.CategoryRetail, n.Normalize("Individuals (Other than RIIs)"))
}
