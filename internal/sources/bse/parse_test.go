package bse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/shared/testutil"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/pkg/contracts/domain"
)

func TestParseDemandSchedule(t *testing.T) {
	table, err := ParseDemandSchedule(strings.NewReader(testutil.BSEDemandScheduleHTML))
	require.NoError(t, err)

	// header + 6 categories + totals; the layout and disclaimer tables lose
	require.Len(t, table, 8)
	assert.Equal(t, []string{"Sr.No", "Category", "No.of Shares Offered / Reserved", "No. of shares bid for", "No. of times of total meant for the category"}, table[0])
	assert.Equal(t, []string{"2.1", "Non Institutional Investors (More than Rs.10 lakh)", "1,33,333", "5,00,000", "3.75"}, table[3])
	assert.Equal(t, "", table[7][0], "nbsp-only cell collapses to empty")
	assert.Equal(t, "Total", table[7][1])
}

func TestParseDemandSchedule_NoTable(t *testing.T) {
	tests := []struct {
		name string
		html string
	}{
		{name: "no table", html: `<html><body><p>Issue closed</p></body></html>`},
		{name: "only narrow rows", html: `<table><tr><td>a</td><td>b</td></tr></table>`},
		{name: "empty body", html: ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDemandSchedule(strings.NewReader(tt.html))
			assert.ErrorIs(t, err, ErrNoTable)
		})
	}
}

func TestParseLiveIssues(t *testing.T) {
	offerings, err := ParseLiveIssues(strings.NewReader(testutil.BSEIssueListHTML), "https://www.bseindia.com")
	require.NoError(t, err)
	require.Len(t, offerings, 2)

	assert.Equal(t, domain.Offering{
		ID:        "acme_infra_and_power_ltd",
		Name:      "Acme Infra & Power Ltd",
		Exchange:  domain.ExchangeBSE,
		Board:     domain.BoardMainboard,
		SourceID:  "4567",
		DetailURL: "https://www.bseindia.com/markets/publicIssues/DisplayIPO.aspx?id=4567&type=IPO&idtype=1&status=L",
	}, offerings[0])

	assert.Equal(t, "sunrise_agro_foods_ltd", offerings[1].ID)
	assert.Equal(t, domain.BoardSME, offerings[1].Board)
	assert.Equal(t, "4570", offerings[1].SourceID, "upper-case ID= is accepted")
}

func TestParseLiveIssues_DuplicateRowsCollapse(t *testing.T) {
	row := `<tr><td><a href="/x?id=1">Dup Ltd</a></td><td>Main Board</td><td></td><td></td><td></td><td></td><td>IPO</td><td>Live</td></tr>`
	html := "<table>" + row + row + "</table>"

	offerings, err := ParseLiveIssues(strings.NewReader(html), "https://www.bseindia.com")
	require.NoError(t, err)
	assert.Len(t, offerings, 1)
}

func TestBoardOf(t *testing.T) {
	assert.Equal(t, domain.BoardSME, boardOf("BSE SME"))
	assert.Equal(t, domain.BoardSME, boardOf("sme"))
	assert.Equal(t, domain.BoardMainboard, boardOf("Main Board"))
	assert.Equal(t, domain.BoardMainboard, boardOf(""))
}
