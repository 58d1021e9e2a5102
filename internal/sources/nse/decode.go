package nse

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/Roshiii-8511/gainipo-subscription-scraper/pkg/contracts/domain"
)

// ErrNotJSON means the API answered with something other than JSON,
// typically the bot-protection HTML page.
var ErrNotJSON = errors.New("nse: response is not JSON")

// smeSeries are the series codes NSE Emerge issues trade under.
var smeSeries = map[string]bool{"SME": true, "SM": true, "ST": true}

// DecodeBidResponse decodes an issue-information-bid payload. Both the
// {"data":[...]} envelope and a bare array are accepted. An empty list is
// not an error; the engine reports it as no usable data.
func DecodeBidResponse(data []byte) ([]domain.APIRecord, error) {
	var records []domain.APIRecord
	if err := decodeList(data, &records); err != nil {
		return nil, fmt.Errorf("decode bid response: %w", err)
	}
	return records, nil
}

type currentIssue struct {
	Symbol      string `json:"symbol"`
	CompanyName string `json:"companyName"`
	Series      string `json:"series"`
	Status      string `json:"status"`
}

// DecodeCurrentIssues decodes an ipo-current-issue payload into offerings.
// Records without a symbol or company name are dropped.
func DecodeCurrentIssues(data []byte, baseURL string) ([]domain.Offering, error) {
	var issues []currentIssue
	if err := decodeList(data, &issues); err != nil {
		return nil, fmt.Errorf("decode current issues: %w", err)
	}

	offerings := make([]domain.Offering, 0, len(issues))
	seen := make(map[string]bool, len(issues))
	for _, is := range issues {
		symbol := strings.TrimSpace(is.Symbol)
		name := strings.TrimSpace(is.CompanyName)
		if symbol == "" || name == "" {
			continue
		}
		series := strings.ToUpper(strings.TrimSpace(is.Series))
		if series == "" {
			series = "EQ"
		}
		id := domain.Slug(name)
		if seen[id] {
			continue
		}
		seen[id] = true

		board := domain.BoardMainboard
		if smeSeries[series] {
			board = domain.BoardSME
		}
		offerings = append(offerings, domain.Offering{
			ID:        id,
			Name:      name,
			Exchange:  domain.ExchangeNSE,
			Board:     board,
			SourceID:  symbol,
			Series:    series,
			DetailURL: IssuePageURL(baseURL, symbol, series),
		})
	}
	return offerings, nil
}

// IssuePageURL is the issue-information page that sets the cookies the
// bid API requires.
func IssuePageURL(baseURL, symbol, series string) string {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("series", series)
	q.Set("type", "Active")
	return baseURL + "/market-data/issue-information?" + q.Encode()
}

// BidAPIPath is the same-origin path of the bid API for an issue.
func BidAPIPath(symbol, series string) string {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("series", series)
	return "/api/issue-information-bid?" + q.Encode()
}

func decodeList(data []byte, dst interface{}) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ErrNotJSON
	}
	switch data[0] {
	case '[':
		return json.Unmarshal(data, dst)
	case '{':
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			return err
		}
		if len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
			return nil
		}
		return json.Unmarshal(env.Data, dst)
	default:
		return ErrNotJSON
	}
}
