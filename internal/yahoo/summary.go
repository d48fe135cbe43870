package yahoo

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/shopspring/decimal"
	"resty.dev/v3"

	"mervalboard/internal/fetcher"
	"mervalboard/internal/instrument"
)

var hundred = decimal.NewFromInt(100)

// rawValue is the {"raw": 1.23, "fmt": "1.23"} wrapper used by quoteSummary.
type rawValue struct {
	Raw decimal.NullDecimal `json:"raw"`
	Fmt string              `json:"fmt"`
}

// SummaryResponse represents the v10 quoteSummary endpoint response for the price module
type SummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			Price struct {
				Symbol                     string   `json:"symbol"`
				Currency                   string   `json:"currency"`
				RegularMarketPrice         rawValue `json:"regularMarketPrice"`
				RegularMarketChangePercent rawValue `json:"regularMarketChangePercent"`
				RegularMarketPreviousClose rawValue `json:"regularMarketPreviousClose"`
			} `json:"price"`
		} `json:"result"`
		Error *apiError `json:"error"`
	} `json:"quoteSummary"`
}

// SummarySource reads quotes from the price module of quoteSummary.
type SummarySource struct {
	endpoint
}

// NewSummarySource creates the summary-style source
func NewSummarySource(client *resty.Client, baseURL string, relay fetcher.Relay, logger *slog.Logger) *SummarySource {
	return &SummarySource{endpoint: newEndpoint("yahoo_summary", baseURL, relay, client, logger)}
}

// Quote implements fetcher.Source
func (s *SummarySource) Quote(ctx context.Context, inst instrument.Instrument) fetcher.Quote {
	q, err := s.fetch(ctx, inst)
	return s.resolve(inst, q, err)
}

func (s *SummarySource) fetch(ctx context.Context, inst instrument.Instrument) (fetcher.Quote, error) {
	var result SummaryResponse

	query := url.Values{"modules": {"price"}}
	if err := s.getJSON(ctx, s.url(query, "v10", "finance", "quoteSummary", inst.Symbol), &result); err != nil {
		return fetcher.Quote{}, err
	}

	if err := upstreamError(result.QuoteSummary.Error); err != nil {
		return fetcher.Quote{}, err
	}
	if len(result.QuoteSummary.Result) == 0 {
		return fetcher.Quote{}, fetcher.NewValidationError(fmt.Sprintf("no summary result for %s", inst.Symbol))
	}

	price := result.QuoteSummary.Result[0].Price

	// quoteSummary reports the change as a fraction, not a percentage
	change := price.RegularMarketChangePercent.Raw
	if change.Valid {
		change = decimal.NewNullDecimal(change.Decimal.Mul(hundred))
	} else {
		change = fetcher.ChangePercent(price.RegularMarketPrice.Raw, price.RegularMarketPreviousClose.Raw)
	}

	q := fetcher.NewQuote(price.RegularMarketPrice.Raw, change)
	if !q.Available() {
		return fetcher.Quote{}, fetcher.NewValidationError(fmt.Sprintf("price not found in summary response for %s", inst.Symbol))
	}

	return q, nil
}
