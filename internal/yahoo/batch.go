package yahoo

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"resty.dev/v3"

	"mervalboard/internal/fetcher"
	"mervalboard/internal/instrument"
)

// BatchQuote is one entry of the v7 quote endpoint
type BatchQuote struct {
	Symbol                     string              `json:"symbol"`
	Currency                   string              `json:"currency"`
	RegularMarketPrice         decimal.NullDecimal `json:"regularMarketPrice"`
	RegularMarketChangePercent decimal.NullDecimal `json:"regularMarketChangePercent"`
	RegularMarketPreviousClose decimal.NullDecimal `json:"regularMarketPreviousClose"`
}

// BatchResponse represents the v7 quote endpoint response
type BatchResponse struct {
	QuoteResponse struct {
		Result []BatchQuote `json:"result"`
		Error  *apiError    `json:"error"`
	} `json:"quoteResponse"`
}

// BatchSource reads quotes from the multi-symbol quote endpoint, one symbol per call.
type BatchSource struct {
	endpoint
}

// NewBatchSource creates the batch-style source
func NewBatchSource(client *resty.Client, baseURL string, relay fetcher.Relay, logger *slog.Logger) *BatchSource {
	return &BatchSource{endpoint: newEndpoint("yahoo_batch", baseURL, relay, client, logger)}
}

// Quote implements fetcher.Source
func (s *BatchSource) Quote(ctx context.Context, inst instrument.Instrument) fetcher.Quote {
	q, err := s.fetch(ctx, inst)
	return s.resolve(inst, q, err)
}

func (s *BatchSource) fetch(ctx context.Context, inst instrument.Instrument) (fetcher.Quote, error) {
	var result BatchResponse

	query := url.Values{"symbols": {inst.Symbol}}
	if err := s.getJSON(ctx, s.url(query, "v7", "finance", "quote"), &result); err != nil {
		return fetcher.Quote{}, err
	}

	if err := upstreamError(result.QuoteResponse.Error); err != nil {
		return fetcher.Quote{}, err
	}
	entry, ok := pickQuote(result.QuoteResponse.Result, inst.Symbol)
	if !ok {
		return fetcher.Quote{}, fetcher.NewValidationError(fmt.Sprintf("no quote result for %s", inst.Symbol))
	}

	change := fetcher.FirstValid(
		entry.RegularMarketChangePercent,
		fetcher.ChangePercent(entry.RegularMarketPrice, entry.RegularMarketPreviousClose),
	)

	q := fetcher.NewQuote(entry.RegularMarketPrice, change)
	if !q.Available() {
		return fetcher.Quote{}, fetcher.NewValidationError(fmt.Sprintf("price not found in quote response for %s", inst.Symbol))
	}

	return q, nil
}

// pickQuote returns the entry for symbol. Entries for other symbols are
// never used in its place.
func pickQuote(results []BatchQuote, symbol string) (BatchQuote, bool) {
	for _, r := range results {
		if strings.EqualFold(r.Symbol, symbol) {
			return r, true
		}
	}
	return BatchQuote{}, false
}
