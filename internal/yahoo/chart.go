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

// ChartResponse represents the v8 chart endpoint response
type ChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string              `json:"symbol"`
				Currency           string              `json:"currency"`
				RegularMarketPrice decimal.NullDecimal `json:"regularMarketPrice"`
				PreviousClose      decimal.NullDecimal `json:"previousClose"`
				ChartPreviousClose decimal.NullDecimal `json:"chartPreviousClose"`
			} `json:"meta"`
		} `json:"result"`
		Error *apiError `json:"error"`
	} `json:"chart"`
}

// ChartSource reads quotes from the daily chart metadata.
type ChartSource struct {
	endpoint
}

// NewChartSource creates the chart-style source
func NewChartSource(client *resty.Client, baseURL string, relay fetcher.Relay, logger *slog.Logger) *ChartSource {
	return &ChartSource{endpoint: newEndpoint("yahoo_chart", baseURL, relay, client, logger)}
}

// Quote implements fetcher.Source
func (s *ChartSource) Quote(ctx context.Context, inst instrument.Instrument) fetcher.Quote {
	q, err := s.fetch(ctx, inst)
	return s.resolve(inst, q, err)
}

func (s *ChartSource) fetch(ctx context.Context, inst instrument.Instrument) (fetcher.Quote, error) {
	var result ChartResponse

	query := url.Values{"interval": {"1d"}, "range": {"1d"}}
	if err := s.getJSON(ctx, s.url(query, "v8", "finance", "chart", inst.Symbol), &result); err != nil {
		return fetcher.Quote{}, err
	}

	if err := upstreamError(result.Chart.Error); err != nil {
		return fetcher.Quote{}, err
	}
	if len(result.Chart.Result) == 0 {
		return fetcher.Quote{}, fetcher.NewValidationError(fmt.Sprintf("no chart result for %s", inst.Symbol))
	}

	meta := result.Chart.Result[0].Meta
	prev := fetcher.FirstValid(meta.PreviousClose, meta.ChartPreviousClose)
	q := fetcher.NewQuote(meta.RegularMarketPrice, fetcher.ChangePercent(meta.RegularMarketPrice, prev))
	if !q.Available() {
		return fetcher.Quote{}, fetcher.NewValidationError(fmt.Sprintf("price not found in chart response for %s", inst.Symbol))
	}

	return q, nil
}
