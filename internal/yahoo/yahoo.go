// Package yahoo implements the three quote sources of the fallback chain,
// one per Yahoo Finance endpoint shape.
package yahoo

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"resty.dev/v3"

	"mervalboard/internal/fetcher"
	"mervalboard/internal/instrument"
)

// Default upstream hosts.
const (
	DefaultChartBaseURL   = "https://query1.finance.yahoo.com"
	DefaultSummaryBaseURL = "https://query2.finance.yahoo.com"
	DefaultBatchBaseURL   = "https://query1.finance.yahoo.com"
)

// apiError is the error envelope every endpoint embeds next to "result".
type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// endpoint holds what every source needs to reach its upstream.
type endpoint struct {
	name    string
	baseURL string
	relay   fetcher.Relay
	client  *resty.Client
	logger  *slog.Logger
}

func newEndpoint(name, baseURL string, relay fetcher.Relay, client *resty.Client, logger *slog.Logger) endpoint {
	if client == nil {
		client = fetcher.NewHTTPClient(fetcher.DefaultTimeout)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return endpoint{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		relay:   relay,
		client:  client,
		logger:  logger,
	}
}

// Name returns the source name.
func (e endpoint) Name() string {
	return e.name
}

// url joins the base URL, the path segments and the query, then applies the relay.
func (e endpoint) url(query url.Values, segments ...string) string {
	var b strings.Builder
	b.WriteString(e.baseURL)
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	if len(query) > 0 {
		b.WriteByte('?')
		b.WriteString(query.Encode())
	}
	return e.relay.Wrap(b.String())
}

// resolve absorbs a failed fetch into an unavailable quote.
func (e endpoint) resolve(inst instrument.Instrument, q fetcher.Quote, err error) fetcher.Quote {
	if err != nil {
		fetcher.LogUnavailable(e.logger, e.name, inst.Symbol, err)
		return fetcher.Unavailable()
	}
	return q
}

func (e endpoint) getJSON(ctx context.Context, rawURL string, result any) error {
	return fetcher.GetJSON(ctx, e.client, rawURL, result)
}

func upstreamError(err *apiError) error {
	if err == nil {
		return nil
	}
	return fetcher.NewValidationError("upstream error " + err.Code + ": " + err.Description)
}
