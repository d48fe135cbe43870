package fetcher

import (
	"context"

	"mervalboard/internal/instrument"
)

// Source is implemented by every upstream quote adapter.
// Quote never fails: any network, status or decoding problem is logged by
// the adapter and reported as Unavailable().
type Source interface {
	// Name identifies the source in logs, metrics and rate limits.
	Name() string

	// Quote issues exactly one outbound request for the instrument.
	Quote(ctx context.Context, inst instrument.Instrument) Quote
}
