package testutil

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"mervalboard/internal/fetcher"
	"mervalboard/internal/instrument"
)

// MockSource is a mock implementation of the fetcher.Source interface for testing.
// It records every symbol it was asked for.
type MockSource struct {
	NameValue string
	QuoteFunc func(ctx context.Context, inst instrument.Instrument) fetcher.Quote

	mu    sync.Mutex
	calls []string
}

// Name implements the fetcher.Source interface
func (m *MockSource) Name() string {
	if m.NameValue != "" {
		return m.NameValue
	}
	return "mock"
}

// Quote implements the fetcher.Source interface
func (m *MockSource) Quote(ctx context.Context, inst instrument.Instrument) fetcher.Quote {
	m.mu.Lock()
	m.calls = append(m.calls, inst.Symbol)
	m.mu.Unlock()

	if m.QuoteFunc != nil {
		return m.QuoteFunc(ctx, inst)
	}
	return fetcher.Unavailable()
}

// Calls returns the symbols requested so far, in order.
func (m *MockSource) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times Quote was invoked.
func (m *MockSource) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// NewMockSource creates a mock source that resolves the symbols in prices
// and reports every other symbol as unavailable.
func NewMockSource(name string, prices map[string]float64) *MockSource {
	return &MockSource{
		NameValue: name,
		QuoteFunc: func(ctx context.Context, inst instrument.Instrument) fetcher.Quote {
			p, ok := prices[inst.Symbol]
			if !ok {
				return fetcher.Unavailable()
			}
			return NewQuote(p, 1.5)
		},
	}
}

// NewQuote builds a resolved quote from plain floats.
func NewQuote(price, change float64) fetcher.Quote {
	return fetcher.Quote{
		Price:  decimal.NewNullDecimal(decimal.NewFromFloat(price)),
		Change: decimal.NewNullDecimal(decimal.NewFromFloat(change)),
	}
}

// Instruments returns a small instrument list with the given symbols.
func Instruments(symbols ...string) []instrument.Instrument {
	out := make([]instrument.Instrument, len(symbols))
	for i, s := range symbols {
		out[i] = instrument.Instrument{Symbol: s, Name: s + " Corp"}
	}
	return out
}
