package fetcher

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Quote is the normalized outcome of a source call.
// Price and Change both invalid means the instrument is unavailable;
// a valid Price with an invalid Change is a legitimate partial quote.
type Quote struct {
	// Price is the last traded value in the instrument's native currency.
	Price decimal.NullDecimal `json:"price"`

	// Change is the signed percentage versus the previous close.
	Change decimal.NullDecimal `json:"change"`
}

// Unavailable returns the quote every failed source call collapses to.
func Unavailable() Quote {
	return Quote{}
}

// Available reports whether the quote carries a price.
func (q Quote) Available() bool {
	return q.Price.Valid
}

// NewQuote builds a quote from an upstream price and change. A missing or
// non-positive price yields Unavailable().
func NewQuote(price, change decimal.NullDecimal) Quote {
	if !price.Valid || !price.Decimal.IsPositive() {
		return Unavailable()
	}
	return Quote{Price: price, Change: change}
}

// ChangePercent computes (price - previousClose) / previousClose * 100.
// The result is invalid when either input is missing or previousClose is zero.
func ChangePercent(price, previousClose decimal.NullDecimal) decimal.NullDecimal {
	if !price.Valid || !previousClose.Valid || previousClose.Decimal.IsZero() {
		return decimal.NullDecimal{}
	}
	pct := price.Decimal.Sub(previousClose.Decimal).
		Div(previousClose.Decimal).
		Mul(hundred)
	return decimal.NewNullDecimal(pct)
}

// FirstValid returns the first valid value, or an invalid one.
func FirstValid(values ...decimal.NullDecimal) decimal.NullDecimal {
	for _, v := range values {
		if v.Valid {
			return v
		}
	}
	return decimal.NullDecimal{}
}
