// Package health classifies how well the last batch run resolved the board.
package health

// Status is the coarse API health shown next to the board.
type Status string

const (
	OK      Status = "ok"
	Limited Status = "limited"
	Error   Status = "error"
)

// limitedThreshold is the absolute number of failures tolerated before the
// board is flagged as limited.
const limitedThreshold = 3

// Classify maps the number of unresolved instruments out of total to a Status.
// A strict majority of failures is an error; more than limitedThreshold
// failures is limited.
func Classify(errorCount, total int) Status {
	switch {
	case 2*errorCount > total:
		return Error
	case errorCount > limitedThreshold:
		return Limited
	default:
		return OK
	}
}

// Degraded reports whether the status warrants a banner.
func (s Status) Degraded() bool {
	return s == Limited || s == Error
}
