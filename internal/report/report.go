// Package report prints completed board runs as plain text.
package report

import (
	"fmt"
	"io"

	"mervalboard/internal/board"
)

// Write prints one line per instrument of snap, followed by a summary line.
func Write(w io.Writer, snap board.Snapshot) error {
	for _, v := range snap.Views {
		if _, err := fmt.Fprintln(w, line(v)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "health: %s, unavailable: %d/%d\n", snap.Health, snap.Unavailable(), len(snap.Views))
	return err
}

func line(v board.View) string {
	switch {
	case v.Loading:
		return fmt.Sprintf("%s: loading", v.Symbol)
	case v.Error != "":
		return fmt.Sprintf("%s: ERROR - %s", v.Symbol, v.Error)
	case !v.Change.Valid:
		return fmt.Sprintf("%s: %s", v.Symbol, v.Price.Decimal.StringFixed(2))
	}

	sign := ""
	if v.Change.Decimal.IsPositive() {
		sign = "+"
	}
	return fmt.Sprintf("%s: %s (%s%s%%)", v.Symbol, v.Price.Decimal.StringFixed(2), sign, v.Change.Decimal.StringFixed(2))
}

// Follow writes every completed run received on updates until the channel
// is closed. In-progress snapshots are skipped.
func Follow(updates <-chan board.Snapshot, w io.Writer) error {
	for snap := range updates {
		if snap.Running || snap.RunID == "" {
			continue
		}
		if _, err := fmt.Fprintf(w, "run %s\n", snap.RunID); err != nil {
			return err
		}
		if err := Write(w, snap); err != nil {
			return err
		}
	}
	return nil
}
