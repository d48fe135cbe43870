// Package board holds the published quote board: one view per instrument,
// the aggregate health and the batch bookkeeping consumers render from.
package board

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"mervalboard/internal/fetcher"
	"mervalboard/internal/health"
	"mervalboard/internal/instrument"
)

// FetchFailed is the error shown for an instrument no source could resolve.
const FetchFailed = "fetch failed"

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("board closed")

// View is the state of a single instrument on the board.
type View struct {
	instrument.Instrument
	fetcher.Quote

	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
}

// LoadingView is the placeholder shown while an instrument is being fetched.
func LoadingView(inst instrument.Instrument) View {
	return View{Instrument: inst, Quote: fetcher.Unavailable(), Loading: true}
}

// ResolvedView is the final view for an instrument once its chain returned.
func ResolvedView(inst instrument.Instrument, q fetcher.Quote) View {
	v := View{Instrument: inst, Quote: q}
	if !q.Available() {
		v.Quote = fetcher.Unavailable()
		v.Error = FetchFailed
	}
	return v
}

// Snapshot is one published state of the board.
type Snapshot struct {
	RunID       string        `json:"run_id,omitempty"`
	Views       []View        `json:"views"`
	Health      health.Status `json:"health"`
	LastUpdated *time.Time    `json:"last_updated"`
	Running     bool          `json:"running"`
}

// Unavailable counts finished views without a price.
func (s Snapshot) Unavailable() int {
	n := 0
	for _, v := range s.Views {
		if !v.Loading && !v.Price.Valid {
			n++
		}
	}
	return n
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Views = make([]View, len(s.Views))
	copy(out.Views, s.Views)
	if s.LastUpdated != nil {
		t := *s.LastUpdated
		out.LastUpdated = &t
	}
	return out
}

// Board is the single shared state written by the batch updater and read
// by every consumer. The view list always holds one entry per instrument,
// in instrument order.
type Board struct {
	instruments []instrument.Instrument

	mu     sync.RWMutex
	snap   Snapshot
	subs   map[chan Snapshot]struct{}
	closed bool
}

// New creates a board with every instrument in its loading state.
func New(instruments []instrument.Instrument) *Board {
	views := make([]View, len(instruments))
	for i, inst := range instruments {
		views[i] = LoadingView(inst)
	}
	return &Board{
		instruments: instruments,
		snap:        Snapshot{Views: views, Health: health.OK},
		subs:        make(map[chan Snapshot]struct{}),
	}
}

// Instruments returns the instruments tracked by the board, in order.
func (b *Board) Instruments() []instrument.Instrument {
	out := make([]instrument.Instrument, len(b.instruments))
	copy(out, b.instruments)
	return out
}

// Snapshot returns a copy of the current state.
func (b *Board) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snap.clone()
}

// Publish replaces the current state and fans it out to subscribers.
// Subscribers that are not keeping up miss the update rather than block it.
func (b *Board) Publish(s Snapshot) error {
	if err := b.validate(s); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	b.snap = s.clone()
	for ch := range b.subs {
		select {
		case ch <- b.snap.clone():
		default:
		}
	}
	return nil
}

func (b *Board) validate(s Snapshot) error {
	if len(s.Views) != len(b.instruments) {
		return fmt.Errorf("snapshot has %d views, board tracks %d instruments", len(s.Views), len(b.instruments))
	}
	for i, v := range s.Views {
		if v.Symbol != b.instruments[i].Symbol {
			return fmt.Errorf("view %d is %s, want %s", i, v.Symbol, b.instruments[i].Symbol)
		}
		if v.Loading && (v.Price.Valid || v.Change.Valid || v.Error != "") {
			return fmt.Errorf("loading view %s carries data", v.Symbol)
		}
		if v.Error != "" && v.Price.Valid {
			return fmt.Errorf("failed view %s carries a price", v.Symbol)
		}
	}
	return nil
}

// Subscribe returns a channel receiving every published snapshot and a
// function that cancels the subscription. The channel is closed on cancel
// or when the board is closed.
func (b *Board) Subscribe(buffer int) (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[ch]; ok {
				delete(b.subs, ch)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Close stops publication. Later Publish calls are discarded.
func (b *Board) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}
