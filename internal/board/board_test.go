package board

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mervalboard/internal/fetcher"
	"mervalboard/internal/health"
	"mervalboard/internal/testutil"
)

func TestNew_AllLoading(t *testing.T) {
	b := New(testutil.Instruments("A", "B", "C"))
	snap := b.Snapshot()

	require.Len(t, snap.Views, 3)
	for i, sym := range []string{"A", "B", "C"} {
		assert.Equal(t, sym, snap.Views[i].Symbol)
		assert.True(t, snap.Views[i].Loading)
	}
	assert.Equal(t, health.OK, snap.Health)
	assert.Nil(t, snap.LastUpdated)
	assert.False(t, snap.Running)
}

func TestResolvedView(t *testing.T) {
	inst := testutil.Instruments("A")[0]

	ok := ResolvedView(inst, testutil.NewQuote(10, 1))
	assert.False(t, ok.Loading)
	assert.Empty(t, ok.Error)
	assert.True(t, ok.Price.Valid)

	failed := ResolvedView(inst, fetcher.Unavailable())
	assert.False(t, failed.Loading)
	assert.Equal(t, FetchFailed, failed.Error)
	assert.False(t, failed.Price.Valid)
	assert.False(t, failed.Change.Valid)
}

func TestPublish_RejectsBrokenInvariants(t *testing.T) {
	insts := testutil.Instruments("A", "B")
	b := New(insts)

	short := Snapshot{Views: []View{LoadingView(insts[0])}}
	assert.Error(t, b.Publish(short))

	reordered := Snapshot{Views: []View{LoadingView(insts[1]), LoadingView(insts[0])}}
	assert.Error(t, b.Publish(reordered))

	loadingWithPrice := LoadingView(insts[0])
	loadingWithPrice.Quote = testutil.NewQuote(1, 1)
	assert.Error(t, b.Publish(Snapshot{Views: []View{loadingWithPrice, LoadingView(insts[1])}}))

	failedWithPrice := ResolvedView(insts[0], testutil.NewQuote(1, 1))
	failedWithPrice.Error = FetchFailed
	assert.Error(t, b.Publish(Snapshot{Views: []View{failedWithPrice, LoadingView(insts[1])}}))

	assert.True(t, b.Snapshot().Views[0].Loading, "rejected snapshots must not be applied")
}

func TestPublish_Subscribers(t *testing.T) {
	insts := testutil.Instruments("A", "B")
	b := New(insts)

	ch, cancel := b.Subscribe(4)
	defer cancel()

	snap := Snapshot{
		RunID:   "run-1",
		Views:   []View{ResolvedView(insts[0], testutil.NewQuote(5, 0)), LoadingView(insts[1])},
		Health:  health.OK,
		Running: true,
	}
	require.NoError(t, b.Publish(snap))

	select {
	case got := <-ch:
		assert.Equal(t, "run-1", got.RunID)
		assert.True(t, got.Running)
		assert.False(t, got.Views[0].Loading)
		assert.True(t, got.Views[1].Loading)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive snapshot")
	}
}

func TestPublish_SnapshotIsolation(t *testing.T) {
	insts := testutil.Instruments("A")
	b := New(insts)

	views := []View{ResolvedView(insts[0], testutil.NewQuote(5, 0))}
	require.NoError(t, b.Publish(Snapshot{Views: views}))

	views[0].Error = "mutated"
	assert.Empty(t, b.Snapshot().Views[0].Error)

	got := b.Snapshot()
	got.Views[0].Symbol = "Z"
	assert.Equal(t, "A", b.Snapshot().Views[0].Symbol)
}

func TestSubscribe_Cancel(t *testing.T) {
	b := New(testutil.Instruments("A"))
	ch, cancel := b.Subscribe(1)
	cancel()
	cancel()

	_, open := <-ch
	assert.False(t, open)
}

func TestClose(t *testing.T) {
	insts := testutil.Instruments("A")
	b := New(insts)
	ch, cancel := b.Subscribe(1)
	defer cancel()

	b.Close()
	b.Close()

	_, open := <-ch
	assert.False(t, open)

	err := b.Publish(Snapshot{Views: []View{ResolvedView(insts[0], testutil.NewQuote(1, 1))}})
	assert.ErrorIs(t, err, ErrClosed)
	assert.True(t, b.Snapshot().Views[0].Loading)

	late, _ := b.Subscribe(1)
	_, open = <-late
	assert.False(t, open)
}

func TestSnapshot_Unavailable(t *testing.T) {
	insts := testutil.Instruments("A", "B", "C")
	snap := Snapshot{Views: []View{
		ResolvedView(insts[0], fetcher.Unavailable()),
		ResolvedView(insts[1], testutil.NewQuote(1, 1)),
		LoadingView(insts[2]),
	}}
	assert.Equal(t, 1, snap.Unavailable())
}

func TestView_JSON(t *testing.T) {
	inst := testutil.Instruments("A")[0]

	data, err := json.Marshal(ResolvedView(inst, fetcher.Unavailable()))
	require.NoError(t, err)
	assert.JSONEq(t, `{"symbol":"A","name":"A Corp","price":null,"change":null,"loading":false,"error":"fetch failed"}`, string(data))

	data, err = json.Marshal(ResolvedView(inst, testutil.NewQuote(12.5, -1.25)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"symbol":"A","name":"A Corp","price":"12.5","change":"-1.25","loading":false}`, string(data))
}
