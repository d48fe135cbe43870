package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mervalboard/internal/board"
	"mervalboard/internal/config"
	"mervalboard/internal/health"
	"mervalboard/internal/instrument"
)

// fakeYahoo serves the three quote endpoints from per-endpoint price tables.
// Symbols missing from a table get a 503 from that endpoint.
type fakeYahoo struct {
	chart   map[string]float64
	summary map[string]float64
	batch   map[string]float64

	// chartDelay stalls every chart response.
	chartDelay time.Duration

	chartHits, summaryHits, batchHits atomic.Int32
}

func (f *fakeYahoo) start(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v8/finance/chart/{symbol}", func(w http.ResponseWriter, r *http.Request) {
		f.chartHits.Add(1)
		if f.chartDelay > 0 {
			select {
			case <-time.After(f.chartDelay):
			case <-r.Context().Done():
				return
			}
		}
		price, ok := f.chart[r.PathValue("symbol")]
		if !ok {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeBody(w, fmt.Sprintf(`{"chart":{"result":[{"meta":{"regularMarketPrice":%v,"previousClose":%v}}],"error":null}}`, price, price/2))
	})

	mux.HandleFunc("GET /v10/finance/quoteSummary/{symbol}", func(w http.ResponseWriter, r *http.Request) {
		f.summaryHits.Add(1)
		price, ok := f.summary[r.PathValue("symbol")]
		if !ok {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeBody(w, fmt.Sprintf(`{"quoteSummary":{"result":[{"price":{"regularMarketPrice":{"raw":%v},"regularMarketChangePercent":{"raw":0.02}}}],"error":null}}`, price))
	})

	mux.HandleFunc("GET /v7/finance/quote", func(w http.ResponseWriter, r *http.Request) {
		f.batchHits.Add(1)
		symbol := r.URL.Query().Get("symbols")
		price, ok := f.batch[symbol]
		if !ok {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeBody(w, fmt.Sprintf(`{"quoteResponse":{"result":[{"symbol":%q,"regularMarketPrice":%v,"regularMarketChangePercent":-1.5}],"error":null}}`, symbol, price))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func writeBody(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		RefreshInterval: time.Hour,
		RequestDelay:    0,
		RequestTimeout:  2 * time.Second,
		SourceRateLimit: 0,
		ChartBaseURL:    baseURL,
		SummaryBaseURL:  baseURL,
		BatchBaseURL:    baseURL,
		LogLevel:        "error",
		LogFormat:       "text",
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func symbols() []string {
	insts := instrument.Merval()
	out := make([]string, len(insts))
	for i, inst := range insts {
		out[i] = inst.Symbol
	}
	return out
}

// TestIntegration_FallbackChain runs a full batch where each endpoint only
// knows part of the instruments.
func TestIntegration_FallbackChain(t *testing.T) {
	all := symbols()
	fake := &fakeYahoo{
		chart:   map[string]float64{},
		summary: map[string]float64{},
		batch:   map[string]float64{},
	}
	// first third from chart, second from summary, the rest from batch,
	// except the last symbol which nobody knows
	for i, sym := range all[:len(all)-1] {
		switch {
		case i < 6:
			fake.chart[sym] = 100
		case i < 12:
			fake.summary[sym] = 200
		default:
			fake.batch[sym] = 300
		}
	}
	server := fake.start(t)

	a := newApp(testConfig(server.URL), testLogger())
	res, err := a.coord.Run(context.Background())
	require.NoError(t, err)

	snap := a.board.Snapshot()
	require.Len(t, snap.Views, len(all))

	for i, v := range snap.Views {
		assert.Equal(t, all[i], v.Symbol)
		assert.False(t, v.Loading, v.Symbol)
	}

	assert.Equal(t, "100", snap.Views[0].Price.Decimal.String())
	assert.Equal(t, "100", snap.Views[0].Change.Decimal.String())
	assert.Equal(t, "200", snap.Views[6].Price.Decimal.String())
	assert.Equal(t, "2", snap.Views[6].Change.Decimal.String())
	assert.Equal(t, "300", snap.Views[12].Price.Decimal.String())
	assert.Equal(t, "-1.5", snap.Views[12].Change.Decimal.String())

	last := snap.Views[len(all)-1]
	assert.False(t, last.Price.Valid)
	assert.Equal(t, board.FetchFailed, last.Error)

	assert.Equal(t, 1, res.Unavailable)
	assert.Equal(t, health.OK, snap.Health)
	assert.NotNil(t, snap.LastUpdated)

	// every instrument hits chart; summary only when chart failed; batch only
	// when both failed
	assert.Equal(t, int32(len(all)), fake.chartHits.Load())
	assert.Equal(t, int32(len(all)-6), fake.summaryHits.Load())
	assert.Equal(t, int32(len(all)-12), fake.batchHits.Load())
}

// TestIntegration_UpstreamDown checks that a total outage still completes the
// run and reports error health.
func TestIntegration_UpstreamDown(t *testing.T) {
	server := (&fakeYahoo{}).start(t)

	a := newApp(testConfig(server.URL), testLogger())
	res, err := a.coord.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, len(symbols()), res.Unavailable)
	assert.Equal(t, health.Error, a.board.Snapshot().Health)
	for _, v := range a.board.Snapshot().Views {
		assert.Equal(t, board.FetchFailed, v.Error)
	}
}

// TestIntegration_SlowSourceFallsThrough checks that a stalled source is cut
// off by the request timeout and the next source answers.
func TestIntegration_SlowSourceFallsThrough(t *testing.T) {
	fake := &fakeYahoo{
		chart:      map[string]float64{},
		summary:    map[string]float64{},
		chartDelay: 2 * time.Second,
	}
	for _, sym := range symbols() {
		fake.chart[sym] = 1
		fake.summary[sym] = 50
	}
	server := fake.start(t)

	cfg := testConfig(server.URL)
	cfg.RequestTimeout = 100 * time.Millisecond

	a := newApp(cfg, testLogger())
	res, err := a.coord.Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, res.Unavailable)
	for _, v := range a.board.Snapshot().Views {
		assert.Equal(t, "50", v.Price.Decimal.String(), v.Symbol)
	}
}

// TestIntegration_API drives the running application through its HTTP API.
func TestIntegration_API(t *testing.T) {
	fake := &fakeYahoo{chart: map[string]float64{}}
	for _, sym := range symbols() {
		fake.chart[sym] = 10
	}
	upstream := fake.start(t)

	a := newApp(testConfig(upstream.URL), testLogger())
	updates, unsubscribe := a.board.Subscribe(256)
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	var out bytes.Buffer
	done := make(chan error, 1)
	go func() { done <- a.run(ctx, "", &out) }()

	first := waitCompleted(t, updates, "")
	assert.Equal(t, health.OK, first.Health)

	apiServer := httptest.NewServer(a.handler)
	defer apiServer.Close()

	resp, err := http.Get(apiServer.URL + "/api/board")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// the run flag clears just after the final publish
	require.Eventually(t, func() bool { return !a.coord.Running() }, time.Second, 5*time.Millisecond)

	resp, err = http.Post(apiServer.URL+"/api/refresh", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	second := waitCompleted(t, updates, first.RunID)
	assert.NotEqual(t, first.RunID, second.RunID)

	// the trigger is recorded once the run returns
	require.Eventually(t, func() bool {
		resp, err := http.Get(apiServer.URL + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		return err == nil && strings.Contains(string(body), `board_batch_triggers_total{result="started",trigger="manual"} 1`)
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancellation")
	}

	printed := out.String()
	assert.Equal(t, 2, strings.Count(printed, "health: ok, unavailable: 0/20"))
	assert.Contains(t, printed, "GGAL.BA: 10.00 (+100.00%)")
}

// TestIntegration_SignalRefresh checks that SIGHUP starts a new batch run.
func TestIntegration_SignalRefresh(t *testing.T) {
	fake := &fakeYahoo{chart: map[string]float64{}}
	for _, sym := range symbols() {
		fake.chart[sym] = 10
	}
	upstream := fake.start(t)

	a := newApp(testConfig(upstream.URL), testLogger())
	updates, unsubscribe := a.board.Subscribe(256)
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.run(ctx, "", io.Discard) }()

	first := waitCompleted(t, updates, "")
	require.Eventually(t, func() bool { return !a.coord.Running() }, time.Second, 5*time.Millisecond)

	a.refresh <- syscall.SIGHUP

	second := waitCompleted(t, updates, first.RunID)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, int32(2*len(symbols())), fake.chartHits.Load())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancellation")
	}
}

// waitCompleted returns the first completed snapshot whose run differs from skip.
func waitCompleted(t *testing.T, updates <-chan board.Snapshot, skip string) board.Snapshot {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case snap, ok := <-updates:
			require.True(t, ok, "board closed")
			if !snap.Running && snap.RunID != "" && snap.RunID != skip {
				return snap
			}
		case <-timeout:
			t.Fatal("no completed run")
		}
	}
}
