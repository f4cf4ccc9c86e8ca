package observer

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"wanbingo.sim/internal/protocol"
	"wanbingo.sim/internal/sim/runner"
	"wanbingo.sim/internal/sim/stats"
	"wanbingo.sim/internal/sim/tuning"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(zerolog.Nop())
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/observer/bootstrap", s.BootstrapHandler())
	mux.HandleFunc("/v1/observer/ws", s.WSHandler())
	mux.HandleFunc("/metrics", s.MetricsHandler(func(w io.Writer) {
		_, _ = io.WriteString(w, "extra_metric 1\n")
	}))
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return s, ts
}

func dial(t *testing.T, ts *httptest.Server, sub string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/observer/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	if err := conn.WriteMessage(websocket.TextMessage, []byte(sub)); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	return conn
}

func waitObservers(t *testing.T, s *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.Observers() != n {
		if time.Now().After(deadline) {
			t.Fatalf("observers=%d want %d", s.Observers(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		t.Fatalf("decode %s: %v", b, err)
	}
}

func sampleEntry(week int) runner.WeekLogEntry {
	return runner.WeekLogEntry{
		RunID:          "run-1",
		Week:           week,
		Games:          2,
		Wins:           1,
		Losses:         1,
		ConfirmedCount: 24,
		MeanFinal:      2,
		FinalScores:    []float64{0, 4},
	}
}

func TestServer_FansOutWeeksAndDone(t *testing.T) {
	s, ts := newTestServer(t)
	plain := dial(t, ts, `{"type":"SUBSCRIBE","protocol_version":"1.0"}`)
	scored := dial(t, ts, `{"type":"SUBSCRIBE","protocol_version":"1.0","include_scores":true}`)
	waitObservers(t, s, 2)

	s.PublishWeek(sampleEntry(1))

	var a, b protocol.WeekMsg
	readJSON(t, plain, &a)
	readJSON(t, scored, &b)
	if a.Type != protocol.TypeWeek || a.Week != 1 || a.RunID != "run-1" || len(a.FinalScores) != 0 {
		t.Fatalf("plain week: %+v", a)
	}
	if b.Type != protocol.TypeWeek || len(b.FinalScores) != 2 || b.FinalScores[1] != 4 {
		t.Fatalf("scored week: %+v", b)
	}

	agg := stats.NewAggregator()
	agg.RecordWeek(stats.NewWeek(1, 24, []stats.Game{{Final: 0}, {Final: 4}}))
	s.PublishDone(runner.Report{RunInfo: runner.RunInfo{RunID: "run-1"}, Summary: agg.Summary()}, errors.New("boom"))

	var d protocol.DoneMsg
	readJSON(t, plain, &d)
	if d.Type != protocol.TypeDone || d.TotalGames != 2 || d.TotalWins != 1 || d.ErrorCode != protocol.ErrInternal {
		t.Fatalf("done: %+v", d)
	}
}

func TestServer_LateObserverGetsDone(t *testing.T) {
	s, ts := newTestServer(t)
	s.PublishDone(runner.Report{RunInfo: runner.RunInfo{RunID: "run-2"}}, nil)
	conn := dial(t, ts, `{"type":"SUBSCRIBE","protocol_version":"1.0"}`)
	var d protocol.DoneMsg
	readJSON(t, conn, &d)
	if d.Type != protocol.TypeDone || d.RunID != "run-2" || d.ErrorCode != "" {
		t.Fatalf("done: %+v", d)
	}
}

func TestServer_RejectsBadHandshake(t *testing.T) {
	s, ts := newTestServer(t)
	conn := dial(t, ts, `{"type":"HELLO","protocol_version":"1.0"}`)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("err=%v want policy violation close", err)
	}
	if s.Observers() != 0 {
		t.Fatalf("observers=%d", s.Observers())
	}
}

func TestServer_BootstrapAndMetrics(t *testing.T) {
	s, ts := newTestServer(t)
	tun := tuning.Defaults()
	tun.Weeks = 9
	s.SetRun(runner.RunInfo{RunID: "run-3", Tuning: tun, TilesDigest: "d1"})
	s.PublishWeek(sampleEntry(3))

	resp, err := http.Get(ts.URL + "/v1/observer/bootstrap")
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	defer resp.Body.Close()
	var boot protocol.BootstrapResponse
	if err := json.NewDecoder(resp.Body).Decode(&boot); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if boot.RunID != "run-3" || boot.WeeksPlanned != 9 || boot.Latest == nil || boot.Latest.Week != 3 || boot.Done != nil {
		t.Fatalf("bootstrap: %+v", boot)
	}

	mresp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer mresp.Body.Close()
	body, _ := io.ReadAll(mresp.Body)
	for _, want := range []string{"wanbingo_run_week 3\n", "wanbingo_observer_weeks_published_total 1\n", "extra_metric 1\n"} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:5555": true,
		"[::1]:80":       true,
		"10.0.0.4:80":    false,
		"garbage":        false,
	}
	for addr, want := range cases {
		if got := isLoopbackRemote(addr); got != want {
			t.Fatalf("isLoopbackRemote(%q)=%v want %v", addr, got, want)
		}
	}
}
