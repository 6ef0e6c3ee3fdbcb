package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"SyncFM/core/playback"
	"SyncFM/display"

	"github.com/prometheus/client_golang/prometheus"
)

type fakeEngine struct {
	calls   []string
	offset  float64
	sendErr error
}

func (e *fakeEngine) Snapshot() playback.Snapshot {
	return playback.Snapshot{State: "playing", TrackID: "T1", Latency: 0.6}
}

func (e *fakeEngine) RequestResume() error {
	e.calls = append(e.calls, "resume")
	return e.sendErr
}

func (e *fakeEngine) SendPending(v int) error {
	e.calls = append(e.calls, "pending")
	if v != 1 && v != -1 {
		return playback.ErrInvalidCommand
	}
	return e.sendErr
}

func (e *fakeEngine) SendScore(v int) error {
	e.calls = append(e.calls, "score")
	if v < 1 || v > playback.MaxScore {
		return playback.ErrInvalidCommand
	}
	return e.sendErr
}

func (e *fakeEngine) SetLyricOffset(o float64) {
	e.calls = append(e.calls, "offset")
	e.offset = o
}

// inlineCaller runs fn immediately, or fails like a stopped loop.
type inlineCaller struct{ stopped bool }

func (c inlineCaller) Call(ctx context.Context, fn func()) error {
	if c.stopped {
		return playback.ErrLoopStopped
	}
	fn()
	return nil
}

type fixedStatus struct{}

func (fixedStatus) Status() display.Status {
	return display.Status{Lyric: "hello", LyricShown: true, Connected: true}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestStatusHandler(t *testing.T) {
	h := NewHandler(&fakeEngine{}, inlineCaller{}, fixedStatus{}, nil).Router()
	rr := do(t, h, http.MethodGet, "/api/status", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var resp statusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Engine.TrackID != "T1" || resp.Engine.State != "playing" {
		t.Errorf("unexpected engine status %+v", resp.Engine)
	}
	if resp.Display == nil || resp.Display.Lyric != "hello" {
		t.Errorf("unexpected display status %+v", resp.Display)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func TestCommandHandlers(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		sendErr  error
		wantCode int
		wantCall string
	}{
		{"resume", http.MethodPost, "/api/resume", "", nil, http.StatusOK, "resume"},
		{"resume disconnected", http.MethodPost, "/api/resume", "", playback.ErrDisconnected, http.StatusConflict, "resume"},
		{"skip", http.MethodPost, "/api/pending/-1", "", nil, http.StatusOK, "pending"},
		{"pending out of range", http.MethodPost, "/api/pending/2", "", nil, http.StatusBadRequest, "pending"},
		{"pending not a number", http.MethodPost, "/api/pending/x", "", nil, http.StatusBadRequest, ""},
		{"score", http.MethodPost, "/api/score/5", "", nil, http.StatusOK, "score"},
		{"score out of range", http.MethodPost, "/api/score/9", "", nil, http.StatusBadRequest, "score"},
		{"score send failure", http.MethodPost, "/api/score/3", "", errors.New("buffer full"), http.StatusServiceUnavailable, "score"},
		{"offset", http.MethodPut, "/api/lyric/offset", `{"offset":0.4}`, nil, http.StatusOK, "offset"},
		{"offset missing", http.MethodPut, "/api/lyric/offset", `{}`, nil, http.StatusBadRequest, ""},
		{"offset bad json", http.MethodPut, "/api/lyric/offset", `{`, nil, http.StatusBadRequest, ""},
		{"wrong method", http.MethodGet, "/api/resume", "", nil, http.StatusMethodNotAllowed, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &fakeEngine{sendErr: tt.sendErr}
			h := NewHandler(eng, inlineCaller{}, nil, nil).Router()
			rr := do(t, h, tt.method, tt.path, tt.body)
			if rr.Code != tt.wantCode {
				t.Errorf("expected %d, got %d (%s)", tt.wantCode, rr.Code, rr.Body.String())
			}
			got := strings.Join(eng.calls, ",")
			if got != tt.wantCall {
				t.Errorf("expected calls %q, got %q", tt.wantCall, got)
			}
		})
	}
}

func TestLyricOffsetApplied(t *testing.T) {
	eng := &fakeEngine{}
	h := NewHandler(eng, inlineCaller{}, nil, nil).Router()
	do(t, h, http.MethodPut, "/api/lyric/offset", `{"offset":-0.25}`)
	if eng.offset != -0.25 {
		t.Errorf("expected offset -0.25, got %v", eng.offset)
	}
}

func TestLoopStopped(t *testing.T) {
	h := NewHandler(&fakeEngine{}, inlineCaller{stopped: true}, nil, nil).Router()
	for _, path := range []string{"/api/status", "/api/resume"} {
		method := http.MethodGet
		if path == "/api/resume" {
			method = http.MethodPost
		}
		if rr := do(t, h, method, path, ""); rr.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected 503, got %d", path, rr.Code)
		}
	}
}

func TestPreflight(t *testing.T) {
	h := NewHandler(&fakeEngine{}, inlineCaller{}, nil, nil).Router()
	rr := do(t, h, http.MethodOptions, "/api/resume", "")
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200 for preflight, got %d", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "syncfm_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	h := NewHandler(&fakeEngine{}, inlineCaller{}, nil, reg).Router()
	rr := do(t, h, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "syncfm_test_total 1") {
		t.Errorf("metric missing from %q", rr.Body.String())
	}

	noMetrics := NewHandler(&fakeEngine{}, inlineCaller{}, nil, nil).Router()
	if rr := do(t, noMetrics, http.MethodGet, "/metrics", ""); rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 without a gatherer, got %d", rr.Code)
	}
}
