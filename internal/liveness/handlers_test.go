package liveness

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

// serve routes one request through the module's routes the way the server
// mounts them.
func serve(t *testing.T, m *Module, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	for _, rt := range m.Routes() {
		mux.HandleFunc(rt.Method+" /api/v1/liveness"+rt.Path, rt.Handler)
	}
	req := httptest.NewRequest(method, "/api/v1/liveness"+path, http.NoBody)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, w.Body.String())
	}
	return v
}

func TestHandleSummary_EmptyBeforeFirstSweep(t *testing.T) {
	m, _ := newTestModule(t, 2, nil)

	w := serve(t, m, http.MethodGet, "/summary")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := decode[map[string]any](t, w)
	if body["success"] != false || body["total"] != float64(0) {
		t.Errorf("summary = %v, want empty", body)
	}
	if outcomes, ok := body["outcomes"].([]any); !ok || len(outcomes) != 0 {
		t.Errorf("outcomes = %v, want empty list", body["outcomes"])
	}

	if w := serve(t, m, http.MethodGet, "/stats"); w.Code != http.StatusNotFound {
		t.Errorf("stats status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestHandleSweep_RunsAndRateLimits(t *testing.T) {
	m, p := newTestModule(t, 3, nil)
	p.setDown("10.0.0.2", true)

	w := serve(t, m, http.MethodPost, "/sweep")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, http.StatusOK, w.Body.String())
	}
	summary := decode[SweepSummary](t, w)
	if !summary.Success || summary.Total != 3 || summary.Online != 2 || summary.Offline != 1 {
		t.Errorf("summary = %+v", summary)
	}

	cached := decode[SweepSummary](t, serve(t, m, http.MethodGet, "/summary"))
	if cached.ID != summary.ID {
		t.Errorf("cached summary id = %q, want %q", cached.ID, summary.ID)
	}
	stats := decode[SweepStats](t, serve(t, m, http.MethodGet, "/stats"))
	if !stats.Done || stats.Processed != 3 {
		t.Errorf("stats = %+v, want done with 3 processed", stats)
	}

	w = serve(t, m, http.MethodPost, "/sweep")
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second sweep status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Content-Type = %q, want problem+json", ct)
	}
}

func TestHandleSweep_ConflictWhileRunning(t *testing.T) {
	m, _ := newTestModule(t, 1, map[string]any{"sweep_rate": 0})

	m.orch.mu.Lock()
	w := serve(t, m, http.MethodPost, "/sweep")
	m.orch.mu.Unlock()

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestHandleSweep_ConflictReturnsToken(t *testing.T) {
	m, _ := newTestModule(t, 1, nil)

	m.orch.mu.Lock()
	w := serve(t, m, http.MethodPost, "/sweep")
	m.orch.mu.Unlock()
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusConflict)
	}

	if w := serve(t, m, http.MethodPost, "/sweep"); w.Code != http.StatusOK {
		t.Errorf("sweep after refused trigger = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestHandleListDevices(t *testing.T) {
	m, p := newTestModule(t, 4, nil)
	p.setDown("10.0.0.1", true)
	m.orch.Sweep(context.Background())

	tests := []struct {
		name     string
		query    string
		wantCode int
		wantLen  int
	}{
		{name: "all", query: "", wantCode: http.StatusOK, wantLen: 4},
		{name: "offline", query: "?status=offline", wantCode: http.StatusOK, wantLen: 1},
		{name: "online", query: "?status=online", wantCode: http.StatusOK, wantLen: 3},
		{name: "unknown", query: "?status=unknown", wantCode: http.StatusOK, wantLen: 0},
		{name: "limit", query: "?limit=2", wantCode: http.StatusOK, wantLen: 2},
		{name: "bad status", query: "?status=sleeping", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, m, http.MethodGet, "/devices"+tt.query)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			recs := decode[[]TargetRecord](t, w)
			if len(recs) != tt.wantLen {
				t.Errorf("len = %d, want %d", len(recs), tt.wantLen)
			}
		})
	}
}

func TestHandleGetDevice_History(t *testing.T) {
	m, _ := newTestModule(t, 1, nil)
	m.orch.Sweep(context.Background())

	rec := decode[TargetRecord](t, serve(t, m, http.MethodGet, "/devices/t-0000"))
	if rec.Target.Address != "10.0.0.1" || rec.State.Status != StatusOnline {
		t.Errorf("record = %+v", rec)
	}

	history := decode[[]HistoryRecord](t, serve(t, m, http.MethodGet, "/devices/t-0000/history"))
	if len(history) != 1 || history[0].Status != StatusOnline {
		t.Errorf("history = %+v", history)
	}

	for _, path := range []string{"/devices/nope", "/devices/nope/history"} {
		if w := serve(t, m, http.MethodGet, path); w.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want %d", path, w.Code, http.StatusNotFound)
		}
	}
}

func TestHandleCheckDevice(t *testing.T) {
	m, p := newTestModule(t, 1, nil)
	p.setDown("10.0.0.1", true)

	w := serve(t, m, http.MethodPost, "/devices/t-0000/check")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, http.StatusOK, w.Body.String())
	}
	res := decode[CheckResult](t, w)
	if res.Outcome.Reachable || res.State.Status != StatusOffline {
		t.Errorf("result = %+v", res)
	}
	if res.Transition == nil || res.Transition.Kind != TransitionWentOffline {
		t.Errorf("transition = %+v, want went_offline", res.Transition)
	}

	if w := serve(t, m, http.MethodPost, "/devices/nope/check"); w.Code != http.StatusNotFound {
		t.Errorf("unknown device status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestHandleAcknowledge_Lifecycle(t *testing.T) {
	m, p := newTestModule(t, 2, nil)
	m.orch.Sweep(context.Background())

	if w := serve(t, m, http.MethodPost, "/devices/t-0000/acknowledge"); w.Code != http.StatusConflict {
		t.Errorf("ack online device status = %d, want %d", w.Code, http.StatusConflict)
	}
	if w := serve(t, m, http.MethodDelete, "/devices/t-0000/acknowledge"); w.Code != http.StatusConflict {
		t.Errorf("unack online device status = %d, want %d", w.Code, http.StatusConflict)
	}
	if w := serve(t, m, http.MethodPost, "/devices/nope/acknowledge"); w.Code != http.StatusNotFound {
		t.Errorf("ack unknown device status = %d, want %d", w.Code, http.StatusNotFound)
	}

	p.setDown("10.0.0.1", true)
	m.orch.Sweep(context.Background())

	w := serve(t, m, http.MethodPost, "/devices/t-0000/acknowledge")
	if w.Code != http.StatusOK {
		t.Fatalf("ack status = %d, want %d (body %s)", w.Code, http.StatusOK, w.Body.String())
	}
	if st := decode[DeviceState](t, w); st.Status != StatusOfflineAck {
		t.Errorf("status after ack = %q, want %q", st.Status, StatusOfflineAck)
	}

	w = serve(t, m, http.MethodDelete, "/devices/t-0000/acknowledge")
	if w.Code != http.StatusOK {
		t.Fatalf("unack status = %d, want %d", w.Code, http.StatusOK)
	}
	st := decode[DeviceState](t, w)
	if st.Status != StatusOffline || st.OfflineSince == nil {
		t.Errorf("state after unack = %+v", st)
	}
}

func TestHandleListAlerts(t *testing.T) {
	m, _ := newTestModule(t, 2, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, a := range []*Alert{
		{ID: "a1", TargetID: "t-0000", Kind: AlertNewlyOffline, Message: "down", TriggeredAt: now.Add(-time.Hour)},
		{ID: "a2", TargetID: "t-0001", Kind: AlertOfflineThreshold, Message: "down long", TriggeredAt: now},
	} {
		if err := m.store.InsertAlert(ctx, a); err != nil {
			t.Fatalf("InsertAlert: %v", err)
		}
	}
	if err := m.store.ResolveAlert(ctx, "a1", now); err != nil {
		t.Fatalf("ResolveAlert: %v", err)
	}

	all := decode[[]Alert](t, serve(t, m, http.MethodGet, "/alerts"))
	if len(all) != 2 {
		t.Errorf("all alerts = %d, want 2", len(all))
	}
	active := decode[[]Alert](t, serve(t, m, http.MethodGet, "/alerts?active=true"))
	if len(active) != 1 || active[0].ID != "a2" {
		t.Errorf("active alerts = %+v, want a2 only", active)
	}
}

func TestHandlers_UninitializedModule(t *testing.T) {
	m := &Module{logger: zap.NewNop()}

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/summary"},
		{http.MethodGet, "/stats"},
		{http.MethodPost, "/sweep"},
		{http.MethodGet, "/devices"},
		{http.MethodGet, "/devices/x"},
		{http.MethodGet, "/devices/x/history"},
		{http.MethodPost, "/devices/x/check"},
		{http.MethodPost, "/devices/x/acknowledge"},
		{http.MethodDelete, "/devices/x/acknowledge"},
		{http.MethodGet, "/alerts"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			if w := serve(t, m, tt.method, tt.path); w.Code != http.StatusServiceUnavailable {
				t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
			}
		})
	}
}
