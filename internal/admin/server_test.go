package admin

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"matchbot/internal/field"
	"matchbot/internal/match"
)

type fakeMatch struct {
	zones   []field.ZoneState
	stopped string
}

func (f *fakeMatch) Status() match.Status {
	return match.Status{MatchID: "m-1", State: "running", Score: 7, Zones: f.zones}
}

func (f *fakeMatch) Zones() []field.ZoneState { return f.zones }

func (f *fakeMatch) ToggleZone(id string, active bool) bool {
	for i := range f.zones {
		if f.zones[i].ID == id && f.zones[i].Active != active {
			f.zones[i].Active = active
			return true
		}
	}
	return false
}

func (f *fakeMatch) Stop(reason string) { f.stopped = reason }

type fakeCord struct{ pulled int }

func (c *fakeCord) Pull() { c.pulled++ }

func newTestServer(cord StartCord) (*Server, *fakeMatch) {
	m := &fakeMatch{zones: []field.ZoneState{{ID: "stock_left", Active: true}}}
	return NewServer(m, cord, slog.New(slog.NewTextHandler(io.Discard, nil))), m
}

func do(s *Server, method, target string) *http.Response {
	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w.Result()
}

func TestHandleStatus(t *testing.T) {
	server, _ := newTestServer(nil)
	resp := do(server, http.MethodGet, "/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status OK, got %v", resp.StatusCode)
	}
	var st match.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if st.MatchID != "m-1" || st.Score != 7 || len(st.Zones) != 1 {
		t.Errorf("unexpected status: %+v", st)
	}
}

func TestHandleIndex(t *testing.T) {
	server, _ := newTestServer(&fakeCord{})
	resp := do(server, http.MethodGet, "/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status OK, got %v", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"Match m-1", "stock_left", "/start"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("index missing %q", want)
		}
	}

	if resp := do(server, http.MethodGet, "/nope"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown path, got %v", resp.StatusCode)
	}
}

func TestHandleToggleZone(t *testing.T) {
	server, m := newTestServer(nil)

	resp := do(server, http.MethodPost, "/zones/toggle?id=stock_left&active=false")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status OK, got %v", resp.StatusCode)
	}
	var out struct {
		Changed bool `json:"changed"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !out.Changed || m.zones[0].Active {
		t.Errorf("zone not toggled: %+v", m.zones)
	}

	// Same state again reports no change.
	resp = do(server, http.MethodPost, "/zones/toggle?id=stock_left&active=false")
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if out.Changed {
		t.Errorf("expected no change")
	}

	if resp := do(server, http.MethodPost, "/zones/toggle?id=ghost&active=true"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown zone, got %v", resp.StatusCode)
	}
	if resp := do(server, http.MethodPost, "/zones/toggle?id=stock_left&active=maybe"); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for bad flag, got %v", resp.StatusCode)
	}
	if resp := do(server, http.MethodGet, "/zones/toggle?id=stock_left&active=true"); resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for GET, got %v", resp.StatusCode)
	}
}

func TestHandleZones(t *testing.T) {
	server, _ := newTestServer(nil)
	resp := do(server, http.MethodGet, "/zones")
	var zones []field.ZoneState
	if err := json.NewDecoder(resp.Body).Decode(&zones); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(zones) != 1 || zones[0].ID != "stock_left" {
		t.Errorf("unexpected zones: %+v", zones)
	}
}

func TestHandleStartAndStop(t *testing.T) {
	server, _ := newTestServer(nil)
	if resp := do(server, http.MethodPost, "/start"); resp.StatusCode != http.StatusConflict {
		t.Errorf("expected conflict without a cord, got %v", resp.StatusCode)
	}

	cord := &fakeCord{}
	server, m := newTestServer(cord)
	if resp := do(server, http.MethodPost, "/start"); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected NoContent, got %v", resp.StatusCode)
	}
	if cord.pulled != 1 {
		t.Errorf("cord pulled %d times", cord.pulled)
	}
	do(server, http.MethodPost, "/stop")
	if m.stopped == "" {
		t.Errorf("stop not forwarded")
	}
}
