package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/GuntLondon/noise-box/internal/adapters/ws"
	"github.com/GuntLondon/noise-box/internal/config"
	"github.com/GuntLondon/noise-box/internal/core"
	"github.com/GuntLondon/noise-box/internal/event"
)

func newTestRouter(t *testing.T) (http.Handler, *core.Registry) {
	t.Helper()
	cfg := &config.Config{
		Mode:       "release",
		StaticPath: t.TempDir(),
		ReadLimit:  32768,
		SendBuffer: 8,
		PingPeriod: time.Minute,
		Secret:     "test-secret",
	}
	bus := event.NewBus()
	reg := core.NewRegistry(bus)
	ctl := ws.NewController(cfg, reg, bus)
	return SetupRouter(context.Background(), cfg, reg, ctl), reg
}

func postHost(t *testing.T, r http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/host", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateNoiseBox(t *testing.T) {
	r, reg := newTestRouter(t)

	w := postHost(t, r, `{"id":"party1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if !reg.NoiseBoxExists("party1") {
		t.Fatal("box must exist after creation")
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp["host_url"] != "/host/party1" || resp["user_url"] != "/party1" {
		t.Fatalf("url mismatch: %v", resp)
	}
}

func TestCreateNoiseBoxRejectsBadNames(t *testing.T) {
	r, reg := newTestRouter(t)

	for _, body := range []string{
		`{"id":""}`,
		`{"id":"has space"}`,
		`{"id":"waaaaaaaaaaaaaaaytoolongname"}`,
		`{}`,
		`not json`,
	} {
		if w := postHost(t, r, body); w.Code != http.StatusBadRequest {
			t.Errorf("body %s: expected 400, got %d", body, w.Code)
		}
	}
	if reg.Stats().NoiseBoxes != 0 {
		t.Fatal("no box may be created from an invalid name")
	}
}

func TestCreateNoiseBoxDuplicate(t *testing.T) {
	r, _ := newTestRouter(t)

	if w := postHost(t, r, `{"id":"party1"}`); w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if w := postHost(t, r, `{"id":"party1"}`); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate, got %d", w.Code)
	}
}

func TestNoiseBoxStatus(t *testing.T) {
	r, reg := newTestRouter(t)
	reg.AddNoiseBox("party1")

	req := httptest.NewRequest(http.MethodGet, "/api/box/party1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/box/nope", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	r, reg := newTestRouter(t)
	reg.AddNoiseBox("a")
	reg.AddNoiseBox("b")

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var s core.Stats
	if err := json.Unmarshal(w.Body.Bytes(), &s); err != nil {
		t.Fatalf("bad stats body: %v", err)
	}
	if s.NoiseBoxes != 2 {
		t.Fatalf("stats mismatch: %+v", s)
	}
}
