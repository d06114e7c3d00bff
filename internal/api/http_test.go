package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"settings-lite/internal/settings"
	"settings-lite/internal/settings/memory"
)

type flakyMedium struct {
	*memory.Medium
	fail bool
}

func (f *flakyMedium) Save(ctx context.Context, entries map[string]settings.Value) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.Medium.Save(ctx, entries)
}

func newTestService(t *testing.T) (*Service, *flakyMedium) {
	t.Helper()
	m := &flakyMedium{Medium: memory.New()}
	store, err := settings.Open(m)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewService(store), m
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthNeedsNoAuth(t *testing.T) {
	svc, _ := newTestService(t)
	h := NewHTTPHandler(HTTPDeps{Service: svc, Token: "secret"})

	rec := doRequest(t, h, http.MethodGet, "/healthz", nil, "")
	if rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestAuthRequired(t *testing.T) {
	svc, _ := newTestService(t)
	h := NewHTTPHandler(HTTPDeps{Service: svc, Token: "secret"})

	if rec := doRequest(t, h, http.MethodGet, "/v1/settings", nil, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}
	if rec := doRequest(t, h, http.MethodGet, "/v1/settings", nil, "wrong"); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d, want 401", rec.Code)
	}
	if rec := doRequest(t, h, http.MethodGet, "/v1/settings", nil, "secret"); rec.Code != http.StatusOK {
		t.Errorf("right token: status = %d, want 200", rec.Code)
	}
}

func TestKeyLifecycle(t *testing.T) {
	svc, m := newTestService(t)
	h := NewHTTPHandler(HTTPDeps{Service: svc})

	rec := doRequest(t, h, http.MethodPut, KeyPath("audio/volume"), settings.Record{Kind: "int", Value: "80"}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d: %s", rec.Code, rec.Body)
	}
	if got, err := svc.Store().GetInt("audio/volume"); err != nil || got != 80 {
		t.Errorf("store audio/volume = %d, %v", got, err)
	}
	if m.Saves() != 1 {
		t.Errorf("saves = %d, want 1", m.Saves())
	}

	rec = doRequest(t, h, http.MethodGet, KeyPath("audio/volume"), nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d", rec.Code)
	}
	var got settings.Record
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got != (settings.Record{Kind: "int", Value: "80"}) {
		t.Errorf("GET record = %+v", got)
	}

	if rec := doRequest(t, h, http.MethodDelete, KeyPath("audio/volume"), nil, ""); rec.Code != http.StatusNoContent {
		t.Errorf("DELETE status = %d, want 204", rec.Code)
	}
	if rec := doRequest(t, h, http.MethodDelete, KeyPath("audio/volume"), nil, ""); rec.Code != http.StatusNoContent {
		t.Errorf("second DELETE status = %d, want 204", rec.Code)
	}
	if rec := doRequest(t, h, http.MethodGet, KeyPath("audio/volume"), nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("GET after DELETE status = %d, want 404", rec.Code)
	}
}

func TestKeyWithPercent(t *testing.T) {
	svc, _ := newTestService(t)
	h := NewHTTPHandler(HTTPDeps{Service: svc})

	rec := doRequest(t, h, http.MethodPut, KeyPath("ratio 100%"), settings.Record{Kind: "float", Value: "0.5"}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d: %s", rec.Code, rec.Body)
	}
	if !svc.Store().HasKey("ratio 100%") {
		t.Errorf("keys = %v, want [ratio 100%%]", svc.Store().Keys())
	}
}

func TestPutInvalidRecord(t *testing.T) {
	svc, _ := newTestService(t)
	h := NewHTTPHandler(HTTPDeps{Service: svc})

	rec := doRequest(t, h, http.MethodPut, KeyPath("volume"), settings.Record{Kind: "int", Value: "loud"}, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if svc.Store().HasKey("volume") {
		t.Error("invalid record must not be stored")
	}
}

func TestReplaceAll(t *testing.T) {
	svc, _ := newTestService(t)
	svc.Store().SetString("old", "x")
	h := NewHTTPHandler(HTTPDeps{Service: svc})

	doc := settings.NewDocument(map[string]settings.Value{
		"volume":  settings.IntValue(80),
		"profile": settings.ObjectValue("json", []byte(`{"level":3}`)),
	})
	rec := doRequest(t, h, http.MethodPut, "/v1/settings", doc, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("PUT status = %d: %s", rec.Code, rec.Body)
	}
	if got := svc.Store().Keys(); len(got) != 2 || got[0] != "profile" || got[1] != "volume" {
		t.Errorf("keys = %v, want [profile volume]", got)
	}

	rec = doRequest(t, h, http.MethodGet, "/v1/settings", nil, "")
	var back settings.Document
	if err := json.NewDecoder(rec.Body).Decode(&back); err != nil {
		t.Fatal(err)
	}
	if back.Version != settings.DocumentVersion || len(back.Settings) != 2 {
		t.Errorf("GET document = %+v", back)
	}

	bad := settings.Document{Version: 9}
	if rec := doRequest(t, h, http.MethodPut, "/v1/settings", bad, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("unsupported version: status = %d, want 400", rec.Code)
	}
}

func TestFailedSaveRollsBack(t *testing.T) {
	svc, m := newTestService(t)
	h := NewHTTPHandler(HTTPDeps{Service: svc})

	if rec := doRequest(t, h, http.MethodPut, KeyPath("a"), settings.Record{Kind: "int", Value: "1"}, ""); rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d", rec.Code)
	}

	m.fail = true
	rec := doRequest(t, h, http.MethodPut, KeyPath("a"), settings.Record{Kind: "int", Value: "2"}, "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("PUT with failing medium: status = %d, want 500", rec.Code)
	}
	var body struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	json.NewDecoder(rec.Body).Decode(&body)
	if body.Error.Type != "persistence_error" {
		t.Errorf("error type = %q, want persistence_error", body.Error.Type)
	}
	if got, _ := svc.Store().GetInt("a"); got != 1 {
		t.Errorf("a = %d after failed save, want rolled back to 1", got)
	}

	doc := settings.NewDocument(map[string]settings.Value{"b": settings.BoolValue(true)})
	if rec := doRequest(t, h, http.MethodPut, "/v1/settings", doc, ""); rec.Code != http.StatusInternalServerError {
		t.Fatalf("replace with failing medium: status = %d, want 500", rec.Code)
	}
	if !svc.Store().HasKey("a") || svc.Store().HasKey("b") {
		t.Errorf("keys = %v after failed replace, want [a]", svc.Store().Keys())
	}
}
