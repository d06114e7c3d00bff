package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"settings-lite/internal/logging"
	"settings-lite/internal/settings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxRequestBodySize = 1 << 20 // 1MB

const settingsPath = "/v1/settings"

var log = logging.For("api")

// HTTPDeps holds dependencies for the HTTP handler.
type HTTPDeps struct {
	Service *Service
	Token   string // empty disables authentication
}

// NewHTTPHandler returns the settings REST API.
func NewHTTPHandler(deps HTTPDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)

	r.Get("/healthz", handleHealth)

	r.Group(func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}
		r.Get(settingsPath, handleGetAll(deps))
		r.Put(settingsPath, handleReplaceAll(deps))
		r.Get(settingsPath+"/*", handleGetKey(deps))
		r.Put(settingsPath+"/*", handlePutKey(deps))
		r.Delete(settingsPath+"/*", handleDeleteKey(deps))
	})

	return r
}

// requestID tags each request with an X-Request-ID and logs it once done.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug("request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleGetAll(deps HTTPDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, settings.NewDocument(deps.Service.Store().Entries()))
	}
}

func handleReplaceAll(deps HTTPDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var doc settings.Document
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid settings document: %v", err)
			return
		}
		entries, err := doc.Entries()
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if err := deps.Service.ReplaceAll(r.Context(), entries); err != nil {
			saveError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleGetKey(deps HTTPDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := keyFromPath(w, r)
		if !ok {
			return
		}
		v, found := deps.Service.Store().Lookup(key)
		if !found {
			httpError(w, http.StatusNotFound, "not_found", "%q: %v", key, settings.ErrMissingKey)
			return
		}
		writeJSON(w, http.StatusOK, v.Record())
	}
}

func handlePutKey(deps HTTPDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := keyFromPath(w, r)
		if !ok {
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var rec settings.Record
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid record: %v", err)
			return
		}
		v, err := settings.FromRecord(rec)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid record: %v", err)
			return
		}
		if err := deps.Service.Set(r.Context(), key, v); err != nil {
			saveError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, v.Record())
	}
}

func handleDeleteKey(deps HTTPDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := keyFromPath(w, r)
		if !ok {
			return
		}
		if err := deps.Service.Remove(r.Context(), key); err != nil {
			saveError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// keyFromPath unescapes the key from the raw path so that keys containing
// "/" or "%" survive the round trip.
func keyFromPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := strings.TrimPrefix(r.URL.EscapedPath(), settingsPath+"/")
	key, err := url.PathUnescape(raw)
	if err != nil || key == "" {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid key %q", raw)
		return "", false
	}
	return key, true
}

// KeyPath returns the URL path for key.
func KeyPath(key string) string {
	return settingsPath + "/" + url.PathEscape(key)
}

func saveError(w http.ResponseWriter, r *http.Request, err error) {
	log.Warn("save failed", zap.String("request_id", w.Header().Get("X-Request-ID")), zap.Error(err))
	errType := "api_error"
	if errors.Is(err, settings.ErrPersistence) {
		errType = "persistence_error"
	}
	httpError(w, http.StatusInternalServerError, errType, "saving settings: %v", err)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
