// Package webdrivertest is a fake WebDriver hub for tests.
package webdrivertest

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// Screenshot is the PNG payload the hub returns.
var Screenshot = []byte("fake-png-data")

type Hub struct {
	*httptest.Server

	mu        sync.Mutex
	source    func(call int) string
	calls     int
	sessions  int
	deleted   int
	navigated []string
	caps      []map[string]any
	failNew   bool
	user      string
}

// New starts a hub whose page source for the n-th /source call (from 1)
// comes from source.
func New(source func(call int) string) *Hub {
	h := &Hub{source: source}
	h.Server = httptest.NewServer(http.HandlerFunc(h.handle))
	return h
}

// FailSessions makes session creation answer "session not created".
func (h *Hub) FailSessions() {
	h.mu.Lock()
	h.failNew = true
	h.mu.Unlock()
}

func (h *Hub) Sessions() int { h.mu.Lock(); defer h.mu.Unlock(); return h.sessions }
func (h *Hub) Deleted() int  { h.mu.Lock(); defer h.mu.Unlock(); return h.deleted }
func (h *Hub) User() string  { h.mu.Lock(); defer h.mu.Unlock(); return h.user }
func (h *Hub) Navigated() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.navigated...)
}
func (h *Hub) Capabilities() []map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]map[string]any(nil), h.caps...)
}

func (h *Hub) handle(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	if u, _, ok := r.BasicAuth(); ok {
		h.user = u
	}
	path := r.URL.Path

	switch {
	case path == "/session" && r.Method == http.MethodPost:
		if h.failNew {
			w.WriteHeader(http.StatusInternalServerError)
			writeValue(w, map[string]any{"error": "session not created", "message": "no devices"})
			return
		}
		var body struct {
			Capabilities struct {
				AlwaysMatch map[string]any `json:"alwaysMatch"`
			} `json:"capabilities"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		h.caps = append(h.caps, body.Capabilities.AlwaysMatch)
		h.sessions++
		writeValue(w, map[string]any{"sessionId": "test-session", "capabilities": body.Capabilities.AlwaysMatch})
	case !strings.HasPrefix(path, "/session/test-session"):
		w.WriteHeader(http.StatusNotFound)
		writeValue(w, map[string]any{"error": "invalid session id", "message": path})
	case strings.HasSuffix(path, "/url"):
		var body struct {
			URL string `json:"url"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		h.navigated = append(h.navigated, body.URL)
		writeValue(w, nil)
	case strings.HasSuffix(path, "/source"):
		h.calls++
		writeValue(w, h.source(h.calls))
	case strings.HasSuffix(path, "/title"):
		writeValue(w, "Ditto Tasks")
	case strings.HasSuffix(path, "/screenshot"):
		writeValue(w, base64.StdEncoding.EncodeToString(Screenshot))
	case r.Method == http.MethodDelete:
		h.deleted++
		writeValue(w, nil)
	default:
		w.WriteHeader(http.StatusNotFound)
		writeValue(w, map[string]any{"error": "unknown command", "message": path})
	}
}

func writeValue(w http.ResponseWriter, v any) {
	_ = json.NewEncoder(w).Encode(map[string]any{"value": v})
}
