// Package cloudtest serves an in-memory stand-in for the store execute
// endpoint. It understands the handful of statements the cloud client emits.
package cloudtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

type Server struct {
	*httptest.Server

	Key string

	mu       sync.Mutex
	docs     map[string]map[string]any
	requests []string
	failNext int
}

// New starts a fake store accepting the given bearer key.
func New(key string) *Server {
	s := &Server{Key: key, docs: map[string]map[string]any{}}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Put stores a document directly, bypassing the API.
func (s *Server) Put(doc map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc["_id"].(string)] = clone(doc)
}

// Doc returns a copy of a stored document.
func (s *Server) Doc(id string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	return clone(d), ok
}

// Statements returns every statement received so far.
func (s *Server) Statements() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// FailNext makes the next n requests answer 503.
func (s *Server) FailNext(n int) {
	s.mu.Lock()
	s.failNext = n
	s.mu.Unlock()
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Path != "/api/v4/store/execute" {
		http.NotFound(w, r)
		return
	}
	if r.Header.Get("Authorization") != "Bearer "+s.Key {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var st struct {
		Statement string         `json:"statement"`
		Args      map[string]any `json:"args"`
	}
	if err := json.NewDecoder(r.Body).Decode(&st); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, st.Statement)
	if s.failNext > 0 {
		s.failNext--
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	q := st.Statement
	items := []any{}
	var mutated []any
	switch {
	case strings.HasPrefix(q, "INSERT INTO"):
		doc, _ := st.Args["newTask"].(map[string]any)
		id, _ := doc["_id"].(string)
		if id == "" {
			http.Error(w, "missing _id", http.StatusBadRequest)
			return
		}
		s.docs[id] = clone(doc)
		mutated = append(mutated, id)
	case strings.HasPrefix(q, "SELECT") && strings.Contains(q, "_id = :docId"):
		if d, ok := s.docs[str(st.Args["docId"])]; ok {
			items = append(items, map[string]any{"value": clone(d)})
		}
	case strings.HasPrefix(q, "SELECT"):
		onlyLive := strings.Contains(q, "deleted = false")
		for _, d := range s.docs {
			if onlyLive && d["deleted"] == true {
				continue
			}
			items = append(items, clone(d))
		}
	case strings.HasPrefix(q, "UPDATE"):
		id := str(st.Args["id"])
		d, ok := s.docs[id]
		if ok {
			switch {
			case strings.Contains(q, "deleted = true"):
				d["deleted"] = true
			case strings.Contains(q, "done = :done"):
				d["done"] = st.Args["done"]
			case strings.Contains(q, "title = :title"):
				d["title"] = st.Args["title"]
			}
			mutated = append(mutated, id)
		}
	default:
		http.Error(w, "unsupported statement", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"items":              items,
		"mutatedDocumentIds": mutated,
		"transactionId":      len(s.requests),
	})
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func clone(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
