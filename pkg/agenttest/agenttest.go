// Package agenttest runs in-process fake agents speaking both wire conventions.
package agenttest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const (
	FileAgentPath  = "/remote-file-agent.php"
	DebugAgentPath = "/remote-agent.php"
)

// canned is a fixed response injected for one action.
type canned struct {
	status int
	body   string
}

// recorder keeps the ordered list of actions an agent received, including
// rejected ones.
type recorder struct {
	mu        sync.Mutex
	calls     []string
	overrides map[string]canned
}

func (r *recorder) record(action string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, action)
}

// Calls returns the actions received so far.
func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Override makes the agent answer action with a fixed status and body.
func (r *recorder) Override(action string, status int, body string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.overrides == nil {
		r.overrides = map[string]canned{}
	}
	r.overrides[action] = canned{status: status, body: body}
}

func (r *recorder) override(action string) (canned, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.overrides[action]
	return c, ok
}

func writeCanned(w http.ResponseWriter, c canned) {
	w.WriteHeader(c.status)
	_, _ = w.Write([]byte(c.body))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("failed to encode fake agent response")
	}
}

func newServer(path string, handler http.HandlerFunc, middleware ...mux.MiddlewareFunc) *httptest.Server {
	router := mux.NewRouter()
	router.HandleFunc(path, handler).Methods(http.MethodGet, http.MethodPost)
	for _, m := range middleware {
		router.Use(m)
	}
	return httptest.NewServer(router)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Debugf("[fake agent] %s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
