package agenttest

import (
	"net/http"
	"net/http/httptest"
	"sync"
)

// DebugAgent answers the debug agent convention with scripted data payloads:
// token and action in the query, {"status": "ok", "data": ...} responses.
type DebugAgent struct {
	recorder
	*httptest.Server

	Token string

	dataMu sync.Mutex
	data   map[string]any
	forms  []map[string]string
}

func NewDebugAgent(token string) *DebugAgent {
	a := &DebugAgent{Token: token, data: map[string]any{}}
	a.Server = newServer(DebugAgentPath, a.handle, loggingMiddleware, a.authMiddleware)
	return a
}

// Endpoint is the agent URL to dispatch to.
func (a *DebugAgent) Endpoint() string {
	return a.URL + DebugAgentPath
}

// Respond sets the data payload returned for action.
func (a *DebugAgent) Respond(action string, data any) {
	a.dataMu.Lock()
	defer a.dataMu.Unlock()
	a.data[action] = data
}

// Forms returns the POST bodies received, in order.
func (a *DebugAgent) Forms() []map[string]string {
	a.dataMu.Lock()
	defer a.dataMu.Unlock()
	return append([]map[string]string(nil), a.forms...)
}

func (a *DebugAgent) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != a.Token {
			a.record(r.URL.Query().Get("action"))
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte("Access Denied."))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *DebugAgent) handle(w http.ResponseWriter, r *http.Request) {
	act := r.URL.Query().Get("action")
	if act == "" {
		act = "info"
	}
	a.record(act)

	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		form := map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		a.dataMu.Lock()
		a.forms = append(a.forms, form)
		a.dataMu.Unlock()
	}

	if c, ok := a.override(act); ok {
		writeCanned(w, c)
		return
	}

	a.dataMu.Lock()
	data, ok := a.data[act]
	a.dataMu.Unlock()

	resp := map[string]any{"status": "ok", "action": act}
	if ok {
		resp["data"] = data
	} else {
		resp["error"] = "Unknown action"
	}
	writeJSON(w, resp)
}
