package agenttest

import (
	"net/http"
	"net/http/httptest"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// FileAgent is an in-memory file agent: form POSTs, X-Auth-Token header,
// {"success": bool} responses. Field names, types and status codes follow
// remote-file-agent.php.
type FileAgent struct {
	recorder
	*httptest.Server

	Token string

	fsMu   sync.Mutex
	files  map[string]string
	dirs   map[string]bool
	modes  map[string]string
	mtimes map[string]time.Time
}

func NewFileAgent(token string) *FileAgent {
	a := &FileAgent{
		Token:  token,
		files:  map[string]string{},
		dirs:   map[string]bool{".": true},
		modes:  map[string]string{},
		mtimes: map[string]time.Time{},
	}
	a.Server = newServer(FileAgentPath, a.handle, loggingMiddleware)
	return a
}

// Endpoint is the agent URL to dispatch to.
func (a *FileAgent) Endpoint() string {
	return a.URL + FileAgentPath
}

// Put seeds a file.
func (a *FileAgent) Put(p, content string) {
	a.fsMu.Lock()
	defer a.fsMu.Unlock()
	a.files[clean(p)] = content
	a.touch(clean(p))
}

// File returns the stored content of p.
func (a *FileAgent) File(p string) (string, bool) {
	a.fsMu.Lock()
	defer a.fsMu.Unlock()
	c, ok := a.files[clean(p)]
	return c, ok
}

// Mode returns the last mode set on p with chmod.
func (a *FileAgent) Mode(p string) string {
	a.fsMu.Lock()
	defer a.fsMu.Unlock()
	return a.modes[clean(p)]
}

func clean(p string) string {
	return path.Clean(strings.TrimPrefix(p, "/"))
}

// fail mirrors the agent's exception handler: HTTP 400 with success false.
func fail(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	writeJSON(w, map[string]any{"success": false, "error": msg})
}

func (a *FileAgent) touch(p string) {
	a.mtimes[p] = time.Now()
}

func (a *FileAgent) mtime(p string) int64 {
	if t, ok := a.mtimes[p]; ok {
		return t.Unix()
	}
	return time.Now().Unix()
}

func (a *FileAgent) handle(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	act := r.PostForm.Get("action")
	a.record(act)

	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.Header.Get("X-Auth-Token") != a.Token {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		writeJSON(w, map[string]any{"error": "Invalid token"})
		return
	}
	if c, ok := a.override(act); ok {
		writeCanned(w, c)
		return
	}

	raw := r.PostForm.Get("path")
	p := clean(raw)

	a.fsMu.Lock()
	defer a.fsMu.Unlock()

	switch act {
	case "read":
		content, ok := a.files[p]
		if !ok {
			fail(w, "File not found")
			return
		}
		writeJSON(w, map[string]any{
			"success":  true,
			"content":  content,
			"size":     len(content),
			"modified": a.mtime(p),
		})
	case "write":
		if a.dirs[p] {
			fail(w, "Failed to write file")
			return
		}
		if !a.dirs[path.Dir(p)] {
			a.mkdirAll(path.Dir(p))
		}
		content := r.PostForm.Get("content")
		a.files[p] = content
		a.touch(p)
		writeJSON(w, map[string]any{"success": true, "bytes": len(content), "path": raw})
	case "delete":
		if _, ok := a.files[p]; ok {
			delete(a.files, p)
		} else if a.dirs[p] && p != "." {
			delete(a.dirs, p)
		} else {
			fail(w, "File not found")
			return
		}
		delete(a.mtimes, p)
		writeJSON(w, map[string]any{"success": true, "deleted": raw})
	case "list":
		if !a.dirs[p] {
			fail(w, "Invalid directory")
			return
		}
		writeJSON(w, map[string]any{"success": true, "path": raw, "files": a.entries(p)})
	case "exists":
		_, isFile := a.files[p]
		var typ any
		switch {
		case isFile:
			typ = "file"
		case a.dirs[p]:
			typ = "directory"
		}
		writeJSON(w, map[string]any{"success": true, "exists": typ != nil, "type": typ})
	case "mkdir":
		_, isFile := a.files[p]
		if isFile || a.dirs[p] {
			fail(w, "Path already exists")
			return
		}
		a.mkdirAll(p)
		writeJSON(w, map[string]any{"success": true, "created": raw})
	case "chmod":
		mode := r.PostForm.Get("mode")
		_, isFile := a.files[p]
		if !isFile && !a.dirs[p] {
			fail(w, "File not found")
			return
		}
		a.modes[p] = mode
		writeJSON(w, map[string]any{"success": true, "path": raw, "mode": mode})
	case "info":
		writeJSON(w, map[string]any{
			"success": true,
			"server": map[string]any{
				"php_version":     "8.2.12",
				"server_software": "LiteSpeed",
				"document_root":   "/home/site/public_html",
				"base_dir":        "/home/site/public_html",
				"token_date":      time.Now().Format(time.DateOnly),
				"token":           a.Token,
			},
		})
	default:
		fail(w, "Invalid action")
	}
}

func (a *FileAgent) mkdirAll(p string) {
	for ; p != "." && p != "/"; p = path.Dir(p) {
		if !a.dirs[p] {
			a.dirs[p] = true
			a.touch(p)
		}
	}
}

// entries lists dir sorted by name, the way scandir orders it.
func (a *FileAgent) entries(dir string) []map[string]any {
	out := []map[string]any{}
	for p, content := range a.files {
		if path.Dir(p) == dir {
			out = append(out, map[string]any{
				"name":     path.Base(p),
				"path":     p,
				"type":     "file",
				"size":     len(content),
				"modified": a.mtime(p),
			})
		}
	}
	for p := range a.dirs {
		if p != dir && p != "." && path.Dir(p) == dir {
			out = append(out, map[string]any{
				"name":     path.Base(p),
				"path":     p,
				"type":     "directory",
				"size":     nil,
				"modified": a.mtime(p),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i]["name"].(string) < out[j]["name"].(string)
	})
	return out
}
