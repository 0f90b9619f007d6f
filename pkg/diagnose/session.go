package diagnose

import "encoding/json"

// RequiredExtensions must be loaded for the CMS to run.
var RequiredExtensions = []string{"pdo", "pdo_mysql", "session", "json"}

// Stage names one step of the workflow.
type Stage string

const (
	StageInfo        Stage = "info"
	StageCheckErrors Stage = "check_errors"
	StageCheckFiles  Stage = "check_files"
	StageHtaccess    Stage = "read_file"
	StageRemediation Stage = "remediation"
)

// ServerInfo is the info payload of the debug agent.
type ServerInfo struct {
	PHPVersion     string         `json:"php_version"`
	ServerSoftware string         `json:"server_software"`
	DocumentRoot   string         `json:"document_root"`
	ScriptFilename string         `json:"script_filename"`
	CurrentDir     string         `json:"current_dir"`
	User           string         `json:"user"`
	Extensions     []string       `json:"extensions"`
	IniSettings    map[string]any `json:"ini_settings"`
}

// LogExcerpt is one log source reported by check_errors.
type LogExcerpt struct {
	Name   string   `json:"-"`
	Exists bool     `json:"exists"`
	Size   int64    `json:"size"`
	Lines  []string `json:"last_10_lines"`
}

// FileStatus is one critical file reported by check_files.
type FileStatus struct {
	Name     string `json:"-"`
	Exists   bool   `json:"exists"`
	Size     int64  `json:"size"`
	Perms    string `json:"perms"`
	Owner    string `json:"owner"`
	Modified string `json:"modified"`
}

// FileContent is a read_file payload. Error is set when the agent could not
// find an allowed file.
type FileContent struct {
	Content string `json:"content"`
	Size    int64  `json:"size"`
	Lines   int    `json:"lines"`
	Error   string `json:"error"`
}

// Remediation records the outcome of the menu.
type Remediation struct {
	Choice     string
	Dispatched bool
	Payload    json.RawMessage
	Err        error
}

// Session holds what one workflow run learned. It lives for a single run.
type Session struct {
	Server            *ServerInfo
	MissingExtensions []string
	Logs              []LogExcerpt
	Files             []FileStatus
	Htaccess          *FileContent
	// UnguardedOptions is the result of the .htaccess heuristic.
	UnguardedOptions bool
	Failures         map[Stage]error
	Remediation      *Remediation
}

func newSession() *Session {
	return &Session{Failures: map[Stage]error{}}
}

func (s *Session) fail(stage Stage, err error) {
	s.Failures[stage] = err
}
