// Package diagnose runs the guided diagnostic session against the debug agent.
package diagnose

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/abshkbh/agentctl/pkg/action"
	"github.com/abshkbh/agentctl/pkg/dispatch"
	"github.com/abshkbh/agentctl/pkg/report"
)

const htaccessFile = ".htaccess"

// Dispatcher is the part of dispatch.Dispatcher the workflow uses.
type Dispatcher interface {
	Dispatch(ctx context.Context, a action.Action, params map[string]string) (json.RawMessage, error)
	DispatchConfirmed(ctx context.Context, a action.Action, params map[string]string) (json.RawMessage, error)
}

type Config struct {
	Dispatcher Dispatcher
	Prompter   Prompter
	Reporter   *report.Reporter
	// ArtifactDir receives local artifacts such as the phpinfo dump.
	ArtifactDir string
	// Target is shown in the banner.
	Target string
	Token  string
}

// Workflow runs info, check_errors, check_files and read_file(.htaccess) in
// order, then offers one remediation. A failed stage is reported and the next
// stage runs anyway.
type Workflow struct {
	dispatcher  Dispatcher
	prompter    Prompter
	reporter    *report.Reporter
	artifactDir string
	target      string
	token       string
}

func New(cfg Config) *Workflow {
	if cfg.Reporter == nil {
		cfg.Reporter = report.New()
	}
	if cfg.Prompter == nil {
		cfg.Prompter = NewTerminalPrompter()
	}
	if cfg.ArtifactDir == "" {
		cfg.ArtifactDir = "."
	}
	return &Workflow{
		dispatcher:  cfg.Dispatcher,
		prompter:    cfg.Prompter,
		reporter:    cfg.Reporter,
		artifactDir: cfg.ArtifactDir,
		target:      cfg.Target,
		token:       cfg.Token,
	}
}

// Run executes the whole session and returns what it found.
func (w *Workflow) Run(ctx context.Context) *Session {
	s := newSession()

	w.reporter.Rule()
	w.reporter.Printf("Remote diagnostics\n")
	if w.target != "" {
		w.reporter.Printf("Target: %s\n", w.target)
	}
	if w.token != "" {
		w.reporter.Printf("Token: %s\n", w.token)
	}
	w.reporter.Rule()

	w.Info(ctx, s)
	w.CheckErrors(ctx, s)
	w.CheckFiles(ctx, s)
	w.Htaccess(ctx, s)
	w.Menu(ctx, s)

	log.WithField("failedStages", len(s.Failures)).Debug("diagnostic session finished")
	return s
}

func (w *Workflow) fetch(ctx context.Context, s *Session, stage Stage, a action.Action, params map[string]string, out any) bool {
	payload, err := w.dispatcher.Dispatch(ctx, a, params)
	if err == nil {
		err = decodePayload(a, payload, out)
	}
	if err != nil {
		s.fail(stage, err)
		w.reporter.Error("%s failed: %s", stage, dispatch.Describe(err))
		return false
	}
	return true
}

func decodePayload(a action.Action, payload json.RawMessage, out any) error {
	if out == nil {
		return nil
	}
	if len(payload) == 0 {
		return fmt.Errorf("%s: response has no data", a)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("unexpected %s payload: %w", a, err)
	}
	return nil
}

// Info reports the server environment and every missing required extension.
func (w *Workflow) Info(ctx context.Context, s *Session) {
	w.reporter.Section("Server information")

	var info ServerInfo
	if !w.fetch(ctx, s, StageInfo, action.Info, nil, &info) {
		return
	}
	s.Server = &info

	w.reporter.Success("PHP Version: %s", info.PHPVersion)
	w.reporter.Success("Server: %s", info.ServerSoftware)
	w.reporter.Success("Document Root: %s", info.DocumentRoot)
	w.reporter.Success("Current User: %s", info.User)

	for _, ext := range RequiredExtensions {
		if slices.Contains(info.Extensions, ext) {
			w.reporter.Success("Extension %s: Loaded", ext)
			continue
		}
		s.MissingExtensions = append(s.MissingExtensions, ext)
		w.reporter.Error("Extension %s: NOT LOADED", ext)
	}

	for _, key := range []string{"display_errors", "log_errors", "error_log", "memory_limit", "max_execution_time"} {
		if v, ok := info.IniSettings[key]; ok {
			w.reporter.Indented(fmt.Sprintf("%s = %v", key, v))
		}
	}
}

// CheckErrors prints the recent lines of every log the agent found. Logs that
// do not exist are skipped silently.
func (w *Workflow) CheckErrors(ctx context.Context, s *Session) {
	w.reporter.Section("Error logs")

	var raw json.RawMessage
	if !w.fetch(ctx, s, StageCheckErrors, action.CheckErrors, nil, &raw) {
		return
	}
	fields, err := orderedFields(raw)
	if err != nil {
		s.fail(StageCheckErrors, err)
		w.reporter.Error("%s failed: unexpected payload: %v", StageCheckErrors, err)
		return
	}

	for _, f := range fields {
		var excerpt LogExcerpt
		if err := json.Unmarshal(f.Value, &excerpt); err != nil {
			w.reporter.Warn("%s: unreadable entry", f.Key)
			continue
		}
		excerpt.Name = f.Key
		if !excerpt.Exists {
			continue
		}
		s.Logs = append(s.Logs, excerpt)

		w.reporter.Printf("\n%s (%s):\n", f.Key, report.Bytes(excerpt.Size))
		for _, line := range excerpt.Lines {
			w.reporter.Indented(strings.TrimSpace(line))
		}
	}
}

// CheckFiles reports existence and permissions per critical file.
func (w *Workflow) CheckFiles(ctx context.Context, s *Session) {
	w.reporter.Section("Critical files")

	var raw json.RawMessage
	if !w.fetch(ctx, s, StageCheckFiles, action.CheckFiles, nil, &raw) {
		return
	}
	fields, err := orderedFields(raw)
	if err != nil {
		s.fail(StageCheckFiles, err)
		w.reporter.Error("%s failed: unexpected payload: %v", StageCheckFiles, err)
		return
	}

	for _, f := range fields {
		// The agent sends false for a missing file and an object otherwise.
		status := FileStatus{Name: f.Key}
		if err := json.Unmarshal(f.Value, &status); err == nil && status.Exists {
			w.reporter.Success("%s: exists (perms: %s, %s)", f.Key, status.Perms, report.Bytes(status.Size))
		} else {
			status = FileStatus{Name: f.Key}
			w.reporter.Error("%s: not found", f.Key)
		}
		s.Files = append(s.Files, status)
	}
}

// Htaccess reads .htaccess and applies the UnguardedOptions heuristic.
func (w *Workflow) Htaccess(ctx context.Context, s *Session) {
	w.reporter.Section("Reading " + htaccessFile)

	var file FileContent
	if !w.fetch(ctx, s, StageHtaccess, action.ReadFile, map[string]string{"file": htaccessFile}, &file) {
		return
	}
	if file.Error != "" {
		s.fail(StageHtaccess, fmt.Errorf("%s: %s", htaccessFile, file.Error))
		w.reporter.Error("%s: %s", htaccessFile, file.Error)
		return
	}
	s.Htaccess = &file

	w.reporter.Printf("Current %s (%d lines)\n", htaccessFile, file.Lines)
	if UnguardedOptions(file.Content) {
		s.UnguardedOptions = true
		w.reporter.Warn("Found unprotected Options directive - this often causes 500 errors!")
	}
}
