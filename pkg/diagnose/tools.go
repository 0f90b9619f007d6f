package diagnose

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/mattn/go-shellwords"
	log "github.com/sirupsen/logrus"

	"github.com/abshkbh/agentctl/pkg/action"
	"github.com/abshkbh/agentctl/pkg/dispatch"
)

// AllowedCommands mirrors the agent's execute allowlist.
var AllowedCommands = []string{"pwd", "ls -la", "whoami", "php -v", "mysql --version"}

// NormalizeCommand parses cmd with shell quoting rules and rejoins the words
// with single spaces. Commands outside AllowedCommands are rejected.
func NormalizeCommand(cmd string) (string, error) {
	parser := shellwords.NewParser()
	parts, err := parser.Parse(cmd)
	if err != nil {
		return "", fmt.Errorf("failed to parse command string: %w", err)
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("empty command string")
	}
	normalized := strings.Join(parts, " ")
	if !slices.Contains(AllowedCommands, normalized) {
		return "", fmt.Errorf("command %q not allowed, allowed: %s", normalized, strings.Join(AllowedCommands, ", "))
	}
	return normalized, nil
}

// Execute runs one allowlisted command on the agent and prints its output.
func (w *Workflow) Execute(ctx context.Context, cmd string) (string, error) {
	normalized, err := NormalizeCommand(cmd)
	if err != nil {
		return "", err
	}
	log.WithField("cmd", normalized).Debug("executing remote command")

	payload, err := w.dispatcher.Dispatch(ctx, action.Execute, map[string]string{"cmd": normalized})
	if err == nil {
		var resp struct {
			Output string `json:"output"`
		}
		if err = decodePayload(action.Execute, payload, &resp); err == nil {
			w.reporter.Printf("%s", resp.Output)
			return resp.Output, nil
		}
	}
	w.reporter.Error("execute %q failed: %s", normalized, dispatch.Describe(err))
	return "", err
}

// ReadFile fetches one of the files the agent allows reading.
func (w *Workflow) ReadFile(ctx context.Context, file string) (*FileContent, error) {
	payload, err := w.dispatcher.Dispatch(ctx, action.ReadFile, map[string]string{"file": file})
	var content FileContent
	if err == nil {
		err = decodePayload(action.ReadFile, payload, &content)
	}
	if err == nil && content.Error != "" {
		err = fmt.Errorf("%s: %s", file, content.Error)
	}
	if err != nil {
		w.reporter.Error("read %s failed: %s", file, dispatch.Describe(err))
		return nil, err
	}
	w.reporter.Printf("%s", content.Content)
	return &content, nil
}

// WriteHtaccess replaces the remote .htaccess after confirmation. The agent
// keeps a timestamped backup of the previous file. ok is false when the
// operator declined.
func (w *Workflow) WriteHtaccess(ctx context.Context, content string) (ok bool, err error) {
	if UnguardedOptions(content) {
		w.reporter.Warn("New content has an unprotected Options directive - this often causes 500 errors!")
	}
	if !w.confirm(fmt.Sprintf("Overwrite remote %s with %d bytes? (yes/no): ", htaccessFile, len(content))) {
		w.reporter.Printf("Aborted, %s left unchanged.\n", htaccessFile)
		return false, nil
	}

	payload, err := w.dispatcher.DispatchConfirmed(ctx, action.WriteFile, map[string]string{
		"file":    htaccessFile,
		"content": content,
	})
	var resp struct {
		BytesWritten int64 `json:"bytes_written"`
	}
	if err == nil {
		err = decodePayload(action.WriteFile, payload, &resp)
	}
	if err != nil {
		w.reporter.Error("write %s failed: %s", htaccessFile, dispatch.Describe(err))
		return false, err
	}
	w.reporter.Success("Wrote %d bytes to %s", resp.BytesWritten, htaccessFile)
	return true, nil
}
