// Package fileagent exposes one typed operation per file agent action.
package fileagent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/abshkbh/agentctl/pkg/action"
	"github.com/abshkbh/agentctl/pkg/dispatch"
	"github.com/abshkbh/agentctl/pkg/report"
)

// DefaultListPath is listed when no path is given.
const DefaultListPath = "."

// Dispatcher sends one action to the agent.
type Dispatcher interface {
	Dispatch(ctx context.Context, a action.Action, params map[string]string) (json.RawMessage, error)
}

// Entry is one item of a directory listing. Size is nil for directories.
type Entry struct {
	Name     string    `json:"name"`
	Path     string    `json:"path,omitempty"`
	Type     string    `json:"type"`
	Size     *int64    `json:"size"`
	Perms    string    `json:"perms,omitempty"`
	Modified Timestamp `json:"modified"`
}

func (e Entry) IsDir() bool {
	return e.Type == "directory" || e.Type == "dir"
}

// Existence distinguishes a missing path from one whose state is unknown.
type Existence int

const (
	Unknown Existence = iota
	Missing
	Present
)

func (e Existence) String() string {
	switch e {
	case Present:
		return "exists"
	case Missing:
		return "missing"
	default:
		return "unknown"
	}
}

// Client turns every failure into a printed message and a false or absent
// result. Expected failures are never returned as errors.
type Client struct {
	dispatcher Dispatcher
	reporter   *report.Reporter
}

func New(d Dispatcher, r *report.Reporter) *Client {
	if r == nil {
		r = report.New()
	}
	return &Client{dispatcher: d, reporter: r}
}

func (c *Client) call(ctx context.Context, a action.Action, params map[string]string, out any) error {
	payload, err := c.dispatcher.Dispatch(ctx, a, params)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("unexpected %s payload: %w", a, err)
	}
	return nil
}

// Read returns the file content. ok is false when the read failed, which is
// different from an empty file.
func (c *Client) Read(ctx context.Context, path string) (content string, ok bool) {
	var resp struct {
		Content *string `json:"content"`
	}
	if err := c.call(ctx, action.Read, map[string]string{"path": path}, &resp); err != nil {
		c.reporter.Error("Error reading %s: %s", path, dispatch.Describe(err))
		return "", false
	}
	if resp.Content == nil {
		c.reporter.Error("Error reading %s: response has no content", path)
		return "", false
	}
	return *resp.Content, true
}

// Write stores content at path and returns the byte count the agent reported.
func (c *Client) Write(ctx context.Context, path, content string) (int64, bool) {
	var resp struct {
		Bytes int64 `json:"bytes"`
	}
	params := map[string]string{"path": path, "content": content}
	if err := c.call(ctx, action.Write, params, &resp); err != nil {
		c.reporter.Error("Error writing %s: %s", path, dispatch.Describe(err))
		return 0, false
	}
	c.reporter.Success("Successfully wrote %s to %s", report.Bytes(resp.Bytes), path)
	return resp.Bytes, true
}

func (c *Client) Delete(ctx context.Context, path string) bool {
	if err := c.call(ctx, action.Delete, map[string]string{"path": path}, nil); err != nil {
		c.reporter.Error("Error deleting %s: %s", path, dispatch.Describe(err))
		return false
	}
	c.reporter.Success("Successfully deleted %s", path)
	return true
}

// List returns the entries of a directory in agent order. A nil slice with
// ok false means the listing failed; an empty directory yields an empty,
// non-nil slice.
func (c *Client) List(ctx context.Context, path string) ([]Entry, bool) {
	if path == "" {
		path = DefaultListPath
	}
	var resp struct {
		Files []Entry `json:"files"`
	}
	if err := c.call(ctx, action.List, map[string]string{"path": path}, &resp); err != nil {
		c.reporter.Error("Error listing %s: %s", path, dispatch.Describe(err))
		return nil, false
	}
	if resp.Files == nil {
		resp.Files = []Entry{}
	}
	return resp.Files, true
}

// Exists reports false both for a missing path and for a failed check. Use
// Stat to tell the two apart.
func (c *Client) Exists(ctx context.Context, path string) bool {
	return c.Stat(ctx, path) == Present
}

// Stat is the three state form of Exists.
func (c *Client) Stat(ctx context.Context, path string) Existence {
	var resp struct {
		Exists *bool `json:"exists"`
	}
	if err := c.call(ctx, action.Exists, map[string]string{"path": path}, &resp); err != nil {
		c.reporter.Error("Error checking %s: %s", path, dispatch.Describe(err))
		return Unknown
	}
	switch {
	case resp.Exists == nil:
		return Unknown
	case *resp.Exists:
		return Present
	default:
		return Missing
	}
}

func (c *Client) Mkdir(ctx context.Context, path string) bool {
	if err := c.call(ctx, action.Mkdir, map[string]string{"path": path}, nil); err != nil {
		c.reporter.Error("Error creating directory %s: %s", path, dispatch.Describe(err))
		return false
	}
	c.reporter.Success("Successfully created directory %s", path)
	return true
}

// Chmod sets permissions. mode is passed through as given, e.g. "0644".
func (c *Client) Chmod(ctx context.Context, path, mode string) bool {
	params := map[string]string{"path": path, "mode": mode}
	if err := c.call(ctx, action.Chmod, params, nil); err != nil {
		c.reporter.Error("Error changing permissions of %s: %s", path, dispatch.Describe(err))
		return false
	}
	c.reporter.Success("Successfully changed permissions of %s to %s", path, mode)
	return true
}

// Info returns the raw payload describing the remote environment.
func (c *Client) Info(ctx context.Context) (json.RawMessage, error) {
	payload, err := c.dispatcher.Dispatch(ctx, action.Info, nil)
	if err != nil {
		c.reporter.Error("Error getting server info: %s", dispatch.Describe(err))
		return nil, err
	}
	return payload, nil
}
