package fileagent

import (
	"context"
	"fmt"
	"time"
)

// SelfTestFile is the scratch file used by SelfTest.
const SelfTestFile = "test-agent.txt"

type StepResult struct {
	Name   string
	Passed bool
}

type SelfTestReport struct {
	Steps []StepResult
}

// Passed reports whether every step passed.
func (r SelfTestReport) Passed() bool {
	for _, s := range r.Steps {
		if !s.Passed {
			return false
		}
	}
	return len(r.Steps) > 0
}

// SelfTest runs write, read back, exists, list and delete against
// SelfTestFile. Every step runs even when an earlier one failed.
func (c *Client) SelfTest(ctx context.Context, now time.Time) SelfTestReport {
	var rep SelfTestReport
	step := func(name string, passed bool) {
		rep.Steps = append(rep.Steps, StepResult{Name: name, Passed: passed})
		if passed {
			c.reporter.Success("%s test passed", name)
		} else {
			c.reporter.Error("%s test failed", name)
		}
	}

	content := fmt.Sprintf("Test from agent at %s", now.Format(time.RFC3339Nano))

	_, ok := c.Write(ctx, SelfTestFile, content)
	step("Write", ok)

	got, ok := c.Read(ctx, SelfTestFile)
	step("Read", ok && got == content)

	step("Exists", c.Exists(ctx, SelfTestFile))

	entries, ok := c.List(ctx, DefaultListPath)
	listed := false
	for _, e := range entries {
		if e.Name == SelfTestFile {
			listed = true
			break
		}
	}
	step("List", ok && listed)

	step("Delete", c.Delete(ctx, SelfTestFile))
	return rep
}
