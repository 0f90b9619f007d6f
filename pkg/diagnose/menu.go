package diagnose

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/abshkbh/agentctl/pkg/action"
	"github.com/abshkbh/agentctl/pkg/dispatch"
)

// Menu choices.
const (
	ChoiceExit         = "0"
	ChoiceFixHtaccess  = "1"
	ChoicePHPInfo      = "2"
	ChoiceTestDB       = "3"
	ChoiceSelfDestruct = "4"
)

const (
	// confirmAnswer is the only input accepted as a confirmation.
	confirmAnswer = "yes"

	PHPInfoFile   = "phpinfo.html"
	defaultDBHost = "localhost"
)

// Menu offers the remediation actions and runs at most one of them.
func (w *Workflow) Menu(ctx context.Context, s *Session) {
	w.reporter.Printf("\n")
	w.reporter.Rule()
	w.reporter.Printf("Available fixes:\n")
	fix := "1. Replace .htaccess with minimal version"
	if s.UnguardedOptions {
		fix += " (recommended)"
	}
	w.reporter.Printf("%s\n", fix)
	w.reporter.Printf("2. Get full phpinfo()\n")
	w.reporter.Printf("3. Test database connection\n")
	w.reporter.Printf("4. Self-destruct agent\n")
	w.reporter.Printf("0. Exit\n")

	choice, err := w.prompter.Ask("\nEnter choice (0-4): ")
	if err != nil {
		w.promptFailed(err)
		return
	}

	rem := &Remediation{Choice: choice}
	s.Remediation = rem

	switch choice {
	case ChoiceFixHtaccess:
		w.fixHtaccess(ctx, rem)
	case ChoicePHPInfo:
		w.dumpPHPInfo(ctx, rem)
	case ChoiceTestDB:
		w.testDB(ctx, rem)
	case ChoiceSelfDestruct:
		w.selfDestruct(ctx, rem)
	default:
		log.WithField("choice", choice).Debug("no remediation selected")
	}
	if rem.Err != nil {
		s.fail(StageRemediation, rem.Err)
	}
}

func (w *Workflow) promptFailed(err error) {
	if errors.Is(err, io.EOF) {
		w.reporter.Printf("\n")
		return
	}
	w.reporter.Error("failed to read input: %v", err)
}

// confirm is true only when the operator types exactly "yes".
func (w *Workflow) confirm(prompt string) bool {
	answer, err := w.prompter.Ask(prompt)
	if err != nil {
		w.promptFailed(err)
		return false
	}
	return answer == confirmAnswer
}

func (w *Workflow) run(ctx context.Context, rem *Remediation, a action.Action, params map[string]string, confirmed bool) bool {
	var payload json.RawMessage
	var err error
	if confirmed {
		payload, err = w.dispatcher.DispatchConfirmed(ctx, a, params)
	} else {
		payload, err = w.dispatcher.Dispatch(ctx, a, params)
	}
	rem.Dispatched = true
	if err != nil {
		rem.Err = err
		w.reporter.Error("%s failed: %s", a, dispatch.Describe(err))
		return false
	}
	rem.Payload = payload
	return true
}

func (w *Workflow) fixHtaccess(ctx context.Context, rem *Remediation) {
	if !w.confirm("Replace remote .htaccess with a minimal version? (yes/no): ") {
		w.reporter.Printf("Aborted, .htaccess left unchanged.\n")
		return
	}
	w.reporter.Printf("Fixing .htaccess...\n")
	if !w.run(ctx, rem, action.FixHtaccess, nil, true) {
		return
	}
	var resp struct {
		Message string `json:"message"`
	}
	if err := decodePayload(action.FixHtaccess, rem.Payload, &resp); err != nil {
		w.reporter.Warn("%v", err)
		return
	}
	w.reporter.Success("%s", resp.Message)
}

func (w *Workflow) dumpPHPInfo(ctx context.Context, rem *Remediation) {
	if !w.run(ctx, rem, action.PHPInfo, nil, false) {
		return
	}
	var resp struct {
		PHPInfo string `json:"phpinfo"`
	}
	if err := decodePayload(action.PHPInfo, rem.Payload, &resp); err != nil {
		rem.Err = err
		w.reporter.Error("%v", err)
		return
	}

	dst := filepath.Join(w.artifactDir, PHPInfoFile)
	if err := os.WriteFile(dst, []byte(resp.PHPInfo), 0o644); err != nil {
		rem.Err = fmt.Errorf("failed to save phpinfo: %w", err)
		w.reporter.Error("%v", rem.Err)
		return
	}
	w.reporter.Success("Saved phpinfo to %s", dst)
}

func (w *Workflow) testDB(ctx context.Context, rem *Remediation) {
	host, err := w.prompter.Ask("DB Host [localhost]: ")
	if err != nil {
		w.promptFailed(err)
		return
	}
	if host == "" {
		host = defaultDBHost
	}
	name, err := w.prompter.Ask("DB Name: ")
	if err != nil {
		w.promptFailed(err)
		return
	}
	user, err := w.prompter.Ask("DB User: ")
	if err != nil {
		w.promptFailed(err)
		return
	}
	pass, err := w.prompter.Secret("DB Pass: ")
	if err != nil {
		w.promptFailed(err)
		return
	}

	params := map[string]string{"host": host, "name": name, "user": user, "pass": pass}
	if !w.run(ctx, rem, action.TestDB, params, false) {
		return
	}
	var resp struct {
		Connected bool   `json:"connected"`
		Message   string `json:"message"`
		Error     string `json:"error"`
	}
	if err := decodePayload(action.TestDB, rem.Payload, &resp); err != nil {
		rem.Err = err
		w.reporter.Error("%v", err)
		return
	}
	if resp.Connected {
		w.reporter.Success("%s", resp.Message)
		return
	}
	w.reporter.Error("%s", resp.Error)
}

func (w *Workflow) selfDestruct(ctx context.Context, rem *Remediation) {
	if !w.confirm("Delete remote agent? (yes/no): ") {
		w.reporter.Printf("Aborted, agent left in place.\n")
		return
	}
	if !w.run(ctx, rem, action.SelfDestruct, nil, true) {
		return
	}
	w.reporter.Success("Agent deleted")
}
