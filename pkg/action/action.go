package action

import (
	"fmt"
	"sort"
	"strings"

	"github.com/abshkbh/agentctl/pkg/token"
)

// Action is a named operation understood by an agent.
type Action string

// File agent actions.
const (
	Read   Action = "read"
	Write  Action = "write"
	Delete Action = "delete"
	List   Action = "list"
	Exists Action = "exists"
	Mkdir  Action = "mkdir"
	Chmod  Action = "chmod"
	Info   Action = "info"
)

// Debug agent actions. Info is shared by both agents.
const (
	CheckErrors  Action = "check_errors"
	CheckFiles   Action = "check_files"
	ReadFile     Action = "read_file"
	WriteFile    Action = "write_file"
	FixHtaccess  Action = "fix_htaccess"
	PHPInfo      Action = "phpinfo"
	TestDB       Action = "test_db"
	Execute      Action = "execute"
	SelfDestruct Action = "self_destruct"
)

// Schema describes the fixed parameters of an action.
type Schema struct {
	Required []string
	// Destructive actions mutate or remove remote state and need an explicit
	// confirmation before they are sent.
	Destructive bool
}

var schemas = map[token.Namespace]map[Action]Schema{
	token.Files: {
		Read:   {Required: []string{"path"}},
		Write:  {Required: []string{"path", "content"}},
		Delete: {Required: []string{"path"}},
		List:   {Required: []string{"path"}},
		Exists: {Required: []string{"path"}},
		Mkdir:  {Required: []string{"path"}},
		Chmod:  {Required: []string{"path", "mode"}},
		Info:   {},
	},
	token.Debug: {
		Info:         {},
		CheckErrors:  {},
		CheckFiles:   {},
		ReadFile:     {Required: []string{"file"}},
		WriteFile:    {Required: []string{"file", "content"}, Destructive: true},
		FixHtaccess:  {Destructive: true},
		PHPInfo:      {},
		TestDB:       {Required: []string{"host", "name", "user", "pass"}},
		Execute:      {Required: []string{"cmd"}},
		SelfDestruct: {Destructive: true},
	},
}

// Lookup returns the schema of a in namespace ns.
func Lookup(ns token.Namespace, a Action) (Schema, bool) {
	s, ok := schemas[ns][a]
	return s, ok
}

// Actions lists the vocabulary of a namespace in sorted order.
func Actions(ns token.Namespace) []Action {
	out := make([]Action, 0, len(schemas[ns]))
	for a := range schemas[ns] {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Validate checks a request against the schema: the action must belong to the
// namespace and every required parameter must be present. Empty values are
// allowed since writing an empty file is legitimate.
func Validate(ns token.Namespace, a Action, params map[string]string) (Schema, error) {
	s, ok := Lookup(ns, a)
	if !ok {
		return Schema{}, fmt.Errorf("unknown %s action %q", ns, a)
	}
	var missing []string
	for _, name := range s.Required {
		if _, present := params[name]; !present {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return s, fmt.Errorf("action %q missing parameters: %s", a, strings.Join(missing, ", "))
	}
	for name := range params {
		if name == "action" || name == "token" {
			return s, fmt.Errorf("action %q: parameter %q is reserved", a, name)
		}
	}
	return s, nil
}
