package token

import (
	"fmt"
	"time"
)

// Namespace identifies which agent endpoint a token authenticates against.
type Namespace string

const (
	Files Namespace = "files"
	Debug Namespace = "debug"
)

const dateLayout = "20060102"

var prefixes = map[Namespace]string{
	Files: "agent",
	Debug: "debug",
}

// Token is the shared secret attached to every request for one namespace.
//
// A derived token embeds the local calendar date at construction and is never
// refreshed. A session that crosses midnight keeps sending the old value and the
// agent will start rejecting it.
type Token struct {
	Namespace Namespace
	Value     string
	Derived   bool
}

// New returns the override unchanged when it is non-empty, otherwise the
// date-derived token for the namespace computed from now.
func New(ns Namespace, override string, now time.Time) (Token, error) {
	prefix, ok := prefixes[ns]
	if !ok {
		return Token{}, fmt.Errorf("unknown token namespace: %q", ns)
	}
	if override != "" {
		return Token{Namespace: ns, Value: override}, nil
	}
	return Token{
		Namespace: ns,
		Value:     prefix + "-" + now.Format(dateLayout),
		Derived:   true,
	}, nil
}

// Current returns the token value.
func (t Token) Current() string {
	return t.Value
}

func (t Token) String() string {
	return t.Value
}
