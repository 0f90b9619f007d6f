package diagnose

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter asks the operator for input. The workflow only reads operator input
// through it.
type Prompter interface {
	Ask(prompt string) (string, error)
	// Secret reads a value without echoing it when possible.
	Secret(prompt string) (string, error)
}

// TerminalPrompter reads answers line by line from an input stream.
type TerminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
}

func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{
		in:  bufio.NewReader(os.Stdin),
		out: os.Stdout,
		fd:  int(os.Stdin.Fd()),
	}
}

// Ask returns the answer without its line ending. Other whitespace is kept.
func (p *TerminalPrompter) Ask(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (p *TerminalPrompter) Secret(prompt string) (string, error) {
	if !term.IsTerminal(p.fd) {
		return p.Ask(prompt)
	}
	fmt.Fprint(p.out, prompt)
	secret, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return string(secret), nil
}

// ScriptedPrompter replays fixed answers and records every prompt shown.
type ScriptedPrompter struct {
	Answers []string
	Prompts []string
}

func (p *ScriptedPrompter) Ask(prompt string) (string, error) {
	p.Prompts = append(p.Prompts, prompt)
	if len(p.Answers) == 0 {
		return "", io.EOF
	}
	answer := p.Answers[0]
	p.Answers = p.Answers[1:]
	return answer, nil
}

func (p *ScriptedPrompter) Secret(prompt string) (string, error) {
	return p.Ask(prompt)
}
