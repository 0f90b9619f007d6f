// Package report prints operator facing status lines.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// Reporter writes styled status lines. Styling is dropped automatically when
// the output is not a terminal.
type Reporter struct {
	out io.Writer

	successStyle lipgloss.Style
	warnStyle    lipgloss.Style
	errorStyle   lipgloss.Style
	headerStyle  lipgloss.Style
	dimStyle     lipgloss.Style
}

func New() *Reporter {
	return NewWithOutput(os.Stdout)
}

func NewWithOutput(out io.Writer) *Reporter {
	renderer := lipgloss.NewRenderer(out)
	return &Reporter{
		out: out,
		successStyle: renderer.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#008000", Dark: "#55FF55"}),
		warnStyle: renderer.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#B8860B", Dark: "#FFAA00"}),
		errorStyle: renderer.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#D00000", Dark: "#FF5555"}).
			Bold(true),
		headerStyle: renderer.NewStyle().Bold(true),
		dimStyle: renderer.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"}),
	}
}

func (r *Reporter) line(style lipgloss.Style, mark, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if mark != "" {
		msg = mark + " " + msg
	}
	fmt.Fprintln(r.out, style.Render(msg))
}

func (r *Reporter) Success(format string, args ...any) {
	r.line(r.successStyle, "✓", format, args...)
}

func (r *Reporter) Warn(format string, args ...any) {
	r.line(r.warnStyle, "!", format, args...)
}

func (r *Reporter) Error(format string, args ...any) {
	r.line(r.errorStyle, "✗", format, args...)
}

// Section starts a titled block.
func (r *Reporter) Section(title string) {
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, r.headerStyle.Render("== "+title))
}

func (r *Reporter) Printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

// Indented prints text two spaces in, dimmed.
func (r *Reporter) Indented(text string) {
	fmt.Fprintln(r.out, r.dimStyle.Render("  "+text))
}

// Rule prints a separator line.
func (r *Reporter) Rule() {
	fmt.Fprintln(r.out, strings.Repeat("=", 60))
}

// Bytes renders an agent supplied size. Negative sizes render as zero.
func Bytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}
