// Package cli provides hopperctl's terminal output: markdown-rendered
// answers, risk-colored confirmation prompts, and plain status lines. No
// TUI framework - just print, with glamour handling the answer body.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/hopper-project/core/pkg/policy"
)

// Writer provides styled terminal output for hopperctl.
type Writer struct {
	out      io.Writer
	renderer *glamour.TermRenderer
	mu       sync.Mutex

	errorStyle   lipgloss.Style
	warnStyle    lipgloss.Style
	successStyle lipgloss.Style
	infoStyle    lipgloss.Style
	dimStyle     lipgloss.Style
	boldStyle    lipgloss.Style
}

// New creates a Writer over stdout.
func New() *Writer {
	return NewWithOutput(os.Stdout)
}

// NewWithOutput creates a Writer over an arbitrary destination.
func NewWithOutput(out io.Writer) *Writer {
	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	_ = termenv.ColorProfile()

	return &Writer{
		out:      out,
		renderer: renderer,
		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#D00000", Dark: "#FF5555"}).
			Bold(true),
		warnStyle: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#B8860B", Dark: "#FFAA00"}),
		successStyle: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#008000", Dark: "#55FF55"}),
		infoStyle: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#0066CC", Dark: "#5599FF"}),
		dimStyle: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"}),
		boldStyle: lipgloss.NewStyle().Bold(true),
	}
}

// Answer renders the agent's final answer as markdown.
func (w *Writer) Answer(md string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.renderer == nil {
		fmt.Fprintln(w.out, md)
		return
	}
	rendered, err := w.renderer.Render(md)
	if err != nil {
		fmt.Fprintln(w.out, md)
		return
	}
	fmt.Fprint(w.out, rendered)
}

// Error prints an error message in red.
func (w *Writer) Error(format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.out, w.errorStyle.Render("error: "+fmt.Sprintf(format, args...)))
}

// Success prints a success message in green.
func (w *Writer) Success(format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.out, w.successStyle.Render("✓ "+fmt.Sprintf(format, args...)))
}

// Info prints an info message in blue.
func (w *Writer) Info(format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.out, w.infoStyle.Render(fmt.Sprintf(format, args...)))
}

// Dim prints dimmed secondary text.
func (w *Writer) Dim(format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.out, w.dimStyle.Render(fmt.Sprintf(format, args...)))
}

// riskStyle returns the style matching a risk level, escalating from dim
// (safe) through yellow (medium) to bold red (critical).
func (w *Writer) riskStyle(risk policy.RiskLevel) lipgloss.Style {
	switch risk {
	case policy.RiskCritical, policy.RiskHigh:
		return w.errorStyle
	case policy.RiskMedium:
		return w.warnStyle
	default:
		return w.dimStyle
	}
}

// Confirm renders a risk-colored confirmation prompt for toolName and
// reads a yes/no answer from in.
func (w *Writer) Confirm(in io.Reader, toolName, reason string, risk policy.RiskLevel) bool {
	w.mu.Lock()
	style := w.riskStyle(risk)
	fmt.Fprintln(w.out, style.Render(fmt.Sprintf("confirm %s [%s risk]: %s", toolName, risk, reason)))
	fmt.Fprint(w.out, w.boldStyle.Render("proceed? [y/N] "))
	w.mu.Unlock()

	var answer string
	fmt.Fscanln(in, &answer)
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// Divider prints a horizontal rule sized to the terminal width, at most 80
// columns.
func (w *Writer) Divider() {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.out, w.dimStyle.Render(strings.Repeat("─", terminalWidth())))
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width == 0 || width > 80 {
		return 80
	}
	return width
}
