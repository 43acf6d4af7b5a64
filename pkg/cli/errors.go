package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"gocond/pkg/compiler"
	"gocond/pkg/vm"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

var (
	errorLabelStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	lexemeStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Underline(true)

	gutterStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("8"))
)

type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usageErr(err error) error {
	if err == nil {
		return nil
	}
	return &usageError{err: err}
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return usageErr(cobra.ExactArgs(n)(cmd, args))
	}
}

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ue *usageError
	if errors.As(err, &ue) || strings.HasPrefix(err.Error(), "unknown command") {
		return ExitUsage
	}
	return ExitFailure
}

// render formats err for the terminal, quoting the offending source line
// for lexical and syntax errors.
func (a *app) render(err error) string {
	var sb strings.Builder
	sb.WriteString(errorLabelStyle.Render("error:"))
	sb.WriteString(" ")
	sb.WriteString(err.Error())

	var lexErr *compiler.LexicalError
	var synErr *compiler.SyntaxError
	var rtErr *vm.RuntimeError
	switch {
	case errors.As(err, &lexErr):
		sb.WriteString(a.quote(lexErr.Row, lexErr.Col, 1))
	case errors.As(err, &synErr):
		width := len([]rune(synErr.Token.Text))
		if synErr.Token.Kind == compiler.EOF {
			width = 0
		}
		sb.WriteString(a.quote(synErr.Token.Row, synErr.Token.Col, width))
	case errors.As(err, &rtErr):
		if line, ok := a.sourceMap[rtErr.IP]; ok {
			fmt.Fprintf(&sb, "\n  at listing line %d", line)
		}
	}
	return sb.String()
}

// quote shows source line row with width runes from col highlighted and a
// caret underneath.
func (a *app) quote(row, col, width int) string {
	lines := strings.Split(a.source, "\n")
	if row < 1 || row > len(lines) {
		return ""
	}
	line := []rune(strings.TrimRight(lines[row-1], "\r"))
	start := col - 1
	if start < 0 {
		start = 0
	}
	if start > len(line) {
		start = len(line)
	}
	end := start + width
	if end > len(line) {
		end = len(line)
	}

	gutter := fmt.Sprintf("%4d | ", row)
	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(gutterStyle.Render(gutter))
	sb.WriteString(string(line[:start]))
	sb.WriteString(lexemeStyle.Render(string(line[start:end])))
	sb.WriteString(string(line[end:]))
	sb.WriteString("\n")
	sb.WriteString(gutterStyle.Render("     | "))
	sb.WriteString(strings.Repeat(" ", start))
	sb.WriteString(errorLabelStyle.Render("^"))
	return sb.String()
}
