// Package cliui provides reusable terminal UI helpers for engram CLI
// commands: spinners, markdown rendering and fact and session lines.
package cliui

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/papercomputeco/engram/pkg/fact"
	"github.com/papercomputeco/engram/pkg/session"
	"github.com/papercomputeco/engram/pkg/utils"
)

var (
	SuccessMark  = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
	PinMark      = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Render("📌")
	StepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	KeyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("111")).Bold(true)
	ValueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	DimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	ToolStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

// spinnerFrames is the braille dot spinner.
var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// Step prints an animated spinner while fn runs, then replaces it with
// a ✓ or ✗ checkmark and elapsed time.
func Step(w io.Writer, msg string, fn func() error) error {
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		frame := 0
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for {
			fmt.Fprintf(w, "\r  %s %s",
				spinnerStyle.Render(spinnerFrames[frame%len(spinnerFrames)]),
				msg,
			)

			select {
			case <-done:
				return
			case <-ticker.C:
				frame++
			}
		}
	}()

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	close(done)
	<-stopped

	// Clear the spinner line and print final result
	fmt.Fprintf(w, "\r  %s %s %s\n",
		Mark(err),
		msg,
		StepStyle.Render(fmt.Sprintf("(%s)", FormatDuration(elapsed))),
	)

	return err
}

// KeyValue prints an indented "key: value" line.
func KeyValue(w io.Writer, key, value string) {
	fmt.Fprintf(w, "  %s %s\n", KeyStyle.Render(key+":"), ValueStyle.Render(value))
}

// FormatTime renders t in local time, or "never" for the zero time.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04")
}

// Mark returns a ✓ for nil errors or ✗ for non-nil errors.
func Mark(err error) string {
	if err != nil {
		return FailMark
	}
	return SuccessMark
}

// FormatDuration formats a duration for display (e.g. "12ms" or "3.2s").
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// RenderMarkdown renders markdown content for terminal display using glamour.
func RenderMarkdown(content string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return content, err
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content, err
	}

	return rendered, nil
}

// PrintFact writes a one-line fact with its id and scope.
func PrintFact(w io.Writer, f fact.Fact) {
	pin := " "
	if f.Pinned {
		pin = PinMark
	}
	fmt.Fprintf(w, "  %s %s %s %s\n",
		pin,
		DimStyle.Render(f.ID),
		ToolStyle.Render("["+f.Scope+"]"),
		utils.Truncate(utils.FirstLine(f.Content), 100),
	)
}

// PrintSession writes a session header line followed by its project.
func PrintSession(w io.Writer, s session.Session) {
	title := s.Title
	if title == "" {
		title = "(untitled)"
	}
	fmt.Fprintf(w, "  %s %s %s\n",
		ToolStyle.Render("["+s.SourceTool+"]"),
		ValueStyle.Render(utils.Truncate(title, 70)),
		DimStyle.Render(fmt.Sprintf("(%d messages, %s)", s.MessageCount, FormatTime(s.ImportedAt))),
	)
	detail := s.ID
	if s.Project != "" {
		detail += "  " + s.Project
	}
	fmt.Fprintf(w, "    %s\n", DimStyle.Render(detail))
}
