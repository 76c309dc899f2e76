// Package cliui provides reusable terminal UI helpers (spinners, step indicators,
// chunk rendering, markdown rendering) for switchboard CLI commands.
package cliui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/papercomputeco/switchboard/pkg/llm"
)

var (
	SuccessMark = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
	StepStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	KeyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	ValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	NameStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	DimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))

	ReasoningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
	ToolStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	ErrorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

// spinnerFrames matches bubbletea's spinner.Dot pattern.
var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// Step prints an animated spinner while fn runs, then replaces it with
// a ✓ or ✗ checkmark and elapsed time.
func Step(w io.Writer, msg string, fn func() error) error {
	done := make(chan struct{})
	stopped := make(chan struct{})
	var mu sync.Mutex

	go func() {
		defer close(stopped)
		frame := 0
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for {
			mu.Lock()
			fmt.Fprintf(w, "\r  %s %s",
				spinnerStyle.Render(spinnerFrames[frame%len(spinnerFrames)]),
				msg,
			)
			mu.Unlock()

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

	mu.Lock()
	fmt.Fprintf(w, "\r  %s %s %s\n",
		Mark(err),
		msg,
		StepStyle.Render(fmt.Sprintf("(%s)", FormatDuration(elapsed))),
	)
	mu.Unlock()

	return err
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

// FormatUsage renders token counts on one line, e.g. "12 in · 40 out · 52 total".
func FormatUsage(u *llm.Usage) string {
	if u == nil {
		return ""
	}
	parts := []string{
		fmt.Sprintf("%d in", u.PromptTokens),
		fmt.Sprintf("%d out", u.CompletionTokens),
		fmt.Sprintf("%d total", u.TotalTokens),
	}
	if u.CacheReadInputTokens > 0 {
		parts = append(parts, fmt.Sprintf("%d cached", u.CacheReadInputTokens))
	}
	return strings.Join(parts, " · ")
}

// RenderChunk returns the styled terminal form of one canonical chunk.
// Text passes through unstyled so it can be streamed as it arrives.
func RenderChunk(c llm.Chunk) string {
	switch c.Kind {
	case llm.ChunkText:
		return c.Text
	case llm.ChunkReasoning:
		return ReasoningStyle.Render(c.Text)
	case llm.ChunkToolCalls:
		var b strings.Builder
		for _, call := range c.ToolCalls {
			if !call.Final {
				continue
			}
			fmt.Fprintf(&b, "\n  %s %s(%s)\n",
				ToolStyle.Render("⚙"),
				NameStyle.Render(call.Name),
				DimStyle.Render(call.Arguments),
			)
		}
		return b.String()
	case llm.ChunkUsage:
		return "\n  " + DimStyle.Render(FormatUsage(c.Usage))
	case llm.ChunkStop:
		return "\n  " + DimStyle.Render("stop: "+c.StopReason) + "\n"
	case llm.ChunkError:
		if c.Err == nil {
			return ""
		}
		return fmt.Sprintf("\n  %s %s %s\n", FailMark, ErrorStyle.Render(string(c.Err.Kind)), c.Err.Message)
	default:
		return ""
	}
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
