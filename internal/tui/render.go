package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mohammad-safakhou/itturia/internal/agent/core"
	"github.com/mohammad-safakhou/itturia/internal/helpers"
)

var (
	actionStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	queryStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	acceptedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	refineStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	questionStyle = lipgloss.NewStyle().Bold(true)
	answerStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// RenderStep formats one loop step for a terminal.
func RenderStep(s core.Step) string {
	var b strings.Builder
	b.WriteString(actionStyle.Render("• " + s.Action))
	if s.Description != "" {
		b.WriteString("  " + dimStyle.Render(s.Description))
	}
	for _, e := range s.Results {
		if line := renderEntry(e); line != "" {
			b.WriteString("\n    " + line)
		}
	}
	return b.String()
}

func renderEntry(e core.StepEntry) string {
	switch c := e.Content.(type) {
	case string:
		return queryStyle.Render(c)
	case core.DocumentContent:
		ref := c.Reference
		if ref == "" {
			ref = c.Title
		}
		line := fmt.Sprintf("%s %s", ref, dimStyle.Render(fmt.Sprintf("(%.2f)", c.Score)))
		if len(c.Highlights) > 0 {
			line += " " + helpers.Truncate(c.Highlights[0], 120, "…")
		}
		return line
	case core.EvaluationContent:
		status := refineStyle.Render(c.Status)
		if c.Status == "accepted" {
			status = acceptedStyle.Render(c.Status)
		}
		return fmt.Sprintf("%s %.2f %s", status, c.Confidence, c.Explanation)
	}
	return ""
}

// RenderResult formats the answer box followed by its sources.
func RenderResult(r core.Result, width int) string {
	box := answerStyle
	if width > 4 {
		box = box.Width(width - 4)
	}
	var b strings.Builder
	b.WriteString(box.Render(r.Answer))
	if len(r.Sources) > 0 {
		b.WriteString("\n" + dimStyle.Render("מקורות:"))
		for _, s := range r.Sources {
			ref := s.Reference
			if ref == "" {
				ref = s.Title
			}
			b.WriteString(fmt.Sprintf("\n  %s %s", ref, dimStyle.Render(s.Path)))
		}
	}
	b.WriteString("\n" + dimStyle.Render(fmt.Sprintf("%s after %d round(s), %s", r.Outcome, r.Rounds, r.Elapsed.Round(time.Millisecond))))
	return b.String()
}
