package main

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/glamour"
)

// styles groups the lipgloss styles used by CLI output.
type styles struct {
	title   lipgloss.Style
	section lipgloss.Style
	hint    lipgloss.Style
	status  lipgloss.Style
	alert   lipgloss.Style
}

// newStyles builds CLI styles; plain output drops colors and emphasis.
func newStyles(plain bool) styles {
	if plain {
		s := lipgloss.NewStyle()
		return styles{title: s, section: s, hint: s, status: s, alert: s}
	}
	return styles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252")),
		section: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62")),
		hint:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		status:  lipgloss.NewStyle().Foreground(lipgloss.Color("239")),
		alert:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
	}
}

// markdownRenderer renders step content as terminal markdown.
type markdownRenderer struct {
	style    string
	width    int
	renderer *glamour.TermRenderer
}

// newMarkdownRenderer builds a renderer for one glamour standard style; "auto" detects the terminal.
func newMarkdownRenderer(style string, width int) *markdownRenderer {
	if width < 24 {
		width = 24
	}
	return &markdownRenderer{style: strings.TrimSpace(strings.ToLower(style)), width: width}
}

// render converts markdown into styled terminal text, falling back to the raw input.
func (r *markdownRenderer) render(markdown string) string {
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return ""
	}
	if r.renderer == nil {
		styleOpt := glamour.WithAutoStyle()
		if r.style != "" && r.style != "auto" {
			styleOpt = glamour.WithStandardStyle(r.style)
		}
		renderer, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(r.width))
		if err != nil {
			return markdown
		}
		r.renderer = renderer
	}
	rendered, err := r.renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(rendered, "\n")
}

// progressBar renders a fixed-width completion bar.
func progressBar(percent float64, width int) string {
	if width <= 0 {
		width = 20
	}
	percent = max(0, min(100, percent))
	filled := int(percent / 100 * float64(width))
	return fmt.Sprintf("[%s%s] %3.0f%%", strings.Repeat("#", filled), strings.Repeat(".", width-filled), percent)
}
