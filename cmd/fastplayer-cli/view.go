package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	accent      = lipgloss.Color("2")
	titleStyle  = lipgloss.NewStyle().Foreground(accent).Bold(true)
	labelStyle  = lipgloss.NewStyle().Foreground(accent).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 2)
)

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("fastplayer"))
	b.WriteString("\n\n")

	conn := "connected"
	if !m.connected {
		conn = "disconnected"
		if m.retryIn > 0 {
			conn = fmt.Sprintf("disconnected, retry in %s", m.retryIn)
		}
	}
	writeField(&b, "Server", fmt.Sprintf("%s [%s]", m.url, conn))
	writeField(&b, "State", m.state)
	writeField(&b, "Media", mediaLabel(m.current))

	rec := "off"
	if m.recording {
		rec = "on"
	}
	writeField(&b, "Record", rec)
	if m.lastFile != "" {
		writeField(&b, "Last", m.lastFile)
	}

	b.WriteString("\n")
	for _, line := range m.logs {
		b.WriteString(mutedStyle.Render(line))
		b.WriteString("\n")
	}

	if m.lastErr != "" {
		b.WriteString(errorStyle.Render(m.lastErr))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(labelStyle.Render("> "))
	b.WriteString(m.input)
	b.WriteString("█")

	help := mutedStyle.Render("enter play • ctrl+s stop • ctrl+r record • ctrl+p play recording • esc quit")
	content := lipgloss.JoinVertical(lipgloss.Left, borderStyle.Render(b.String()), help)

	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func writeField(b *strings.Builder, label, value string) {
	b.WriteString(labelStyle.Render(fmt.Sprintf("%-7s", label)))
	b.WriteString(value)
	b.WriteString("\n")
}
