package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	bannerFrameStyle   = lipgloss.NewStyle().Foreground(colorPrimaryDark)
	bannerSandStyle    = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	bannerTitleStyle   = lipgloss.NewStyle().Foreground(colorText).Bold(true)
	bannerTaglineStyle = lipgloss.NewStyle().Foreground(colorPrimaryLight).Italic(true)
)

// renderBanner draws the hourglass header shown by `status` on a terminal.
func renderBanner(level int) string {
	frame := bannerFrameStyle.Render
	sand := bannerSandStyle.Render("⧗")
	title := bannerTitleStyle.Render("CHRONOQUEST")

	lines := []string{
		"   " + frame("╭───────╮"),
		"   " + frame("│") + "   " + sand + "   " + frame("│") + "  " + title,
		"   " + frame("╰───────╯") + "  " + bannerTaglineStyle.Render(levelTagline(level)),
	}
	return strings.Join(lines, "\n")
}

func levelTagline(level int) string {
	switch {
	case level >= 20:
		return "keeper of the hours"
	case level >= 10:
		return "seasoned wanderer"
	case level >= 5:
		return "steady traveller"
	default:
		return "a journey begins"
	}
}
