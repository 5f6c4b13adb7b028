package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	normalFg = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#dddddd"}
	dimFg    = lipgloss.AdaptiveColor{Light: "#A49FA5", Dark: "#777777"}

	cream     = lipgloss.AdaptiveColor{Light: "#FFFDF5", Dark: "#FFFDF5"}
	fuchsia   = lipgloss.Color("#EE6FF8")
	green     = lipgloss.Color("#04B575")
	red       = lipgloss.AdaptiveColor{Light: "#FF4672", Dark: "#ED567A"}
	mintGreen = lipgloss.AdaptiveColor{Light: "#89F0CB", Dark: "#89F0CB"}
	darkGreen = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#1C8760"}

	statusBarNoteFg = lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}
	statusBarBg     = lipgloss.AdaptiveColor{Light: "#E6E6E6", Dark: "#242424"}

	logoStyle = lipgloss.NewStyle().
			Foreground(cream).
			Background(fuchsia).
			Bold(true)

	statusBarNoteStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(statusBarBg).
				Render

	statusBarInfoStyle = lipgloss.NewStyle().
				Foreground(lipgloss.AdaptiveColor{Light: "#949494", Dark: "#5A5A5A"}).
				Background(statusBarBg).
				Render

	statusBarHelpStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(lipgloss.AdaptiveColor{Light: "#DCDCDC", Dark: "#323232"}).
				Render

	statusBarMessageStyle = lipgloss.NewStyle().
				Foreground(mintGreen).
				Background(darkGreen).
				Render

	statusBarErrorStyle = lipgloss.NewStyle().
				Foreground(cream).
				Background(red).
				Render

	headerStyle = lipgloss.NewStyle().
			Foreground(dimFg).
			Render

	paragraphStyle = lipgloss.NewStyle().
			Foreground(dimFg).
			Render

	currentParagraphStyle = lipgloss.NewStyle().
				Foreground(normalFg).
				Render

	spokenWordStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("226")).
			Foreground(lipgloss.Color("0")).
			Bold(true).
			Render

	errorTitleStyle = lipgloss.NewStyle().
			Foreground(cream).
			Background(red).
			Padding(0, 1).
			Render
)

func logoView() string {
	return logoStyle.Render(" Read Aloud ")
}

// Lightweight version of reflow's indent function.
func indent(s string, n int) string {
	if n <= 0 || s == "" {
		return s
	}
	l := strings.Split(s, "\n")
	b := strings.Builder{}
	i := strings.Repeat(" ", n)
	for _, v := range l {
		b.WriteString(i + v + "\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}
