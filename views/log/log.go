package log

import (
	"fmt"

	"blockmsg/helpers"
	"blockmsg/styles"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
)

// Render renders the log panel with dynamic height calculation
func Render(width, height int, logReady bool, logSpinnerView string, vp viewport.Model) string {
	title := lipgloss.NewStyle().
		Foreground(styles.CAccent2).
		Bold(true).
		Render("Log")

	logPanelHeight := Height(height)
	vp.Height = logPanelHeight

	border := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(styles.CBorder).
		Padding(0, 1).
		Width(helpers.Max(0, width-2)).
		Height(logPanelHeight + 2) // +2 for title and spacing

	if !logReady {
		initMsg := "initializing...\n" + logSpinnerView
		return border.Render(title + "\n\n" + initMsg)
	}

	// Show scrollbar info if content is larger than viewport
	scrollInfo := ""
	if vp.TotalLineCount() > 0 {
		scrollPercent := int(vp.ScrollPercent() * 100)
		if vp.TotalLineCount() > vp.Height {
			scrollInfo = lipgloss.NewStyle().
				Foreground(styles.CMuted).
				Render(fmt.Sprintf(" [%d%%]", scrollPercent))
		}
	}

	titleWithScroll := title + scrollInfo

	return border.Render(titleWithScroll + "\n\n" + vp.View())
}

// Height is the number of log lines shown on a screen of the given height:
// a third of the screen, at most 15 and never fewer than 3.
func Height(screen int) int {
	// header, nav, title and borders
	reserved := 10
	available := helpers.Max(5, screen-reserved)
	return helpers.Max(3, helpers.Min(available, helpers.Min(screen/3, 15)))
}
