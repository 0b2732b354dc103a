package accounts

import (
	"fmt"
	"strings"

	"blockmsg/helpers"
	"blockmsg/styles"

	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"
)

// RenderList renders the wallet's accounts. cursor is the highlighted row,
// active the account the session uses.
func RenderList(accounts []common.Address, cursor int, active common.Address) string {
	if len(accounts) == 0 {
		return lipgloss.NewStyle().Foreground(styles.CMuted).Render("The wallet holds no accounts.")
	}

	var items []string
	for i, acct := range accounts {
		var marker, short, full string
		var itemStyle lipgloss.Style

		if i == cursor {
			marker = lipgloss.NewStyle().Foreground(styles.CAccent2).Bold(true).Render("▶ ")
			itemStyle = lipgloss.NewStyle().Foreground(styles.CAccent2).Bold(true)
			full = lipgloss.NewStyle().Foreground(styles.CText).Render(acct.Hex())
			short = helpers.ShortenAddr(acct.Hex())
		} else {
			marker = "  "
			itemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#e1a2aa"))
			full = helpers.FadeString(acct.Hex(), "#7D5AFC", "#FF87D7")
			short = helpers.FadeString(helpers.ShortenAddr(acct.Hex()), "#F25D94", "#EDFF82")
		}

		short = fmt.Sprintf("Account %d - %s", i+1, short)
		if acct == active {
			short = "✓ " + short
		}
		items = append(items, marker+itemStyle.Render(short)+"\n  "+full)
	}
	return strings.Join(items, "\n\n")
}

// Popup renders the account picker dialog centered in a w×h screen
func Popup(w, h int, accounts []common.Address, cursor int, active common.Address) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.CBorder).
		Padding(1, 2).
		Background(styles.CPanel)

	title := lipgloss.NewStyle().
		Foreground(styles.CAccent2).
		Bold(true).
		Align(lipgloss.Center).
		Width(60).
		Render("Select Account")

	help := lipgloss.NewStyle().
		Foreground(styles.CMuted).
		Align(lipgloss.Center).
		Width(60).
		MarginTop(1).
		Render("↑/↓: Navigate • Enter: Select • Esc: Cancel")

	ui := lipgloss.JoinVertical(lipgloss.Left, title, "", RenderList(accounts, cursor, active), help)
	return lipgloss.Place(w, h, lipgloss.Center, lipgloss.Center, box.Render(ui))
}
