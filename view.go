package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"

	"blockmsg/helpers"
	"blockmsg/views/accounts"
	"blockmsg/views/board"
	logview "blockmsg/views/log"
	"blockmsg/views/network"
	walletview "blockmsg/views/wallet"
)

// -------------------- VIEW --------------------

func (m *model) renderApprovalDialog() string {
	dialogBoxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#874BFD")).
		Padding(1, 2).
		Background(cPanel)

	title := lipgloss.NewStyle().
		Width(56).
		Align(lipgloss.Center).
		Render(helpers.FadeString("Wallet request", "#F25D94", "#EDFF82"))

	help := lipgloss.NewStyle().
		Foreground(cMuted).
		Align(lipgloss.Center).
		Width(56).
		MarginTop(1).
		Render("←/→: Choose • Enter: Confirm • Esc: Reject")

	ui := lipgloss.JoinVertical(lipgloss.Left, title, "", m.approvalForm.View(), help)

	// Center the dialog on screen
	return lipgloss.Place(
		m.w, m.h,
		lipgloss.Center, lipgloss.Center,
		dialogBoxStyle.Render(ui),
	)
}

func (m *model) globalHeader() string {
	availableWidth := helpers.Max(0, m.w-8) // Account for panel padding

	// Active account
	var addrDisplay string
	if m.state.Session != nil {
		addrDisplay = lipgloss.NewStyle().
			Foreground(cAccent2).
			Bold(true).
			Render("Account: " + helpers.FadeString(helpers.ShortenAddr(m.state.Session.Address.Hex()), "#F25D94", "#EDFF82"))
	} else {
		addrDisplay = lipgloss.NewStyle().
			Foreground(cMuted).
			Render("Account: Not connected")
	}

	// Connection status with colored dot
	statusIcon := "○"
	statusColor := lipgloss.Color("#c01c28")
	var statusText string
	switch {
	case m.app.keyring == nil:
		statusText = "No wallet"
	case m.state.Connecting:
		statusText = "Connecting..."
	case m.state.Session == nil:
		statusText = "Disconnected"
	default:
		statusIcon = "●"
		statusColor = cAccent
		statusText = m.state.Network.Name
		if statusText == "" {
			statusText = "Connected"
		}
	}

	statusDisplay := lipgloss.NewStyle().
		Foreground(statusColor).
		Bold(true).
		Render(statusIcon + " " + statusText)

	// Center title
	titleText := lipgloss.NewStyle().
		Foreground(cAccent).
		Bold(true).
		Render(helpers.FadeString("blockmsg", "#7EE787", "#82CFFD"))

	// Calculate widths
	addrWidth := lipgloss.Width(addrDisplay)
	statusWidth := lipgloss.Width(statusDisplay)
	titleWidth := lipgloss.Width(titleText)
	totalOtherWidth := addrWidth + statusWidth + titleWidth

	var headerLine string
	if totalOtherWidth+4 > availableWidth {
		// Not enough space, stack vertically
		headerLine = addrDisplay + "\n" + titleText + "\n" + statusDisplay
	} else {
		// Three-column layout: Account | Title (centered) | Status
		remainingSpace := availableWidth - totalOtherWidth
		leftPadding := remainingSpace / 2
		rightPadding := remainingSpace - leftPadding

		leftSpacer := strings.Repeat(" ", helpers.Max(1, leftPadding))
		rightSpacer := strings.Repeat(" ", helpers.Max(1, rightPadding))

		headerLine = addrDisplay + leftSpacer + titleText + rightSpacer + statusDisplay
	}

	// Add separator line
	separator := lipgloss.NewStyle().
		Foreground(cBorder).
		Render(strings.Repeat("─", availableWidth))

	return headerLine + "\n" + separator
}

func (m *model) View() string {
	if m.w == 0 {
		return ""
	}

	// Overlays take the whole screen
	if m.approvalForm != nil {
		return appStyle.Render(m.renderApprovalDialog())
	}
	if m.showAccountPopup {
		var active common.Address
		if m.state.Session != nil {
			active = m.state.Session.Address
		}
		return appStyle.Render(accounts.Popup(m.w, m.h, m.accountList, m.accountCursor, active))
	}

	headerPanel := panelStyle.Width(helpers.Max(0, m.w-2)).Render(m.globalHeader())

	networks, active := m.app.networks()

	// Wallet | Network split
	half := helpers.Max(0, (m.w-2)/2)
	walletContent := walletview.Render(m.state, active, m.copiedMsg, m.spin.View(), m.showQR)
	items := network.Prerequisites(m.state, m.app.keyring != nil, m.client.Settings().Expectation)
	networkContent := network.Render(items, networks, active.ChainID)

	left := panelStyle.Width(half).Render(walletContent)
	right := panelStyle.Width(helpers.Max(0, m.w-2-half)).Render(networkContent)
	top := lipgloss.JoinHorizontal(lipgloss.Top, left, right)

	// Message board
	inputView := ""
	if m.state.Binding != nil {
		inputView = m.input.View()
	}
	boardContent := board.Render(m.state, inputView, m.editing, m.spin.View())
	boardPanel := panelStyle.Width(helpers.Max(0, m.w-2)).Render(boardContent)

	nav := walletview.Nav(helpers.Max(0, m.w-2), m.state.Connected())
	if m.state.Binding != nil {
		nav = lipgloss.JoinVertical(lipgloss.Left, board.Nav(helpers.Max(0, m.w-2), m.editing), nav)
	}

	sections := []string{headerPanel, top, boardPanel, nav}

	// Add log panel if enabled
	if m.logEnabled {
		sections = append(sections, logview.Render(m.w, m.h, m.logReady, m.logSpinner.View(), m.logViewport))
	}

	return appStyle.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}
