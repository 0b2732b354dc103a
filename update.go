package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/ethereum/go-ethereum/common"

	"blockmsg/dapp"
	"blockmsg/helpers"
)

// -------------------- TEMP FORM STORAGE --------------------
// Temporary form field storage (package-level to avoid pointer-to-copy issues)
var tempApproval bool

// showNextApproval opens the dialog for the oldest pending wallet request
func (m *model) showNextApproval() tea.Cmd {
	if m.approvalForm != nil || len(m.approvals) == 0 {
		return nil
	}
	req := m.approvals[0].req
	tempApproval = true

	m.approvalForm = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(req.Title()).
				Description(req.Detail()).
				Affirmative("Approve").
				Negative("Reject").
				Value(&tempApproval),
		),
	).WithTheme(huh.ThemeCatppuccin()).WithShowHelp(false)

	m.addLog("info", "Wallet request: "+req.Title())
	return m.approvalForm.Init()
}

// answerApproval replies to the request on screen and moves to the next one
func (m *model) answerApproval(ok bool) tea.Cmd {
	if len(m.approvals) == 0 {
		m.approvalForm = nil
		return nil
	}
	pending := m.approvals[0]
	m.approvals = m.approvals[1:]
	m.approvalForm = nil
	pending.reply <- ok
	if ok {
		m.addLog("success", "Approved: "+pending.req.Title())
	} else {
		m.addLog("warning", "Rejected: "+pending.req.Title())
	}
	return m.showNextApproval()
}

// reload resets view state after the wallet moved to another chain
func (m *model) reload(chainID uint64) {
	m.editing = false
	m.input.Blur()
	m.showAccountPopup = false
	m.showQR = false
	m.app.setActiveNetwork(chainID)
}

// -------------------- UPDATE --------------------

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Handle approval form updates first (before message switching)
	var formCmd tea.Cmd
	if m.approvalForm != nil {
		// Intercept ESC key to reject
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.String() {
			case "esc":
				return m, m.answerApproval(false)
			case "ctrl+c":
				return m, m.quit()
			}
		}

		form, cmd := m.approvalForm.Update(msg)
		if f, ok := form.(*huh.Form); ok {
			m.approvalForm = f

			// Check if form is completed
			if m.approvalForm.State == huh.StateCompleted {
				return m, m.answerApproval(tempApproval)
			}

			// Check if form was aborted
			if m.approvalForm.State == huh.StateAborted {
				return m, m.answerApproval(false)
			}
		}
		// Keys belong to the dialog; everything else still reaches the app
		if _, ok := msg.(tea.KeyMsg); ok {
			return m, cmd
		}
		formCmd = cmd
	}

	next, cmd := m.update(msg)
	return next, tea.Batch(formCmd, cmd)
}

func (m *model) update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case logInitMsg:
		if !m.logEnabled {
			return m, nil
		}
		m.logReady = true
		m.addLog("info", "Logger enabled")
		return m, nil

	case tea.WindowSizeMsg:
		m.w, m.h = msg.Width, msg.Height

		// Only initialize viewport if log is enabled
		if m.logEnabled {
			// Width accounts for border and padding
			m.logViewport.Width = helpers.Max(0, msg.Width-6)
			if m.logReady {
				m.updateLogViewport()
			}
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		var cmds []tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		cmds = append(cmds, cmd)
		// Update log spinner too if log is enabled but not ready
		if m.logEnabled && !m.logReady {
			m.logSpinner, cmd = m.logSpinner.Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case dappEventMsg:
		cmd := m.dispatch(msg.ev)
		if ev, ok := msg.ev.(dapp.NetworkSwitched); ok {
			m.app.setActiveNetwork(ev.ChainID)
		}
		return m, cmd

	case approvalRequestMsg:
		m.approvals = append(m.approvals, msg)
		return m, m.showNextApproval()

	case walletActionMsg:
		if msg.err != nil {
			m.addLog("error", fmt.Sprintf("Wallet %s failed: %v", msg.action, msg.err))
		}
		return m, nil

	case clipboardCopiedMsg:
		m.copiedMsg = "✓ Copied " + msg.what + " to clipboard"
		m.copiedMsgTime = time.Now()
		return m, clearClipboard()

	case clearClipboardMsg:
		if time.Since(m.copiedMsgTime) >= 2*time.Second {
			m.copiedMsg = ""
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Handle account list popup
	if m.showAccountPopup {
		switch msg.String() {
		case "up", "k":
			if m.accountCursor > 0 {
				m.accountCursor--
			}
		case "down", "j":
			if m.accountCursor < len(m.accountList)-1 {
				m.accountCursor++
			}
		case "enter":
			m.showAccountPopup = false
			if m.accountCursor >= 0 && m.accountCursor < len(m.accountList) {
				addr := m.accountList[m.accountCursor]
				m.addLog("info", "Selecting account "+helpers.ShortenAddr(addr.Hex()))
				return m, selectAccount(m.app.keyring, addr)
			}
		case "esc", "a":
			m.showAccountPopup = false
		case "ctrl+c":
			return m, m.quit()
		}
		return m, nil
	}

	// Composer keys
	if m.editing {
		switch msg.String() {
		case "ctrl+c":
			return m, m.quit()
		case "esc":
			m.editing = false
			m.input.Blur()
			return m, nil
		case "enter":
			if !m.state.CanWrite() {
				return m, nil
			}
			return m, m.dispatch(dapp.WriteRequested{Text: m.input.Value()})
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		if m.input.Value() != m.state.Draft {
			cmd = tea.Batch(cmd, m.dispatch(dapp.DraftChanged{Text: m.input.Value()}))
		}
		return m, cmd
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return m, m.quit()

	case "l":
		// Toggle logger
		m.logEnabled = !m.logEnabled
		m.app.setLogger(m.logEnabled)
		if m.logEnabled {
			// Initialize viewport when enabling
			if m.w > 0 {
				m.logViewport.Width = m.w - 6
			}
			m.logReady = false
			return m, tea.Batch(initLogViewport(), m.logSpinner.Tick)
		}
		// Clear logs when disabling
		m.logBuffer.Reset()
		m.logReady = false
		return m, nil

	case "pageup", "pagedown":
		// Allow scrolling in log viewport when enabled
		if m.logEnabled && m.logReady {
			var cmd tea.Cmd
			m.logViewport, cmd = m.logViewport.Update(msg)
			return m, cmd
		}
		return m, nil

	case "c":
		if m.state.Connected() {
			return m, nil
		}
		return m, m.dispatch(dapp.ConnectRequested{})

	case "d":
		if !m.state.Connected() {
			return m, nil
		}
		m.showQR = false
		return m, m.dispatch(dapp.DisconnectRequested{})

	case "n":
		return m, m.dispatch(dapp.SwitchRequested{})

	case "N":
		return m, m.dispatch(dapp.AddRequested{})

	case "r":
		return m, m.dispatch(dapp.ReadRequested{})

	case "i", "tab":
		if !m.state.CanWrite() {
			return m, nil
		}
		m.editing = true
		return m, m.input.Focus()

	case "a":
		if m.app.keyring == nil || !m.state.Connected() {
			return m, nil
		}
		m.accountList = m.app.keyring.AllAccounts()
		m.accountCursor = 0
		for i, addr := range m.accountList {
			if addr == m.state.Session.Address {
				m.accountCursor = i
				break
			}
		}
		m.showAccountPopup = true
		return m, nil

	case "L":
		if m.app.keyring == nil || !m.state.Connected() {
			return m, nil
		}
		m.addLog("info", "Locking wallet")
		return m, lockWallet(m.app.keyring)

	case "y":
		if !m.state.Connected() {
			return m, nil
		}
		return m, copyToClipboard(m.state.Session.Address.Hex(), "address")

	case "h":
		if m.state.Tx.Hash == (common.Hash{}) {
			return m, nil
		}
		return m, copyToClipboard(m.state.Tx.Hash.Hex(), "transaction hash")

	case "Q":
		if m.state.Connected() {
			m.showQR = !m.showQR
		}
		return m, nil
	}

	return m, nil
}

// quit stops every effect and the event bridge
func (m *model) quit() tea.Cmd {
	for _, pending := range m.approvals {
		pending.reply <- false
	}
	m.approvals = nil
	m.approvalForm = nil
	m.cancel()
	m.client.Bridge().Detach(^uint64(0))
	return tea.Quit
}
