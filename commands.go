package main

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common"

	"blockmsg/dapp"
	"blockmsg/wallet"
)

// -------------------- COMMAND FUNCTIONS --------------------
// Functions that return tea.Cmd for async operations

// effectCmd runs a dApp effect and feeds its outcome back into Update
func effectCmd(ctx context.Context, eff dapp.Effect) tea.Cmd {
	return func() tea.Msg {
		ev := eff(ctx)
		if ev == nil {
			return nil
		}
		return dappEventMsg{ev: ev}
	}
}

// dispatch applies ev to the state and schedules the resulting effects
func (m *model) dispatch(ev dapp.Event) tea.Cmd {
	prev := m.state
	next, effects := m.client.Handle(m.state, ev)
	m.state = next

	if cc, ok := ev.(dapp.ChainChanged); ok && next.Epoch != prev.Epoch {
		m.reload(cc.ChainID)
	}
	if next.Binding == nil && m.editing {
		m.editing = false
		m.input.Blur()
	}
	if m.input.Value() != next.Draft {
		m.input.SetValue(next.Draft)
	}
	m.updateLogViewport()

	cmds := make([]tea.Cmd, 0, len(effects))
	for _, eff := range effects {
		cmds = append(cmds, effectCmd(m.ctx, eff))
	}
	return tea.Batch(cmds...)
}

// initLogViewport initializes the log viewport
func initLogViewport() tea.Cmd {
	return func() tea.Msg {
		return logInitMsg{}
	}
}

// copyToClipboard copies text to clipboard
func copyToClipboard(text, what string) tea.Cmd {
	return func() tea.Msg {
		err := clipboard.WriteAll(text)
		if err == nil {
			return clipboardCopiedMsg{what: what}
		}
		return nil
	}
}

// clearClipboard waits 2 seconds then sends a message to clear clipboard feedback
func clearClipboard() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return clearClipboardMsg{}
	})
}

// selectAccount switches the wallet's active account
func selectAccount(k *wallet.Keyring, addr common.Address) tea.Cmd {
	return func() tea.Msg {
		return walletActionMsg{action: "select account", err: k.SelectAccount(addr)}
	}
}

// lockWallet revokes the dApp's account access
func lockWallet(k *wallet.Keyring) tea.Cmd {
	return func() tea.Msg {
		k.Lock()
		return walletActionMsg{action: "lock"}
	}
}

// promptApprover routes wallet approvals to the approval dialog and waits
// for the user's answer
func promptApprover(send func(tea.Msg)) wallet.Approver {
	return func(ctx context.Context, req wallet.Approval) (bool, error) {
		reply := make(chan bool, 1)
		send(approvalRequestMsg{req: req, reply: reply})
		select {
		case ok := <-reply:
			return ok, nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

// addLog writes a message to the log panel
func (m *model) addLog(logType, message string) {
	if m.logger == nil {
		return
	}

	// Use the logger to write messages
	switch logType {
	case "info":
		m.logger.Info(message)
	case "success":
		m.logger.Info("✓", "msg", message)
	case "error":
		m.logger.Error(message)
	case "warning":
		m.logger.Warn(message)
	case "debug":
		m.logger.Debug(message)
	default:
		m.logger.Print(message)
	}

	// Update viewport content
	m.updateLogViewport()
}

// updateLogViewport refreshes the viewport content with log output
func (m *model) updateLogViewport() {
	if !m.logEnabled || !m.logReady || m.logBuffer == nil {
		return
	}

	// Get content from log buffer
	content := m.logBuffer.String()
	m.logViewport.SetContent(content)
	// Scroll to bottom to show latest entries
	m.logViewport.GotoBottom()
}

// logBuffer is the log panel's backing store. Effects log from their own
// goroutines while View reads it.
type logBuffer struct {
	mu sync.Mutex
	b  strings.Builder
}

func (l *logBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func (l *logBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.String()
}

func (l *logBuffer) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.b.Reset()
}
