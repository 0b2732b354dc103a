package board

import (
	"strings"

	"blockmsg/dapp"
	"blockmsg/helpers"
	"blockmsg/styles"

	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"
)

// Nav returns the navigation bar for the message board
func Nav(width int, editing bool) string {
	var keys []string
	if editing {
		keys = []string{
			styles.Key("Enter") + " send",
			styles.Key("Esc") + " stop editing",
			styles.Key("ctrl+v") + " paste",
		}
	} else {
		keys = []string{
			styles.Key("i") + " write",
			styles.Key("r") + " refresh",
			styles.Key("h") + " copy tx hash",
		}
	}
	return styles.NavStyle.Width(width).Render(strings.Join(keys, "   "))
}

// Render renders the message board panel: the stored message, the input
// and the status of the latest transaction.
func Render(s dapp.State, inputView string, editing bool, spinnerView string) string {
	h := styles.TitleStyle.Render("Message Board")

	if s.Binding == nil {
		lines := []string{h, ""}
		if s.Err != nil && s.Err.Contract() {
			lines = append(lines, styles.ErrorStyle.Render("⚠ "+s.Err.Message))
		} else if s.Session == nil {
			lines = append(lines, styles.Muted("Connect a wallet to read and write the message."))
		} else {
			lines = append(lines, spinnerView+" binding contract…")
		}
		return strings.Join(lines, "\n")
	}

	sub := styles.Muted("Contract " + s.Binding.Address.Hex())

	var msg string
	switch {
	case s.LoadingMessage && s.Message.Text == "":
		msg = spinnerView + " reading message…"
	case s.Message.Text == "":
		msg = styles.Muted("No message yet.")
	default:
		msg = lipgloss.NewStyle().
			Foreground(styles.CText).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			BorderForeground(styles.CAccent2).
			PaddingLeft(1).
			Render(s.Message.Text)
	}

	var meta string
	if s.Message.Writer != (common.Address{}) {
		meta = styles.Muted("by ") +
			helpers.FadeString(helpers.ShortenAddr(s.Message.Writer.Hex()), "#F25D94", "#EDFF82") +
			styles.Muted(" · updated "+helpers.UpdatedAt(s.Message.UpdatedAt))
		if s.Session != nil && s.Message.Writer == s.Session.Address {
			meta += styles.Muted(" (you)")
		}
	}

	lines := []string{h, sub, "", msg}
	if meta != "" {
		lines = append(lines, meta)
	}
	lines = append(lines, "", inputView, button(s, editing))

	if status := txStatus(s, spinnerView); status != "" {
		lines = append(lines, "", status)
	}
	if s.Err != nil && s.Err.Contract() && s.Tx.Status != dapp.TxError {
		lines = append(lines, "", styles.ErrorStyle.Render("⚠ "+s.Err.Message))
	}
	return strings.Join(lines, "\n")
}

func button(s dapp.State, editing bool) string {
	style := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFF7DB")).
		Padding(0, 3).
		MarginTop(1)
	label := "Send"
	switch {
	case s.Sending:
		label = "Sending…"
		style = style.Background(lipgloss.Color("#888B7E"))
	case editing:
		style = style.Background(lipgloss.Color("#F25D94")).Underline(true)
	default:
		style = style.Background(lipgloss.Color("#888B7E"))
	}
	return style.Render(label)
}

func txStatus(s dapp.State, spinnerView string) string {
	hash := ""
	if s.Tx.Hash != (common.Hash{}) {
		hash = styles.Muted(" tx " + helpers.ShortenHash(s.Tx.Hash))
	}
	switch s.Tx.Status {
	case dapp.TxPending:
		if hash == "" {
			return spinnerView + styles.PendingStyle.Render(" waiting for signature…")
		}
		return spinnerView + styles.PendingStyle.Render(" transaction pending") + hash
	case dapp.TxSuccess:
		return styles.SuccessStyle.Render("✓ message updated") + hash
	case dapp.TxError:
		reason := s.Tx.Reason
		if reason == "" {
			reason = dapp.MsgWriteFailed
		}
		return styles.ErrorStyle.Render("✗ "+reason) + hash
	}
	return ""
}
