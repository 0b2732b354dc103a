package wallet

import (
	"fmt"
	"strings"

	"blockmsg/dapp"
	"blockmsg/helpers"
	"blockmsg/styles"
	chain "blockmsg/wallet"

	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"
)

// Nav returns the navigation bar for the wallet card
func Nav(width int, connected bool) string {
	var keys []string
	if connected {
		keys = []string{
			styles.Key("d") + " disconnect",
			styles.Key("a") + " accounts",
			styles.Key("L") + " lock",
			styles.Key("y") + " copy address",
			styles.Key("Q") + " qr",
		}
	} else {
		keys = []string{
			styles.Key("c") + " connect",
			styles.Key("n") + " switch network",
			styles.Key("N") + " add network",
		}
	}
	keys = append(keys, styles.Key("l")+" log", styles.Key("q")+" quit")
	return styles.NavStyle.Width(width).Render(strings.Join(keys, "   "))
}

// ExplorerURL returns the block explorer page for addr, or "" for chains
// without a public explorer.
func ExplorerURL(chainID uint64, addr common.Address) string {
	switch chainID {
	case 1:
		return "https://etherscan.io/address/" + addr.Hex()
	case 11155111:
		return "https://sepolia.etherscan.io/address/" + addr.Hex()
	}
	return ""
}

// Render renders the wallet connection card
func Render(s dapp.State, active chain.ChainParams, copiedMsg, spinnerView string, showQR bool) string {
	h := styles.TitleStyle.Render("Wallet")

	if s.Connecting {
		return h + "\n\n" + spinnerView + " waiting for wallet approval…"
	}

	if s.Session == nil {
		lines := []string{h, "", styles.Muted("Not connected")}
		if s.Network.ChainID != 0 {
			lines = append(lines, networkLine(s.Network.Name, s.Network.ChainID))
		}
		if s.Err != nil && !s.Err.Contract() {
			lines = append(lines, "", renderError(s.Err))
		}
		if s.Switching {
			lines = append(lines, "", spinnerView+" switching network…")
		}
		lines = append(lines, "", styles.Muted("Press ")+styles.Key("c")+styles.Muted(" to connect your wallet."))
		return strings.Join(lines, "\n")
	}

	sess := s.Session
	addrStyle := lipgloss.NewStyle().Foreground(styles.CText).Underline(true)
	addr := addrStyle.Render(sess.Address.Hex())
	if url := ExplorerURL(sess.ChainID, sess.Address); url != "" {
		// OSC 8 hyperlink
		addr = fmt.Sprintf("\x1b]8;;%s\x1b\\%s\x1b]8;;\x1b\\", url, addr)
	}
	if copiedMsg != "" {
		addr += "  " + lipgloss.NewStyle().Foreground(styles.CAccent).Render(copiedMsg)
	}

	currency := active.Currency
	if active.ChainID != sess.ChainID || currency.Symbol == "" {
		currency = chain.Currency{Name: "Ether", Symbol: "ETH", Decimals: 18}
	}
	balance := helpers.FormatAmount(sess.Balance, currency.Decimals, currency.Symbol)
	if sess.Balance == nil {
		balance = styles.Muted("balance unavailable")
	}

	lines := []string{
		h,
		styles.SuccessStyle.Render("● Connected"),
		"",
		styles.LabelStyle.Render("Account ") + addr,
		networkLine(s.Network.Name, sess.ChainID),
		styles.LabelStyle.Render("Balance ") + lipgloss.NewStyle().Foreground(styles.CText).Render(balance),
	}
	if s.Err != nil && !s.Err.Contract() {
		lines = append(lines, "", renderError(s.Err))
	}
	if showQR {
		lines = append(lines, "", helpers.QRCode(helpers.PaymentURI(sess.Address, sess.ChainID)))
	}
	return strings.Join(lines, "\n")
}

func networkLine(name string, id uint64) string {
	if name == "" {
		name = chain.ChainLabel(id)
	}
	return styles.LabelStyle.Render("Network ") +
		lipgloss.NewStyle().Foreground(styles.CText).Render(name) +
		styles.Muted(fmt.Sprintf(" (%d / %s)", id, chain.FormatChainID(id)))
}

func renderError(err *dapp.Error) string {
	msg := styles.ErrorStyle.Render("⚠ " + err.Message)
	switch err.Kind {
	case dapp.KindWrongNetwork:
		msg += "\n" + styles.Muted("Expected ") +
			lipgloss.NewStyle().Foreground(styles.CAccent).Render(chain.ChainLabel(err.Expected)) +
			styles.Muted(". Press ") + styles.Key("n") + styles.Muted(" to switch to the local development network.")
	case dapp.KindProviderUnavailable:
		msg += "\n" + styles.Muted("Tip: set ") + lipgloss.NewStyle().Foreground(styles.CAccent).Render("BLOCKMSG_PRIVATE_KEYS") +
			styles.Muted(" to a Hardhat test key for local development.")
	}
	return msg
}
