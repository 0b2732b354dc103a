package network

import (
	"fmt"
	"strings"

	"blockmsg/dapp"
	"blockmsg/styles"
	"blockmsg/wallet"

	"github.com/charmbracelet/lipgloss"
)

// Item is one line of the prerequisites checklist.
type Item struct {
	Label string
	OK    bool
	Hint  string
}

// Prerequisites lists what must hold before a message can be written.
func Prerequisites(s dapp.State, hasWallet bool, exp dapp.NetworkExpectation) []Item {
	onNetwork := s.Session != nil
	netHint := "connect to check"
	if exp.Enforced {
		netHint = "requires " + wallet.ChainLabel(exp.RequiredChainID)
		if s.Err != nil && s.Err.Kind == dapp.KindWrongNetwork {
			onNetwork = false
			netHint = fmt.Sprintf("on %s, requires %s", wallet.ChainLabel(s.Err.Observed), wallet.ChainLabel(exp.RequiredChainID))
		}
	} else if onNetwork {
		netHint = "any network"
	}

	contractHint := "connect to bind"
	if s.Err != nil && (s.Err.Kind == dapp.KindMissingContractConfig || s.Err.Kind == dapp.KindUnsafeDefaultAddress) {
		contractHint = s.Err.Kind.String()
	}

	return []Item{
		{Label: "Wallet available", OK: hasWallet, Hint: "set BLOCKMSG_PRIVATE_KEYS or BLOCKMSG_KEYSTORE"},
		{Label: "Wallet connected", OK: s.Session != nil, Hint: "press c"},
		{Label: "Correct network", OK: onNetwork, Hint: netHint},
		{Label: "Contract bound", OK: s.Binding != nil, Hint: contractHint},
	}
}

// Render renders the prerequisites checklist and the wallet's networks
func Render(items []Item, networks []wallet.ChainParams, active uint64) string {
	h := styles.TitleStyle.Render("Network")

	lines := []string{h, ""}
	for _, it := range items {
		line := styles.Check(it.OK) + " " + lipgloss.NewStyle().Foreground(styles.CText).Render(it.Label)
		if !it.OK && it.Hint != "" {
			line += styles.Muted("  " + it.Hint)
		}
		lines = append(lines, line)
	}

	lines = append(lines, "", styles.Muted("Wallet networks:"))
	if len(networks) == 0 {
		lines = append(lines, styles.Muted("No networks configured."))
	}
	for _, n := range networks {
		marker := styles.Muted("○ ")
		nameStyle := lipgloss.NewStyle().Foreground(styles.CText)
		if n.ChainID == active {
			marker = lipgloss.NewStyle().Foreground(styles.CAccent).Render("● ")
			nameStyle = nameStyle.Foreground(styles.CAccent2).Bold(true)
		}
		lines = append(lines, marker+nameStyle.Render(n.Name)+styles.Muted(fmt.Sprintf("  %d", n.ChainID)))
		lines = append(lines, "  "+styles.Muted(n.RPCURL))
	}
	return strings.Join(lines, "\n")
}
