package main

import (
	"blockmsg/dapp"
	"blockmsg/wallet"
)

// -------------------- TEA MESSAGES --------------------
// All custom message types for The Elm Architecture

// dappEventMsg carries an event for the dApp state container
type dappEventMsg struct {
	ev dapp.Event
}

// approvalRequestMsg is a wallet request waiting for the user's answer
type approvalRequestMsg struct {
	req   wallet.Approval
	reply chan<- bool
}

// clipboardCopiedMsg indicates clipboard copy completed
type clipboardCopiedMsg struct {
	what string
}

// clearClipboardMsg clears the clipboard feedback
type clearClipboardMsg struct{}

// logInitMsg signals that log viewport should be initialized
type logInitMsg struct{}

// walletActionMsg reports the result of a direct wallet action
type walletActionMsg struct {
	action string
	err    error
}
