package dapp

import (
	"errors"
	"fmt"
	"strings"

	"blockmsg/wallet"
)

// Kind classifies user-facing failures.
type Kind int

const (
	KindNone Kind = iota
	KindProviderUnavailable
	KindUserRejected
	KindWrongNetwork
	KindMissingContractConfig
	KindUnsafeDefaultAddress
	KindReadFailed
	KindEmptyMessage
	KindRPCOverloaded
	KindTransactionFailed
	KindNetworkSwitchFailed
	KindConnectionFailed
)

var kindNames = map[Kind]string{
	KindNone:                  "none",
	KindProviderUnavailable:   "provider unavailable",
	KindUserRejected:          "user rejected",
	KindWrongNetwork:          "wrong network",
	KindMissingContractConfig: "missing contract config",
	KindUnsafeDefaultAddress:  "unsafe default address",
	KindReadFailed:            "read failed",
	KindEmptyMessage:          "empty message",
	KindRPCOverloaded:         "rpc overloaded",
	KindTransactionFailed:     "transaction failed",
	KindNetworkSwitchFailed:   "network switch failed",
	KindConnectionFailed:      "connection failed",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Fixed user-facing messages.
const (
	MsgProviderUnavailable = "No wallet is configured. Set BLOCKMSG_PRIVATE_KEYS or BLOCKMSG_KEYSTORE and restart."
	MsgMissingContract     = "Missing contract address. Set BLOCKMSG_CONTRACT_ADDRESS or regenerate the MessageBoard.json artifact."
	MsgUnsafeDefault       = "The contract address is the local Hardhat default but the wallet is not on a local node. Set BLOCKMSG_CONTRACT_ADDRESS and BLOCKMSG_CONTRACT_CHAIN_ID for this deployment."
	MsgReadFailed          = "Failed to read message from blockchain"
	MsgEmptyMessage        = "Please enter a message"
	MsgRPCOverloaded       = "The wallet's RPC endpoint is rate limiting requests. Wait a moment and retry, or point the network at a different RPC URL (for example a dedicated Sepolia endpoint)."
	MsgWriteFailed         = "Failed to write message"
	MsgSwitchFailed        = "Failed to switch to Hardhat network"
	MsgAddFailed           = "Failed to add Hardhat network"
)

// Error is a classified failure shown to the user.
type Error struct {
	Kind    Kind
	Message string
	// Observed and Expected chain ids, set for KindWrongNetwork.
	Observed uint64
	Expected uint64
	// Attempt ties a transaction error to TransactionAttempt.Seq.
	Attempt uint64
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func wrongNetwork(observed, expected uint64) *Error {
	return &Error{
		Kind:     KindWrongNetwork,
		Message:  fmt.Sprintf("Wrong network. Switch your wallet to chain ID %d (current: %d).", expected, observed),
		Observed: observed,
		Expected: expected,
	}
}

// IsRPCOverloaded reports whether err is the provider's rate limiting.
func IsRPCOverloaded(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := wallet.ErrorCode(err); ok && code == wallet.CodeRequestPending {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rpc endpoint returned too many errors") || strings.Contains(msg, "too many errors")
}

// Classify maps a write-path failure to an Error.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	if wallet.IsUserRejected(err) {
		return newError(KindUserRejected, err.Error(), err)
	}
	if IsRPCOverloaded(err) {
		return newError(KindRPCOverloaded, MsgRPCOverloaded, err)
	}
	msg := err.Error()
	if msg == "" {
		msg = MsgWriteFailed
	}
	return newError(KindTransactionFailed, msg, err)
}

// Contract reports whether e belongs with the message board rather than
// the wallet connection.
func (e *Error) Contract() bool {
	if e == nil {
		return false
	}
	if e.Attempt != 0 {
		return true
	}
	switch e.Kind {
	case KindMissingContractConfig, KindUnsafeDefaultAddress, KindReadFailed,
		KindEmptyMessage, KindRPCOverloaded, KindTransactionFailed:
		return true
	}
	return false
}
