// Package dapp is the wallet, network and contract lifecycle of the BlockMSG
// client. State lives in one value and changes only through Reduce; slow
// work runs as effects whose outcome is the next event.
package dapp

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"

	"blockmsg/messageboard"
	"blockmsg/wallet"
)

// WalletSession is an established wallet connection.
type WalletSession struct {
	Address common.Address
	ChainID uint64
	// Balance in wei; nil when it could not be read.
	Balance *big.Int
	Signer  *bind.TransactOpts
	Chain   wallet.Conn
}

// NetworkExpectation is the chain the contract lives on, if pinned.
type NetworkExpectation struct {
	RequiredChainID uint64
	Enforced        bool
}

// Check returns a WrongNetwork error when observed differs from the required chain.
func (n NetworkExpectation) Check(observed uint64) *Error {
	if !n.Enforced || observed == n.RequiredChainID {
		return nil
	}
	return wrongNetwork(observed, n.RequiredChainID)
}

// Board is the contract capability a binding exposes.
type Board interface {
	Message(ctx context.Context) (string, error)
	Info(ctx context.Context) (messageboard.Info, error)
	SetMessage(opts *bind.TransactOpts, text string) (*types.Transaction, error)
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
	WatchMessageSet(ctx context.Context, sink chan<- *messageboard.MessageSet) (event.Subscription, error)
}

// ContractBinding is the contract bound to the session's signer.
type ContractBinding struct {
	Address common.Address
	ABI     abi.ABI
	Board   Board
	Account common.Address
}

// MessageRecord is the last known contract content.
type MessageRecord struct {
	Text      string
	Writer    common.Address
	UpdatedAt time.Time
}

// TxStatus is the phase of a write.
type TxStatus int

const (
	TxNone TxStatus = iota
	TxPending
	TxSuccess
	TxError
)

func (s TxStatus) String() string {
	switch s {
	case TxPending:
		return "pending"
	case TxSuccess:
		return "success"
	case TxError:
		return "error"
	default:
		return "none"
	}
}

// TransactionAttempt is the most recent write.
type TransactionAttempt struct {
	Status TxStatus
	Hash   common.Hash
	Reason string
	Seq    uint64
}

// NetworkInfo is what the wallet last reported about its network.
type NetworkInfo struct {
	Name    string
	ChainID uint64
}

// State is everything the presentation layer renders.
type State struct {
	// Epoch changes whenever a session starts or ends. Results of work
	// started in an older epoch are discarded.
	Epoch uint64

	Session *WalletSession
	Binding *ContractBinding
	Message MessageRecord
	Tx      TransactionAttempt
	Network NetworkInfo
	Draft   string
	Err     *Error

	Connecting     bool
	Switching      bool
	LoadingMessage bool
	Sending        bool

	// Attempts counts write attempts; it numbers TransactionAttempt.Seq.
	Attempts uint64
}

// Connected reports whether a wallet session is active.
func (s State) Connected() bool {
	return s.Session != nil
}

// CanWrite reports whether a write would be accepted now.
func (s State) CanWrite() bool {
	return s.Binding != nil && !s.Sending
}
