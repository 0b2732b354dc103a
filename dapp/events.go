package dapp

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Event is an input to Reduce: a user action or the outcome of an effect.
type Event interface {
	isEvent()
}

// scoped events belong to the epoch they were started in.
type scoped interface {
	Event
	epoch() uint64
}

// bridged events come from the Event Bridge output channel.
type bridged interface {
	scoped
	fromBridge()
}

// Epoch stamps an event with the session epoch whose work produced it.
type Epoch uint64

func (e Epoch) epoch() uint64 { return uint64(e) }

// User actions.
type (
	ConnectRequested    struct{}
	DisconnectRequested struct{}
	ReadRequested       struct{}
	SwitchRequested     struct{}
	AddRequested        struct{}
	DraftChanged        struct{ Text string }
	WriteRequested      struct{ Text string }
)

// Connection Manager outcomes.
type (
	Connected struct {
		Epoch
		Session *WalletSession
		Network NetworkInfo
	}
	ConnectFailed struct {
		Epoch
		Err     *Error
		Network NetworkInfo
	}
	BalanceRefreshed struct {
		Epoch
		Address common.Address
		Balance *big.Int
	}
	SignerChanged struct {
		Epoch
		Address common.Address
		Signer  *bind.TransactOpts
	}
	NetworkSwitched     struct{ ChainID uint64 }
	NetworkAdded        struct{ ChainID uint64 }
	NetworkSwitchFailed struct{ Err *Error }
)

// Contract Session outcomes.
type (
	Bound struct {
		Epoch
		Binding *ContractBinding
	}
	BindFailed struct {
		Epoch
		Err *Error
	}
	MessageLoaded struct {
		Epoch
		Record MessageRecord
	}
	ReadFailed struct {
		Epoch
		Err *Error
	}
	WriteSubmitted struct {
		Epoch
		Seq     uint64
		Tx      *types.Transaction
		Binding *ContractBinding
	}
	WriteConfirmed struct {
		Epoch
		Seq     uint64
		Receipt *types.Receipt
	}
	WriteFailed struct {
		Epoch
		Seq uint64
		Err *Error
	}
	// TxReset ends the display of a finished attempt.
	TxReset struct{ Seq uint64 }
)

// Event Bridge notifications.
type (
	AccountsChanged struct {
		Epoch
		Accounts []common.Address
	}
	ChainChanged struct {
		Epoch
		ChainID uint64
	}
	MessageObserved struct {
		Epoch
		Record MessageRecord
	}
)

func (ConnectRequested) isEvent()    {}
func (DisconnectRequested) isEvent() {}
func (ReadRequested) isEvent()       {}
func (SwitchRequested) isEvent()     {}
func (AddRequested) isEvent()        {}
func (DraftChanged) isEvent()        {}
func (WriteRequested) isEvent()      {}
func (Connected) isEvent()           {}
func (ConnectFailed) isEvent()       {}
func (BalanceRefreshed) isEvent()    {}
func (SignerChanged) isEvent()       {}
func (NetworkSwitched) isEvent()     {}
func (NetworkAdded) isEvent()        {}
func (NetworkSwitchFailed) isEvent() {}
func (Bound) isEvent()               {}
func (BindFailed) isEvent()          {}
func (MessageLoaded) isEvent()       {}
func (ReadFailed) isEvent()          {}
func (WriteSubmitted) isEvent()      {}
func (WriteConfirmed) isEvent()      {}
func (WriteFailed) isEvent()         {}
func (TxReset) isEvent()             {}
func (AccountsChanged) isEvent()     {}
func (ChainChanged) isEvent()        {}
func (MessageObserved) isEvent()     {}

func (AccountsChanged) fromBridge() {}
func (ChainChanged) fromBridge()    {}
func (MessageObserved) fromBridge() {}
