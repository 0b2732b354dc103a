// Package messageboard binds the MessageBoard contract: one stored string,
// the account that last wrote it and when.
package messageboard

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

const (
	methodGetMessage     = "getMessage"
	methodGetMessageInfo = "getMessageInfo"
	methodSetMessage     = "setMessage"

	// EventMessageSet is emitted on every successful setMessage.
	EventMessageSet = "MessageSet"
)

// DefaultPollInterval is used when the node cannot push log notifications.
const DefaultPollInterval = 2 * time.Second

// Backend is the node access a Board needs.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	BlockNumber(ctx context.Context) (uint64, error)
}

// Info is the full stored record.
type Info struct {
	Message   string
	Writer    common.Address
	UpdatedAt time.Time
}

// MessageSet is a decoded MessageSet log.
type MessageSet struct {
	Writer    common.Address
	Message   string
	Timestamp *big.Int
	Raw       types.Log
}

// Info converts the event payload to a record.
func (e *MessageSet) Info() Info {
	return Info{Message: e.Message, Writer: e.Writer, UpdatedAt: unixTime(e.Timestamp)}
}

// Board is a bound MessageBoard contract.
type Board struct {
	address  common.Address
	abi      abi.ABI
	backend  Backend
	contract *bind.BoundContract

	PollInterval time.Duration
}

// New binds the contract at address. The ABI must expose the MessageBoard surface.
func New(address common.Address, parsed abi.ABI, backend Backend) (*Board, error) {
	for _, m := range []string{methodGetMessage, methodGetMessageInfo, methodSetMessage} {
		if _, ok := parsed.Methods[m]; !ok {
			return nil, fmt.Errorf("abi has no %s method", m)
		}
	}
	if _, ok := parsed.Events[EventMessageSet]; !ok {
		return nil, fmt.Errorf("abi has no %s event", EventMessageSet)
	}
	return &Board{
		address:      address,
		abi:          parsed,
		backend:      backend,
		contract:     bind.NewBoundContract(address, parsed, backend, backend, backend),
		PollInterval: DefaultPollInterval,
	}, nil
}

// Message calls getMessage().
func (b *Board) Message(ctx context.Context) (string, error) {
	var out []interface{}
	if err := b.contract.Call(&bind.CallOpts{Context: ctx}, &out, methodGetMessage); err != nil {
		return "", fmt.Errorf("%s: %w", methodGetMessage, err)
	}
	if len(out) != 1 {
		return "", fmt.Errorf("%s: unexpected %d outputs", methodGetMessage, len(out))
	}
	return *abi.ConvertType(out[0], new(string)).(*string), nil
}

// Info calls getMessageInfo().
func (b *Board) Info(ctx context.Context) (Info, error) {
	var out []interface{}
	if err := b.contract.Call(&bind.CallOpts{Context: ctx}, &out, methodGetMessageInfo); err != nil {
		return Info{}, fmt.Errorf("%s: %w", methodGetMessageInfo, err)
	}
	if len(out) != 3 {
		return Info{}, fmt.Errorf("%s: unexpected %d outputs", methodGetMessageInfo, len(out))
	}
	msg := *abi.ConvertType(out[0], new(string)).(*string)
	writer := *abi.ConvertType(out[1], new(common.Address)).(*common.Address)
	ts := *abi.ConvertType(out[2], new(*big.Int)).(**big.Int)
	return Info{Message: msg, Writer: writer, UpdatedAt: unixTime(ts)}, nil
}

// SetMessage submits setMessage(text). It returns once the node accepted the transaction.
func (b *Board) SetMessage(opts *bind.TransactOpts, text string) (*types.Transaction, error) {
	return b.contract.Transact(opts, methodSetMessage, text)
}

// WaitMined blocks until tx is included. A reverted receipt is an error.
func (b *Board) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, b.backend, tx)
	if err != nil {
		return nil, err
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return receipt, fmt.Errorf("transaction %s reverted in block %s", tx.Hash().Hex(), receipt.BlockNumber)
	}
	return receipt, nil
}

// ParseMessageSet decodes a MessageSet log.
func (b *Board) ParseMessageSet(l types.Log) (*MessageSet, error) {
	ev := new(MessageSet)
	if err := b.contract.UnpackLog(ev, EventMessageSet, l); err != nil {
		return nil, err
	}
	ev.Raw = l
	return ev, nil
}

// WatchMessageSet streams MessageSet events into sink until the subscription
// ends. Endpoints without push notifications are polled instead.
func (b *Board) WatchMessageSet(ctx context.Context, sink chan<- *MessageSet) (event.Subscription, error) {
	logs, sub, err := b.contract.WatchLogs(&bind.WatchOpts{Context: ctx}, EventMessageSet)
	if errors.Is(err, gethrpc.ErrNotificationsUnsupported) {
		return b.pollMessageSet(ctx, sink)
	}
	if err != nil {
		return nil, err
	}
	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()
		for {
			select {
			case l := <-logs:
				ev, err := b.ParseMessageSet(l)
				if err != nil {
					return err
				}
				select {
				case sink <- ev:
				case err := <-sub.Err():
					return err
				case <-quit:
					return nil
				}
			case err := <-sub.Err():
				return err
			case <-quit:
				return nil
			}
		}
	}), nil
}

func (b *Board) pollMessageSet(ctx context.Context, sink chan<- *MessageSet) (event.Subscription, error) {
	head, err := b.backend.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("poll start: %w", err)
	}
	interval := b.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	query := ethereum.FilterQuery{
		Addresses: []common.Address{b.address},
		Topics:    [][]common.Hash{{b.abi.Events[EventMessageSet].ID}},
	}
	next := head + 1
	return event.NewSubscription(func(quit <-chan struct{}) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-quit:
				return nil
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
			latest, err := b.backend.BlockNumber(ctx)
			if err != nil || latest < next {
				// retried on the next tick
				continue
			}
			q := query
			q.FromBlock = new(big.Int).SetUint64(next)
			q.ToBlock = new(big.Int).SetUint64(latest)
			logs, err := b.backend.FilterLogs(ctx, q)
			if err != nil {
				continue
			}
			for _, l := range logs {
				ev, err := b.ParseMessageSet(l)
				if err != nil {
					return err
				}
				select {
				case sink <- ev:
				case <-quit:
					return nil
				}
			}
			next = latest + 1
		}
	}), nil
}

func unixTime(ts *big.Int) time.Time {
	if ts == nil || ts.Sign() == 0 || !ts.IsInt64() {
		return time.Time{}
	}
	return time.Unix(ts.Int64(), 0)
}
