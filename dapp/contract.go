package dapp

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"blockmsg/artifact"
	"blockmsg/messageboard"
	"blockmsg/wallet"
)

// Binder builds the contract capability over a session connection.
type Binder func(address common.Address, parsed abi.ABI, conn wallet.Conn) (Board, error)

// BindMessageBoard is the default Binder.
func BindMessageBoard(address common.Address, parsed abi.ABI, conn wallet.Conn) (Board, error) {
	b, err := messageboard.New(address, parsed, conn)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Bind creates the contract binding for session. It refuses a missing address
// and the local Hardhat default when nothing pins the network and the wallet
// is not on a local node.
func (c *Client) Bind(ctx context.Context, epoch uint64, session WalletSession) Event {
	fail := func(err *Error) Event {
		return BindFailed{Epoch: Epoch(epoch), Err: err}
	}
	raw := strings.TrimSpace(c.settings.ContractAddress)
	if raw == "" || !common.IsHexAddress(raw) {
		return fail(newError(KindMissingContractConfig, MsgMissingContract, nil))
	}
	address := common.HexToAddress(raw)

	if !c.settings.Expectation.Enforced && address == common.HexToAddress(artifact.LocalDevAddress) && !c.onLocalNode() {
		return fail(newError(KindUnsafeDefaultAddress, MsgUnsafeDefault, nil))
	}

	board, err := c.binder(address, c.settings.ABI, session.Chain)
	if err != nil {
		return fail(newError(KindConnectionFailed, err.Error(), err))
	}
	c.log.Info("contract bound", "address", address.Hex(), "account", session.Address.Hex())
	return Bound{Epoch: Epoch(epoch), Binding: &ContractBinding{
		Address: address,
		ABI:     c.settings.ABI,
		Board:   board,
		Account: session.Address,
	}}
}

func (c *Client) onLocalNode() bool {
	if c.provider == nil {
		return false
	}
	return c.isLocal(c.provider.Endpoint())
}

// Read loads the message and its metadata. On failure the previous record stays.
func (c *Client) Read(ctx context.Context, epoch uint64, binding *ContractBinding) Event {
	text, err := binding.Board.Message(ctx)
	if err != nil {
		return ReadFailed{Epoch: Epoch(epoch), Err: newError(KindReadFailed, MsgReadFailed, err)}
	}
	info, err := binding.Board.Info(ctx)
	if err != nil {
		return ReadFailed{Epoch: Epoch(epoch), Err: newError(KindReadFailed, MsgReadFailed, err)}
	}
	return MessageLoaded{Epoch: Epoch(epoch), Record: MessageRecord{
		Text:      text,
		Writer:    info.Writer,
		UpdatedAt: info.UpdatedAt,
	}}
}

// Submit sends setMessage(text). It returns as soon as the node accepts the transaction.
func (c *Client) Submit(ctx context.Context, epoch, seq uint64, binding *ContractBinding, session WalletSession, text string) Event {
	if session.Signer == nil {
		return WriteFailed{Epoch: Epoch(epoch), Seq: seq, Err: newError(KindTransactionFailed, "No signer for the connected account", nil)}
	}
	opts := *session.Signer
	opts.Context = ctx
	tx, err := binding.Board.SetMessage(&opts, text)
	if err != nil {
		return WriteFailed{Epoch: Epoch(epoch), Seq: seq, Err: Classify(err)}
	}
	c.log.Info("transaction submitted", "hash", tx.Hash().Hex())
	return WriteSubmitted{Epoch: Epoch(epoch), Seq: seq, Tx: tx, Binding: binding}
}

// Confirm waits for tx to be included. There is no timeout.
func (c *Client) Confirm(ctx context.Context, epoch, seq uint64, binding *ContractBinding, tx *types.Transaction) Event {
	receipt, err := binding.Board.WaitMined(ctx, tx)
	if err != nil {
		return WriteFailed{Epoch: Epoch(epoch), Seq: seq, Err: Classify(err)}
	}
	return WriteConfirmed{Epoch: Epoch(epoch), Seq: seq, Receipt: receipt}
}
