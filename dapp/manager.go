package dapp

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"blockmsg/rpc"
	"blockmsg/wallet"
)

// Connect runs the connection sequence: account approval, read connection,
// network check, signer, balance. The balance is the only step allowed to fail.
func (c *Client) Connect(ctx context.Context, epoch uint64) Event {
	fail := func(err *Error, network NetworkInfo) Event {
		return ConnectFailed{Epoch: Epoch(epoch), Err: err, Network: network}
	}
	if c.provider == nil {
		return fail(newError(KindProviderUnavailable, MsgProviderUnavailable, nil), NetworkInfo{})
	}

	c.log.Info("requesting accounts")
	accounts, err := c.provider.RequestAccounts(ctx)
	if err != nil {
		return fail(classifyProvider(err, KindConnectionFailed), NetworkInfo{})
	}
	if len(accounts) == 0 {
		return fail(newError(KindConnectionFailed, "The wallet returned no accounts.", nil), NetworkInfo{})
	}

	conn, err := c.provider.Connect(ctx)
	if err != nil {
		return fail(classifyProvider(err, KindConnectionFailed), NetworkInfo{})
	}
	id, err := conn.ChainID(ctx)
	if err != nil {
		return fail(classifyProvider(err, KindConnectionFailed), NetworkInfo{})
	}
	chainID := id.Uint64()
	network := NetworkInfo{Name: wallet.ChainLabel(chainID), ChainID: chainID}
	c.log.Info("network detected", "chain", chainID, "name", network.Name)

	if werr := c.settings.Expectation.Check(chainID); werr != nil {
		return fail(werr, network)
	}

	signer, err := c.provider.Signer(ctx, accounts[0])
	if err != nil {
		return fail(classifyProvider(err, KindConnectionFailed), network)
	}

	session := &WalletSession{
		Address: accounts[0],
		ChainID: chainID,
		Signer:  signer,
		Chain:   conn,
	}
	balance, err := rpc.FetchBalance(ctx, conn, accounts[0])
	if err != nil {
		c.log.Warn("balance unavailable", "account", accounts[0].Hex(), "err", err)
	} else {
		session.Balance = balance
	}
	return Connected{Epoch: Epoch(epoch), Session: session, Network: network}
}

// Disconnect is the local reset. It does not revoke the wallet's grant.
func Disconnect(s State) State {
	return Reduce(s, DisconnectRequested{})
}

// RefreshBalance re-reads the session balance. Failures are logged and yield no event.
func (c *Client) RefreshBalance(ctx context.Context, epoch uint64, session WalletSession) Event {
	if session.Chain == nil {
		return nil
	}
	balance, err := rpc.FetchBalance(ctx, session.Chain, session.Address)
	if err != nil {
		c.log.Warn("balance refresh failed", "account", session.Address.Hex(), "err", err)
		return nil
	}
	return BalanceRefreshed{Epoch: Epoch(epoch), Address: session.Address, Balance: balance}
}

// Resign fetches a signer for a newly selected account.
func (c *Client) Resign(ctx context.Context, epoch uint64, account common.Address) Event {
	if c.provider == nil {
		return nil
	}
	signer, err := c.provider.Signer(ctx, account)
	if err != nil {
		return BindFailed{Epoch: Epoch(epoch), Err: classifyProvider(err, KindConnectionFailed)}
	}
	return SignerChanged{Epoch: Epoch(epoch), Address: account, Signer: signer}
}

// SwitchNetwork asks the wallet to move to the local development chain,
// registering it first when the wallet does not know it.
func (c *Client) SwitchNetwork(ctx context.Context) Event {
	if c.provider == nil {
		return NetworkSwitchFailed{Err: newError(KindProviderUnavailable, MsgProviderUnavailable, nil)}
	}
	target := c.settings.LocalChain
	err := c.provider.SwitchChain(ctx, target.ChainID)
	if code, ok := wallet.ErrorCode(err); ok && code == wallet.CodeUnrecognizedChain {
		c.log.Info("network unknown to wallet, adding", "chain", wallet.FormatChainID(target.ChainID))
		if ev := c.AddNetwork(ctx); !isAdded(ev) {
			return ev
		}
		err = c.provider.SwitchChain(ctx, target.ChainID)
	}
	if err != nil {
		return NetworkSwitchFailed{Err: newError(KindNetworkSwitchFailed, messageOr(err, MsgSwitchFailed), err)}
	}
	return NetworkSwitched{ChainID: target.ChainID}
}

// AddNetwork registers the local development chain with the wallet.
func (c *Client) AddNetwork(ctx context.Context) Event {
	if c.provider == nil {
		return NetworkSwitchFailed{Err: newError(KindProviderUnavailable, MsgProviderUnavailable, nil)}
	}
	target := c.settings.LocalChain
	if err := c.provider.AddChain(ctx, target); err != nil {
		return NetworkSwitchFailed{Err: newError(KindNetworkSwitchFailed, messageOr(err, MsgAddFailed), err)}
	}
	return NetworkAdded{ChainID: target.ChainID}
}

func isAdded(ev Event) bool {
	_, ok := ev.(NetworkAdded)
	return ok
}

// classifyProvider maps connection-path failures; fallback is the kind for anything unrecognized.
func classifyProvider(err error, fallback Kind) *Error {
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	if wallet.IsUserRejected(err) {
		return newError(KindUserRejected, messageOr(err, "User rejected the request."), err)
	}
	if IsRPCOverloaded(err) {
		return newError(KindRPCOverloaded, MsgRPCOverloaded, err)
	}
	return newError(fallback, messageOr(err, "Failed to connect wallet"), err)
}

func messageOr(err error, fallback string) string {
	if err == nil || err.Error() == "" {
		return fallback
	}
	return err.Error()
}
