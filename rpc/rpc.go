package rpc

import (
	"context"
	"fmt"
	"math/big"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Client wraps an Ethereum RPC client
type Client struct {
	*ethclient.Client
	URL string
}

// ConnectResult holds the result of an RPC connection attempt
type ConnectResult struct {
	Client *Client
	Error  error
}

// Connect attempts to connect to an Ethereum RPC endpoint
func Connect(url string) ConnectResult {
	return ConnectWithTimeout(url, 8*time.Second)
}

// ConnectWithTimeout attempts to connect with a custom timeout
func ConnectWithTimeout(url string, timeout time.Duration) ConnectResult {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return ConnectResult{Client: nil, Error: err}
	}

	return ConnectResult{
		Client: &Client{
			Client: client,
			URL:    url,
		},
		Error: nil,
	}
}

// BalanceReader is the part of a node connection needed to read balances.
type BalanceReader interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// FetchBalance reads the latest wei balance of addr.
func FetchBalance(ctx context.Context, r BalanceReader, addr common.Address) (*big.Int, error) {
	return FetchBalanceWithTimeout(ctx, r, addr, 12*time.Second)
}

// FetchBalanceWithTimeout reads the balance with a custom timeout
func FetchBalanceWithTimeout(ctx context.Context, r BalanceReader, addr common.Address, timeout time.Duration) (*big.Int, error) {
	if r == nil {
		return nil, fmt.Errorf("no RPC client")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	wei, err := r.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("balance of %s: %w", addr.Hex(), err)
	}
	return wei, nil
}

// IsLocalEndpoint reports whether an RPC URL points at the local machine.
func IsLocalEndpoint(endpoint string) bool {
	endpoint = strings.TrimSpace(endpoint)
	var host string
	if h, _, err := net.SplitHostPort(endpoint); err == nil && !strings.Contains(endpoint, "://") {
		// bare host:port
		host = h
	} else {
		u, err := url.Parse(endpoint)
		if err != nil {
			return false
		}
		host = u.Hostname()
	}
	switch strings.ToLower(host) {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}
