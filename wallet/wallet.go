// Package wallet models the wallet provider a dApp talks to: account access
// behind user approval, the active network, transaction signing, network
// switching and change notifications.
package wallet

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/event"
)

// Provider is the wallet capability consumed by the dApp core.
type Provider interface {
	// RequestAccounts asks the user to expose accounts. The selected account comes first.
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	// Connect returns a read connection to the active network.
	Connect(ctx context.Context) (Conn, error)
	// Signer returns transaction options that sign on behalf of account.
	Signer(ctx context.Context, account common.Address) (*bind.TransactOpts, error)
	SwitchChain(ctx context.Context, chainID uint64) error
	AddChain(ctx context.Context, params ChainParams) error
	// Subscribe delivers account and chain change notifications.
	Subscribe(ch chan<- Event) event.Subscription
	// Endpoint is the RPC URL of the active network.
	Endpoint() string
}

// Conn is a read/write connection to a node. *rpc.Client satisfies it.
type Conn interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// EventKind identifies a provider notification.
type EventKind int

const (
	AccountsChanged EventKind = iota + 1
	ChainChanged
)

func (k EventKind) String() string {
	switch k {
	case AccountsChanged:
		return "accountsChanged"
	case ChainChanged:
		return "chainChanged"
	default:
		return "unknown"
	}
}

// Event is a provider notification.
type Event struct {
	Kind     EventKind
	Accounts []common.Address
	ChainID  uint64
}

// Currency describes a network's native currency.
type Currency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// ChainParams describes a network the wallet can switch to.
type ChainParams struct {
	ChainID  uint64
	Name     string
	RPCURL   string
	Currency Currency
}

// LocalChain is the local development network (Hardhat / Anvil defaults).
var LocalChain = ChainParams{
	ChainID: 31337,
	Name:    "Hardhat Local",
	RPCURL:  "http://127.0.0.1:8545",
	Currency: Currency{
		Name:     "Ether",
		Symbol:   "ETH",
		Decimals: 18,
	},
}

// ParseChainID normalizes a chain id given as decimal ("31337") or hex ("0x7a69").
func ParseChainID(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty chain id")
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		id, err := hexutil.DecodeUint64("0x" + strings.ToLower(s[2:]))
		if err != nil {
			return 0, fmt.Errorf("invalid chain id %q: %w", s, err)
		}
		return id, nil
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chain id %q: %w", s, err)
	}
	return id, nil
}

// FormatChainID renders a chain id the way wallet RPC methods expect it.
func FormatChainID(id uint64) string {
	return hexutil.EncodeUint64(id)
}

// ChainLabel returns a human name for well-known chain ids.
func ChainLabel(id uint64) string {
	switch id {
	case 1:
		return "Ethereum Mainnet"
	case 11155111:
		return "Sepolia"
	case 31337:
		return "Hardhat Local"
	default:
		return fmt.Sprintf("Chain ID %d", id)
	}
}
