package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"

	"blockmsg/rpc"
)

// ApprovalKind identifies what the user is asked to approve.
type ApprovalKind int

const (
	ApproveConnect ApprovalKind = iota + 1
	ApproveSwitchChain
	ApproveAddChain
	ApproveTransaction
)

// Approval is a request shown to the user before the keyring acts.
type Approval struct {
	Kind    ApprovalKind
	Account common.Address
	Chain   ChainParams
	Tx      *types.Transaction
}

// Title is a one-line prompt for the approval.
func (a Approval) Title() string {
	switch a.Kind {
	case ApproveConnect:
		return "Connect account to BlockMSG?"
	case ApproveSwitchChain:
		return fmt.Sprintf("Switch network to %s?", a.Chain.Name)
	case ApproveAddChain:
		return fmt.Sprintf("Add network %s?", a.Chain.Name)
	case ApproveTransaction:
		return "Sign transaction?"
	default:
		return "Approve request?"
	}
}

// Detail describes the request in a few lines.
func (a Approval) Detail() string {
	switch a.Kind {
	case ApproveConnect:
		return fmt.Sprintf("Account %s will be visible to the app.", a.Account.Hex())
	case ApproveSwitchChain, ApproveAddChain:
		return fmt.Sprintf("Chain ID %d (%s)\nRPC %s\nCurrency %s", a.Chain.ChainID, FormatChainID(a.Chain.ChainID), a.Chain.RPCURL, a.Chain.Currency.Symbol)
	case ApproveTransaction:
		if a.Tx == nil {
			return ""
		}
		to := "contract creation"
		if a.Tx.To() != nil {
			to = a.Tx.To().Hex()
		}
		return fmt.Sprintf("From %s\nTo %s\nGas limit %d\nNetwork %s", a.Account.Hex(), to, a.Tx.Gas(), a.Chain.Name)
	default:
		return ""
	}
}

// Approver asks the user to confirm a request.
type Approver func(ctx context.Context, req Approval) (bool, error)

// AutoApprove approves every request.
func AutoApprove(context.Context, Approval) (bool, error) {
	return true, nil
}

// Dialer opens a connection to an RPC endpoint.
type Dialer func(ctx context.Context, url string) (Conn, error)

func dialRPC(ctx context.Context, url string) (Conn, error) {
	timeout := 8 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	res := rpc.ConnectWithTimeout(url, timeout)
	if res.Error != nil {
		return nil, res.Error
	}
	return res.Client, nil
}

// Keyring is an in-process wallet provider holding private keys.
type Keyring struct {
	mu         sync.Mutex
	keys       []*ecdsa.PrivateKey
	selected   int
	authorized bool
	pending    bool
	networks   []ChainParams
	active     int
	conn       Conn

	feed    event.FeedOf[Event]
	approve Approver
	dial    Dialer
	persist func([]ChainParams)
	logger  *log.Logger
}

// Option configures a Keyring.
type Option func(*Keyring)

// WithApprover sets the approval callback. The default approves everything.
func WithApprover(a Approver) Option {
	return func(k *Keyring) { k.approve = a }
}

// WithDialer replaces the RPC dialer.
func WithDialer(d Dialer) Option {
	return func(k *Keyring) { k.dial = d }
}

// WithNetworkStore is called with the full network list after a network is added.
func WithNetworkStore(fn func([]ChainParams)) Option {
	return func(k *Keyring) { k.persist = fn }
}

// WithLogger sets the logger for provider traffic.
func WithLogger(l *log.Logger) Option {
	return func(k *Keyring) { k.logger = l }
}

// NewKeyring builds a keyring. activeChain selects the starting network; zero picks the first.
func NewKeyring(keys []*ecdsa.PrivateKey, networks []ChainParams, activeChain uint64, opts ...Option) (*Keyring, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("keyring needs at least one key")
	}
	if len(networks) == 0 {
		return nil, fmt.Errorf("keyring needs at least one network")
	}
	k := &Keyring{
		keys:     keys,
		networks: append([]ChainParams(nil), networks...),
		approve:  AutoApprove,
		dial:     dialRPC,
		logger:   log.New(io.Discard),
	}
	if activeChain != 0 {
		idx := k.indexOf(activeChain)
		if idx < 0 {
			return nil, fmt.Errorf("active chain %d is not a configured network", activeChain)
		}
		k.active = idx
	}
	for _, opt := range opts {
		opt(k)
	}
	return k, nil
}

func (k *Keyring) indexOf(chainID uint64) int {
	for i, n := range k.networks {
		if n.ChainID == chainID {
			return i
		}
	}
	return -1
}

// orderedLocked returns all addresses with the selected one first.
func (k *Keyring) orderedLocked() []common.Address {
	out := make([]common.Address, 0, len(k.keys))
	out = append(out, crypto.PubkeyToAddress(k.keys[k.selected].PublicKey))
	for i, key := range k.keys {
		if i != k.selected {
			out = append(out, crypto.PubkeyToAddress(key.PublicKey))
		}
	}
	return out
}

// RequestAccounts implements Provider.
func (k *Keyring) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	k.mu.Lock()
	if k.authorized {
		defer k.mu.Unlock()
		return k.orderedLocked(), nil
	}
	if k.pending {
		k.mu.Unlock()
		return nil, &ProviderError{Code: CodeRequestPending, Message: "Request of type 'eth_requestAccounts' already pending."}
	}
	k.pending = true
	account := crypto.PubkeyToAddress(k.keys[k.selected].PublicKey)
	approve := k.approve
	k.mu.Unlock()

	k.logger.Debug("eth_requestAccounts", "account", account.Hex())
	ok, err := approve(ctx, Approval{Kind: ApproveConnect, Account: account, Chain: k.Active()})

	k.mu.Lock()
	defer k.mu.Unlock()
	k.pending = false
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errUserRejected("User rejected the request.")
	}
	k.authorized = true
	return k.orderedLocked(), nil
}

// Accounts returns the exposed accounts, empty until RequestAccounts succeeds.
func (k *Keyring) Accounts() []common.Address {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.authorized {
		return nil
	}
	return k.orderedLocked()
}

// AllAccounts returns every key's address in keyring order.
func (k *Keyring) AllAccounts() []common.Address {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]common.Address, len(k.keys))
	for i, key := range k.keys {
		out[i] = crypto.PubkeyToAddress(key.PublicKey)
	}
	return out
}

// SelectAccount makes addr the selected account and notifies subscribers when authorized.
func (k *Keyring) SelectAccount(addr common.Address) error {
	k.mu.Lock()
	idx := -1
	for i, key := range k.keys {
		if crypto.PubkeyToAddress(key.PublicKey) == addr {
			idx = i
			break
		}
	}
	if idx < 0 {
		k.mu.Unlock()
		return fmt.Errorf("account %s is not in the keyring", addr.Hex())
	}
	if idx == k.selected {
		k.mu.Unlock()
		return nil
	}
	k.selected = idx
	notify := k.authorized
	accounts := k.orderedLocked()
	k.mu.Unlock()

	if notify {
		k.logger.Debug("accountsChanged", "account", addr.Hex())
		k.feed.Send(Event{Kind: AccountsChanged, Accounts: accounts})
	}
	return nil
}

// Lock revokes account access. Subscribers see an empty account list.
func (k *Keyring) Lock() {
	k.mu.Lock()
	was := k.authorized
	k.authorized = false
	k.mu.Unlock()
	if was {
		k.logger.Debug("accountsChanged", "accounts", 0)
		k.feed.Send(Event{Kind: AccountsChanged})
	}
}

// Networks returns the configured networks.
func (k *Keyring) Networks() []ChainParams {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]ChainParams(nil), k.networks...)
}

// Active returns the active network.
func (k *Keyring) Active() ChainParams {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.networks[k.active]
}

// Endpoint implements Provider.
func (k *Keyring) Endpoint() string {
	return k.Active().RPCURL
}

// Connect implements Provider. The connection is reused until the network changes.
func (k *Keyring) Connect(ctx context.Context) (Conn, error) {
	k.mu.Lock()
	if k.conn != nil {
		defer k.mu.Unlock()
		return k.conn, nil
	}
	url := k.networks[k.active].RPCURL
	k.mu.Unlock()

	k.logger.Debug("dialing", "url", url)
	conn, err := k.dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", url, err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.networks[k.active].RPCURL != url {
		closeConn(conn)
		return nil, fmt.Errorf("network changed while connecting to %s", url)
	}
	if k.conn != nil {
		closeConn(conn)
		return k.conn, nil
	}
	k.conn = conn
	return conn, nil
}

func closeConn(c Conn) {
	if cl, ok := c.(interface{ Close() }); ok {
		cl.Close()
	}
}

// Signer implements Provider. Each signature goes through the approver.
func (k *Keyring) Signer(ctx context.Context, account common.Address) (*bind.TransactOpts, error) {
	k.mu.Lock()
	if !k.authorized {
		k.mu.Unlock()
		return nil, &ProviderError{Code: CodeUnauthorized, Message: "The requested account has not been authorized by the user."}
	}
	var key *ecdsa.PrivateKey
	for _, candidate := range k.keys {
		if crypto.PubkeyToAddress(candidate.PublicKey) == account {
			key = candidate
			break
		}
	}
	chain := k.networks[k.active]
	k.mu.Unlock()

	if key == nil {
		return nil, &ProviderError{Code: CodeUnauthorized, Message: fmt.Sprintf("Unknown account %s.", account.Hex())}
	}
	// sign for the chain the node reports, not the configured label
	conn, err := k.Connect(ctx)
	if err != nil {
		return nil, err
	}
	chainID, err := conn.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}
	if chainID.Uint64() != chain.ChainID {
		k.logger.Warn("node chain differs from network config", "network", chain.Name, "configured", chain.ChainID, "node", chainID)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("new transactor: %w", err)
	}
	sign := opts.Signer
	opts.Signer = func(from common.Address, tx *types.Transaction) (*types.Transaction, error) {
		k.mu.Lock()
		approve := k.approve
		k.mu.Unlock()
		k.logger.Debug("eth_sendTransaction", "from", from.Hex(), "nonce", tx.Nonce())
		ok, err := approve(ctx, Approval{Kind: ApproveTransaction, Account: from, Chain: chain, Tx: tx})
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errUserRejected("User denied transaction signature.")
		}
		return sign(from, tx)
	}
	return opts, nil
}

// SwitchChain implements Provider (wallet_switchEthereumChain).
func (k *Keyring) SwitchChain(ctx context.Context, chainID uint64) error {
	k.mu.Lock()
	idx := k.indexOf(chainID)
	if idx < 0 {
		k.mu.Unlock()
		return errUnrecognizedChain(chainID)
	}
	if idx == k.active {
		k.mu.Unlock()
		return nil
	}
	params := k.networks[idx]
	approve := k.approve
	k.mu.Unlock()

	k.logger.Debug("wallet_switchEthereumChain", "chain", FormatChainID(chainID))
	ok, err := approve(ctx, Approval{Kind: ApproveSwitchChain, Chain: params})
	if err != nil {
		return err
	}
	if !ok {
		return errUserRejected("User rejected the request.")
	}

	k.mu.Lock()
	k.active = k.indexOf(chainID)
	old := k.conn
	k.conn = nil
	k.mu.Unlock()
	if old != nil {
		closeConn(old)
	}
	k.feed.Send(Event{Kind: ChainChanged, ChainID: chainID})
	return nil
}

// AddChain implements Provider (wallet_addEthereumChain). It does not switch.
func (k *Keyring) AddChain(ctx context.Context, params ChainParams) error {
	if params.ChainID == 0 || strings.TrimSpace(params.RPCURL) == "" {
		return &ProviderError{Code: CodeInvalidParams, Message: "Expected chainId and rpcUrls."}
	}
	k.mu.Lock()
	if k.indexOf(params.ChainID) >= 0 {
		k.mu.Unlock()
		return nil
	}
	approve := k.approve
	k.mu.Unlock()

	k.logger.Debug("wallet_addEthereumChain", "chain", FormatChainID(params.ChainID), "rpc", params.RPCURL)
	ok, err := approve(ctx, Approval{Kind: ApproveAddChain, Chain: params})
	if err != nil {
		return err
	}
	if !ok {
		return errUserRejected("User rejected the request.")
	}

	k.mu.Lock()
	if k.indexOf(params.ChainID) < 0 {
		k.networks = append(k.networks, params)
	}
	networks := append([]ChainParams(nil), k.networks...)
	k.mu.Unlock()
	if k.persist != nil {
		k.persist(networks)
	}
	return nil
}

// Subscribe implements Provider.
func (k *Keyring) Subscribe(ch chan<- Event) event.Subscription {
	return k.feed.Subscribe(ch)
}

// Close releases the active connection.
func (k *Keyring) Close() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.conn != nil {
		closeConn(k.conn)
		k.conn = nil
	}
}

// ParsePrivateKeys decodes hex-encoded secp256k1 keys, with or without 0x.
func ParsePrivateKeys(hexKeys []string) ([]*ecdsa.PrivateKey, error) {
	var keys []*ecdsa.PrivateKey
	for i, h := range hexKeys {
		h = strings.TrimPrefix(strings.TrimSpace(h), "0x")
		if h == "" {
			continue
		}
		key, err := crypto.HexToECDSA(h)
		if err != nil {
			return nil, fmt.Errorf("private key %d: %w", i+1, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// LoadKeystore decrypts every key file in a go-ethereum keystore directory.
func LoadKeystore(dir, passphrase string) ([]*ecdsa.PrivateKey, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read keystore: %w", err)
	}
	var keys []*ecdsa.PrivateKey
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		key, err := keystore.DecryptKey(data, passphrase)
		if err != nil {
			return nil, fmt.Errorf("decrypt %s: %w", e.Name(), err)
		}
		keys = append(keys, key.PrivateKey)
	}
	return keys, nil
}
