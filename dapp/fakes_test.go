package dapp

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"

	"blockmsg/artifact"
	"blockmsg/messageboard"
	"blockmsg/wallet"
)

var (
	alice = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	bob   = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")

	deployed = "0x000000000000000000000000000000000000bEEF"
)

type fakeConn struct {
	wallet.Conn

	mu         sync.Mutex
	chainID    uint64
	balance    *big.Int
	balanceErr error
}

func (c *fakeConn) ChainID(ctx context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).SetUint64(c.chainID), nil
}

func (c *fakeConn) BalanceAt(ctx context.Context, account common.Address, block *big.Int) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.balanceErr != nil {
		return nil, c.balanceErr
	}
	return c.balance, nil
}

func (c *fakeConn) setChain(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chainID = id
}

type fakeProvider struct {
	conn     *fakeConn
	endpoint string
	feed     event.FeedOf[wallet.Event]

	mu         sync.Mutex
	accounts   []common.Address
	requestErr error
	known      map[uint64]bool
	switchErr  error
	signed     []common.Address
}

func newFakeProvider(chainID uint64) *fakeProvider {
	return &fakeProvider{
		conn:     &fakeConn{chainID: chainID, balance: big.NewInt(1e18)},
		endpoint: "http://127.0.0.1:8545",
		accounts: []common.Address{alice, bob},
		known:    map[uint64]bool{chainID: true},
	}
}

func (p *fakeProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.requestErr != nil {
		return nil, p.requestErr
	}
	return append([]common.Address(nil), p.accounts...), nil
}

func (p *fakeProvider) Connect(ctx context.Context) (wallet.Conn, error) {
	return p.conn, nil
}

func (p *fakeProvider) Signer(ctx context.Context, account common.Address) (*bind.TransactOpts, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signed = append(p.signed, account)
	return &bind.TransactOpts{From: account}, nil
}

func (p *fakeProvider) SwitchChain(ctx context.Context, chainID uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.switchErr != nil {
		return p.switchErr
	}
	if !p.known[chainID] {
		return &wallet.ProviderError{Code: wallet.CodeUnrecognizedChain, Message: "Unrecognized chain ID"}
	}
	p.conn.setChain(chainID)
	return nil
}

func (p *fakeProvider) AddChain(ctx context.Context, params wallet.ChainParams) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.known[params.ChainID] = true
	return nil
}

func (p *fakeProvider) Subscribe(ch chan<- wallet.Event) event.Subscription {
	return p.feed.Subscribe(ch)
}

func (p *fakeProvider) Endpoint() string {
	return p.endpoint
}

func (p *fakeProvider) signers() []common.Address {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]common.Address(nil), p.signed...)
}

type fakeBoard struct {
	events chan *messageboard.MessageSet

	mu        sync.Mutex
	message   string
	writer    common.Address
	updated   time.Time
	readErr   error
	setErr    error
	waitErr   error
	submitted []string
	pending   map[common.Hash]string
	from      map[common.Hash]common.Address
	watchers  int
	reads     int
}

func newFakeBoard() *fakeBoard {
	return &fakeBoard{
		events:  make(chan *messageboard.MessageSet),
		pending: map[common.Hash]string{},
		from:    map[common.Hash]common.Address{},
	}
}

func (b *fakeBoard) Message(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reads++
	if b.readErr != nil {
		return "", b.readErr
	}
	return b.message, nil
}

func (b *fakeBoard) Info(ctx context.Context) (messageboard.Info, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reads++
	if b.readErr != nil {
		return messageboard.Info{}, b.readErr
	}
	return messageboard.Info{Message: b.message, Writer: b.writer, UpdatedAt: b.updated}, nil
}

func (b *fakeBoard) SetMessage(opts *bind.TransactOpts, text string) (*types.Transaction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.setErr != nil {
		return nil, b.setErr
	}
	b.submitted = append(b.submitted, text)
	tx := types.NewTx(&types.LegacyTx{Nonce: uint64(len(b.submitted)), Data: []byte(text)})
	b.pending[tx.Hash()] = text
	b.from[tx.Hash()] = opts.From
	return tx, nil
}

func (b *fakeBoard) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.waitErr != nil {
		return nil, b.waitErr
	}
	b.message = b.pending[tx.Hash()]
	b.writer = b.from[tx.Hash()]
	b.updated = time.Unix(1700000000, 0)
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: tx.Hash()}, nil
}

func (b *fakeBoard) WatchMessageSet(ctx context.Context, sink chan<- *messageboard.MessageSet) (event.Subscription, error) {
	b.mu.Lock()
	b.watchers++
	b.mu.Unlock()
	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer func() {
			b.mu.Lock()
			b.watchers--
			b.mu.Unlock()
		}()
		for {
			select {
			case ev := <-b.events:
				select {
				case sink <- ev:
				case <-quit:
					return nil
				}
			case <-quit:
				return nil
			}
		}
	}), nil
}

func (b *fakeBoard) liveWatchers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.watchers
}

func (b *fakeBoard) readCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reads
}

func (b *fakeBoard) submissions() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.submitted...)
}

func boardABI(t *testing.T) abi.ABI {
	t.Helper()
	a, err := artifact.Default()
	if err != nil {
		t.Fatalf("artifact: %v", err)
	}
	parsed, err := a.ParsedABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	return parsed
}

func newTestClient(t *testing.T, p wallet.Provider, board *fakeBoard, settings Settings, opts ...Option) *Client {
	t.Helper()
	if settings.ContractAddress == "" {
		settings.ContractAddress = deployed
	}
	settings.ABI = boardABI(t)
	binder := func(common.Address, abi.ABI, wallet.Conn) (Board, error) { return board, nil }
	return New(p, settings, append([]Option{WithBinder(binder)}, opts...)...)
}

// connectedState builds a state as if Connect and Bind had succeeded.
func connectedState(board Board) State {
	s := State{Epoch: 1}
	s.Session = &WalletSession{Address: alice, ChainID: 31337, Balance: big.NewInt(1), Signer: &bind.TransactOpts{From: alice}}
	s.Binding = &ContractBinding{Address: common.HexToAddress(deployed), Board: board, Account: alice}
	s.Network = NetworkInfo{Name: "Hardhat Local", ChainID: 31337}
	return s
}

var errBoom = errors.New("boom")
