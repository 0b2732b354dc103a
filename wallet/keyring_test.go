package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

type stubConn struct {
	Conn
	url     string
	chainID uint64
	closed  bool
}

func (c *stubConn) Close() { c.closed = true }

func (c *stubConn) ChainID(ctx context.Context) (*big.Int, error) {
	return new(big.Int).SetUint64(c.chainID), nil
}

func newTestKeys(t *testing.T, n int) []*ecdsa.PrivateKey {
	t.Helper()
	keys := make([]*ecdsa.PrivateKey, n)
	for i := range keys {
		key, err := crypto.GenerateKey()
		if err != nil {
			t.Fatalf("GenerateKey: %v", err)
		}
		keys[i] = key
	}
	return keys
}

var sepolia = ChainParams{ChainID: 11155111, Name: "Sepolia", RPCURL: "https://sepolia.example", Currency: Currency{Name: "Sepolia Ether", Symbol: "ETH", Decimals: 18}}

func newTestKeyring(t *testing.T, keys []*ecdsa.PrivateKey, approve Approver) *Keyring {
	t.Helper()
	dial := func(ctx context.Context, url string) (Conn, error) {
		if url == sepolia.RPCURL {
			return &stubConn{url: url, chainID: sepolia.ChainID}, nil
		}
		return &stubConn{url: url, chainID: LocalChain.ChainID}, nil
	}
	k, err := NewKeyring(keys, []ChainParams{sepolia, LocalChain}, sepolia.ChainID, WithApprover(approve), WithDialer(dial))
	if err != nil {
		t.Fatalf("NewKeyring: %v", err)
	}
	return k
}

func TestParseChainID(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{"31337", 31337, false},
		{"0x7a69", 31337, false},
		{"0x7A69", 31337, false},
		{" 11155111 ", 11155111, false},
		{"", 0, true},
		{"0xzz", 0, true},
		{"sepolia", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseChainID(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseChainID(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseChainID(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestChainLabel(t *testing.T) {
	if got := ChainLabel(31337); got != "Hardhat Local" {
		t.Errorf("ChainLabel(31337) = %q", got)
	}
	if got := ChainLabel(42); got != "Chain ID 42" {
		t.Errorf("ChainLabel(42) = %q", got)
	}
}

func TestRequestAccounts(t *testing.T) {
	keys := newTestKeys(t, 2)

	t.Run("approved", func(t *testing.T) {
		k := newTestKeyring(t, keys, AutoApprove)
		if got := k.Accounts(); len(got) != 0 {
			t.Fatalf("Accounts before approval = %v, want none", got)
		}
		accounts, err := k.RequestAccounts(context.Background())
		if err != nil {
			t.Fatalf("RequestAccounts: %v", err)
		}
		if len(accounts) != 2 || accounts[0] != crypto.PubkeyToAddress(keys[0].PublicKey) {
			t.Errorf("accounts = %v", accounts)
		}
	})

	t.Run("rejected", func(t *testing.T) {
		k := newTestKeyring(t, keys, func(context.Context, Approval) (bool, error) { return false, nil })
		_, err := k.RequestAccounts(context.Background())
		if !IsUserRejected(err) {
			t.Fatalf("err = %v, want code 4001", err)
		}
	})

	t.Run("already pending", func(t *testing.T) {
		release := make(chan bool)
		entered := make(chan struct{})
		k := newTestKeyring(t, keys, func(ctx context.Context, req Approval) (bool, error) {
			close(entered)
			return <-release, nil
		})
		done := make(chan error, 1)
		go func() {
			_, err := k.RequestAccounts(context.Background())
			done <- err
		}()
		<-entered

		_, err := k.RequestAccounts(context.Background())
		if code, _ := ErrorCode(err); code != CodeRequestPending {
			t.Errorf("second request code = %d, want %d", code, CodeRequestPending)
		}
		release <- true
		if err := <-done; err != nil {
			t.Errorf("first request: %v", err)
		}
	})
}

func TestSignerRequiresAuthorization(t *testing.T) {
	keys := newTestKeys(t, 1)
	k := newTestKeyring(t, keys, AutoApprove)
	_, err := k.Signer(context.Background(), crypto.PubkeyToAddress(keys[0].PublicKey))
	if code, _ := ErrorCode(err); code != CodeUnauthorized {
		t.Fatalf("code = %d, want %d", code, CodeUnauthorized)
	}
}

func TestSignerApproval(t *testing.T) {
	keys := newTestKeys(t, 1)
	addr := crypto.PubkeyToAddress(keys[0].PublicKey)
	approveTx := true
	k := newTestKeyring(t, keys, func(_ context.Context, req Approval) (bool, error) {
		if req.Kind == ApproveTransaction {
			return approveTx, nil
		}
		return true, nil
	})
	if _, err := k.RequestAccounts(context.Background()); err != nil {
		t.Fatalf("RequestAccounts: %v", err)
	}
	opts, err := k.Signer(context.Background(), addr)
	if err != nil {
		t.Fatalf("Signer: %v", err)
	}
	if opts.From != addr {
		t.Fatalf("From = %s, want %s", opts.From.Hex(), addr.Hex())
	}

	to := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   new(big.Int).SetUint64(sepolia.ChainID),
		Nonce:     1,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(2),
		Gas:       50000,
		To:        &to,
	})

	signed, err := opts.Signer(addr, tx)
	if err != nil {
		t.Fatalf("approved signature: %v", err)
	}
	sender, err := types.Sender(types.LatestSignerForChainID(new(big.Int).SetUint64(sepolia.ChainID)), signed)
	if err != nil || sender != addr {
		t.Fatalf("recovered sender = %s, %v", sender.Hex(), err)
	}

	approveTx = false
	if _, err := opts.Signer(addr, tx); !IsUserRejected(err) {
		t.Fatalf("rejected signature err = %v, want 4001", err)
	}
}

func TestSignerUsesNodeChainID(t *testing.T) {
	keys := newTestKeys(t, 1)
	addr := crypto.PubkeyToAddress(keys[0].PublicKey)
	// local network entry whose URL was repointed at a Sepolia node
	dial := func(ctx context.Context, url string) (Conn, error) {
		return &stubConn{url: url, chainID: sepolia.ChainID}, nil
	}
	k, err := NewKeyring(keys, []ChainParams{LocalChain}, LocalChain.ChainID, WithDialer(dial))
	if err != nil {
		t.Fatalf("NewKeyring: %v", err)
	}
	if _, err := k.RequestAccounts(context.Background()); err != nil {
		t.Fatalf("RequestAccounts: %v", err)
	}
	opts, err := k.Signer(context.Background(), addr)
	if err != nil {
		t.Fatalf("Signer: %v", err)
	}

	to := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	tx := types.NewTx(&types.LegacyTx{Nonce: 1, GasPrice: big.NewInt(1), Gas: 50000, To: &to})
	signed, err := opts.Signer(addr, tx)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if got := signed.ChainId().Uint64(); got != sepolia.ChainID {
		t.Fatalf("signed for chain %d, want %d", got, sepolia.ChainID)
	}
}

func TestSwitchAndAddChain(t *testing.T) {
	keys := newTestKeys(t, 1)
	dial := func(ctx context.Context, url string) (Conn, error) {
		return &stubConn{url: url}, nil
	}
	var stored []ChainParams
	k, err := NewKeyring(keys, []ChainParams{sepolia}, 0, WithDialer(dial), WithNetworkStore(func(n []ChainParams) { stored = n }))
	if err != nil {
		t.Fatalf("NewKeyring: %v", err)
	}

	events := make(chan Event, 4)
	sub := k.Subscribe(events)
	defer sub.Unsubscribe()

	err = k.SwitchChain(context.Background(), LocalChain.ChainID)
	if code, _ := ErrorCode(err); code != CodeUnrecognizedChain {
		t.Fatalf("switch to unknown chain code = %d, want %d", code, CodeUnrecognizedChain)
	}

	if err := k.AddChain(context.Background(), LocalChain); err != nil {
		t.Fatalf("AddChain: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("persisted networks = %d, want 2", len(stored))
	}
	if k.Active().ChainID != sepolia.ChainID {
		t.Fatal("AddChain must not switch")
	}

	first, err := k.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := k.SwitchChain(context.Background(), LocalChain.ChainID); err != nil {
		t.Fatalf("SwitchChain: %v", err)
	}
	if !first.(*stubConn).closed {
		t.Error("old connection not closed on switch")
	}
	if k.Endpoint() != LocalChain.RPCURL {
		t.Errorf("Endpoint = %s", k.Endpoint())
	}

	select {
	case ev := <-events:
		if ev.Kind != ChainChanged || ev.ChainID != LocalChain.ChainID {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no chainChanged event")
	}

	err = k.AddChain(context.Background(), ChainParams{Name: "broken"})
	if code, _ := ErrorCode(err); code != CodeInvalidParams {
		t.Errorf("invalid params code = %d", code)
	}
}

func TestAccountNotifications(t *testing.T) {
	keys := newTestKeys(t, 2)
	k := newTestKeyring(t, keys, AutoApprove)
	events := make(chan Event, 4)
	sub := k.Subscribe(events)
	defer sub.Unsubscribe()

	second := crypto.PubkeyToAddress(keys[1].PublicKey)
	if err := k.SelectAccount(second); err != nil {
		t.Fatalf("SelectAccount: %v", err)
	}
	select {
	case ev := <-events:
		t.Fatalf("unexpected event before authorization: %+v", ev)
	default:
	}

	if _, err := k.RequestAccounts(context.Background()); err != nil {
		t.Fatalf("RequestAccounts: %v", err)
	}
	if err := k.SelectAccount(crypto.PubkeyToAddress(keys[0].PublicKey)); err != nil {
		t.Fatalf("SelectAccount: %v", err)
	}
	ev := <-events
	if ev.Kind != AccountsChanged || len(ev.Accounts) != 2 || ev.Accounts[0] != crypto.PubkeyToAddress(keys[0].PublicKey) {
		t.Errorf("select event = %+v", ev)
	}

	k.Lock()
	ev = <-events
	if ev.Kind != AccountsChanged || len(ev.Accounts) != 0 {
		t.Errorf("lock event = %+v", ev)
	}
	if got := k.Accounts(); len(got) != 0 {
		t.Errorf("Accounts after lock = %v", got)
	}

	if err := k.SelectAccount(common.HexToAddress("0x01")); err == nil {
		t.Error("selecting unknown account should fail")
	}
}

func TestParsePrivateKeys(t *testing.T) {
	// Hardhat's first default account.
	const hardhat0 = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	keys, err := ParsePrivateKeys([]string{hardhat0, ""})
	if err != nil {
		t.Fatalf("ParsePrivateKeys: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("got %d keys", len(keys))
	}
	want := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	if got := crypto.PubkeyToAddress(keys[0].PublicKey); got != want {
		t.Errorf("address = %s, want %s", got.Hex(), want.Hex())
	}

	if _, err := ParsePrivateKeys([]string{"0x1234"}); err == nil {
		t.Error("short key should fail")
	}
}

func TestErrorCode(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), &ProviderError{Code: CodeUserRejected, Message: "no"})
	if code, ok := ErrorCode(wrapped); !ok || code != CodeUserRejected {
		t.Errorf("ErrorCode = %d, %v", code, ok)
	}
	if _, ok := ErrorCode(errors.New("plain")); ok {
		t.Error("plain error has no code")
	}
}
