package dapp

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"blockmsg/artifact"
)

func TestBindGuards(t *testing.T) {
	session := WalletSession{Address: alice}
	tests := []struct {
		name     string
		address  string
		endpoint string
		enforced bool
		want     Kind
	}{
		{"missing address", " ", "http://127.0.0.1:8545", false, KindMissingContractConfig},
		{"malformed address", "0x1234", "http://127.0.0.1:8545", false, KindMissingContractConfig},
		{"local default on hosted node", artifact.LocalDevAddress, "https://sepolia.example", false, KindUnsafeDefaultAddress},
		{"local default on local node", artifact.LocalDevAddress, "http://localhost:8545", false, KindNone},
		{"local default with pinned chain", artifact.LocalDevAddress, "https://sepolia.example", true, KindNone},
		{"explicit address on hosted node", deployed, "https://sepolia.example", false, KindNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakeProvider(31337)
			p.endpoint = tt.endpoint
			settings := Settings{
				ContractAddress: tt.address,
				Expectation:     NetworkExpectation{RequiredChainID: 31337, Enforced: tt.enforced},
			}
			c := newTestClient(t, p, newFakeBoard(), settings)
			ev := c.Bind(context.Background(), 1, session)
			switch ev := ev.(type) {
			case BindFailed:
				if ev.Err.Kind != tt.want {
					t.Errorf("kind = %v, want %v", ev.Err.Kind, tt.want)
				}
			case Bound:
				if tt.want != KindNone {
					t.Errorf("bound, want %v", tt.want)
				}
				if ev.Binding.Account != alice {
					t.Errorf("account = %s", ev.Binding.Account.Hex())
				}
			default:
				t.Fatalf("event = %#v", ev)
			}
		})
	}
}

func TestRead(t *testing.T) {
	board := newFakeBoard()
	board.message, board.writer, board.updated = "gm", bob, time.Unix(1700000000, 0)
	c := newTestClient(t, newFakeProvider(31337), board, Settings{})
	binding := &ContractBinding{Board: board}

	loaded, ok := c.Read(context.Background(), 1, binding).(MessageLoaded)
	if !ok {
		t.Fatal("read failed")
	}
	if loaded.Record.Text != "gm" || loaded.Record.Writer != bob || !loaded.Record.UpdatedAt.Equal(board.updated) {
		t.Errorf("record = %+v", loaded.Record)
	}

	board.readErr = errBoom
	failed, ok := c.Read(context.Background(), 1, binding).(ReadFailed)
	if !ok || failed.Err.Kind != KindReadFailed || failed.Err.Message != MsgReadFailed {
		t.Errorf("failed read = %#v", failed)
	}
}

func TestSubmitAndConfirm(t *testing.T) {
	board := newFakeBoard()
	c := newTestClient(t, newFakeProvider(31337), board, Settings{})
	s := connectedState(board)
	ctx := context.Background()

	submitted, ok := c.Submit(ctx, 1, 1, s.Binding, *s.Session, "hello").(WriteSubmitted)
	if !ok {
		t.Fatal("submit failed")
	}
	if (submitted.Tx.Hash() == common.Hash{}) {
		t.Error("no tx hash")
	}
	if _, ok := c.Confirm(ctx, 1, 1, s.Binding, submitted.Tx).(WriteConfirmed); !ok {
		t.Fatal("confirm failed")
	}
	if board.message != "hello" || board.writer != alice {
		t.Errorf("board = %q by %s", board.message, board.writer.Hex())
	}

	board.waitErr = errBoom
	failed, ok := c.Confirm(ctx, 1, 2, s.Binding, submitted.Tx).(WriteFailed)
	if !ok || failed.Err.Kind != KindTransactionFailed || failed.Seq != 2 {
		t.Errorf("confirm failure = %#v", failed)
	}

	noSigner := *s.Session
	noSigner.Signer = nil
	if _, ok := c.Submit(ctx, 1, 3, s.Binding, noSigner, "x").(WriteFailed); !ok {
		t.Error("submit without signer must fail")
	}
}
