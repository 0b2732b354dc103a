package messageboard

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	"blockmsg/artifact"
)

var (
	boardAddr  = common.HexToAddress(artifact.LocalDevAddress)
	writerAddr = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
)

func parsedABI(t *testing.T) abi.ABI {
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

// fakeBackend answers eth_call for the view methods and serves logs by polling.
type fakeBackend struct {
	Backend
	abi abi.ABI

	mu      sync.Mutex
	message string
	writer  common.Address
	stamp   *big.Int
	head    uint64
	logs    []types.Log
}

func (f *fakeBackend) CallContract(ctx context.Context, call ethereum.CallMsg, block *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case bytes.HasPrefix(call.Data, f.abi.Methods[methodGetMessage].ID):
		return f.abi.Methods[methodGetMessage].Outputs.Pack(f.message)
	case bytes.HasPrefix(call.Data, f.abi.Methods[methodGetMessageInfo].ID):
		return f.abi.Methods[methodGetMessageInfo].Outputs.Pack(f.message, f.writer, f.stamp)
	}
	return nil, fmt.Errorf("unexpected call %x", call.Data)
}

func (f *fakeBackend) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return nil, gethrpc.ErrNotificationsUnsupported
}

func (f *fakeBackend) BlockNumber(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, nil
}

func (f *fakeBackend) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Log
	for _, l := range f.logs {
		if l.BlockNumber >= q.FromBlock.Uint64() && l.BlockNumber <= q.ToBlock.Uint64() {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeBackend) mine(l types.Log) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.head++
	l.BlockNumber = f.head
	f.logs = append(f.logs, l)
}

func messageSetLog(t *testing.T, parsed abi.ABI, writer common.Address, msg string, ts int64) types.Log {
	t.Helper()
	ev := parsed.Events[EventMessageSet]
	data, err := ev.Inputs.NonIndexed().Pack(msg, big.NewInt(ts))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	return types.Log{
		Address: boardAddr,
		Topics:  []common.Hash{ev.ID, common.BytesToHash(writer.Bytes())},
		Data:    data,
	}
}

func TestNewRejectsIncompleteABI(t *testing.T) {
	parsed, err := abi.JSON(bytes.NewReader([]byte(`[{"type":"function","name":"getMessage","stateMutability":"view","inputs":[],"outputs":[{"type":"string"}]}]`)))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := New(boardAddr, parsed, &fakeBackend{}); err == nil {
		t.Fatal("expected error for ABI without setMessage")
	}
}

func TestReads(t *testing.T) {
	parsed := parsedABI(t)
	backend := &fakeBackend{abi: parsed, message: "gm", writer: writerAddr, stamp: big.NewInt(1700000000)}
	board, err := New(boardAddr, parsed, backend)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	msg, err := board.Message(context.Background())
	if err != nil || msg != "gm" {
		t.Fatalf("Message = %q, %v", msg, err)
	}

	info, err := board.Info(context.Background())
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.Message != "gm" || info.Writer != writerAddr || info.UpdatedAt.Unix() != 1700000000 {
		t.Errorf("Info = %+v", info)
	}

	t.Run("never written", func(t *testing.T) {
		backend.mu.Lock()
		backend.message, backend.writer, backend.stamp = "", common.Address{}, big.NewInt(0)
		backend.mu.Unlock()
		info, err := board.Info(context.Background())
		if err != nil {
			t.Fatalf("Info: %v", err)
		}
		if !info.UpdatedAt.IsZero() {
			t.Errorf("UpdatedAt = %v, want zero", info.UpdatedAt)
		}
	})
}

func TestParseMessageSet(t *testing.T) {
	parsed := parsedABI(t)
	board, err := New(boardAddr, parsed, &fakeBackend{abi: parsed})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ev, err := board.ParseMessageSet(messageSetLog(t, parsed, writerAddr, "hello", 1700000000))
	if err != nil {
		t.Fatalf("ParseMessageSet: %v", err)
	}
	info := ev.Info()
	if info.Message != "hello" || info.Writer != writerAddr || info.UpdatedAt.Unix() != 1700000000 {
		t.Errorf("decoded = %+v", info)
	}

	wrong := types.Log{Topics: []common.Hash{common.HexToHash("0x01")}}
	if _, err := board.ParseMessageSet(wrong); err == nil {
		t.Error("expected error for foreign event")
	}
}

func TestWatchFallsBackToPolling(t *testing.T) {
	parsed := parsedABI(t)
	backend := &fakeBackend{abi: parsed, head: 10}
	board, err := New(boardAddr, parsed, backend)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	board.PollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := make(chan *MessageSet, 1)
	sub, err := board.WatchMessageSet(ctx, sink)
	if err != nil {
		t.Fatalf("WatchMessageSet: %v", err)
	}
	defer sub.Unsubscribe()

	backend.mine(messageSetLog(t, parsed, writerAddr, "polled", 1700000001))

	select {
	case ev := <-sink:
		if ev.Message != "polled" || ev.Writer != writerAddr || ev.Raw.BlockNumber != 11 {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}
}
