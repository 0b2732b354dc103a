package dapp

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"blockmsg/messageboard"
	"blockmsg/wallet"
)

// Bridge turns wallet and contract notifications into events. All
// notifications leave through one channel read by Next.
type Bridge struct {
	provider wallet.Provider
	out      chan Event
	log      *log.Logger

	mu       sync.Mutex
	wallet   *watch
	contract *watch
	// detached is the highest epoch passed to Detach; older sessions
	// never attach again.
	detached uint64
}

// watch is one group of subscription goroutines sharing a lifetime.
type watch struct {
	epoch  uint64
	cancel context.CancelFunc
	group  *errgroup.Group
}

func newWatch(parent context.Context, epoch uint64) (*watch, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	g, gctx := errgroup.WithContext(ctx)
	return &watch{epoch: epoch, cancel: cancel, group: g}, gctx
}

func (w *watch) stop() error {
	if w == nil {
		return nil
	}
	w.cancel()
	err := w.group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// NewBridge creates a bridge for provider, which may be nil.
func NewBridge(provider wallet.Provider, logger *log.Logger) *Bridge {
	return &Bridge{
		provider: provider,
		out:      make(chan Event, 64),
		log:      logger,
	}
}

// Next blocks until the next notification. It returns nil when ctx ends.
func (b *Bridge) Next(ctx context.Context) Event {
	select {
	case ev := <-b.out:
		return ev
	case <-ctx.Done():
		return nil
	}
}

func (b *Bridge) emit(ctx context.Context, ev Event) {
	select {
	case b.out <- ev:
	case <-ctx.Done():
	}
}

// AttachWallet subscribes to account and chain changes for the session in
// epoch, replacing watchers of older sessions.
func (b *Bridge) AttachWallet(ctx context.Context, epoch uint64) error {
	if b.provider == nil {
		return nil
	}
	b.mu.Lock()
	if epoch < b.detached || (b.wallet != nil && b.wallet.epoch > epoch) {
		b.mu.Unlock()
		return nil
	}
	old := []*watch{b.wallet}
	if b.contract != nil && b.contract.epoch < epoch {
		old = append(old, b.contract)
		b.contract = nil
	}
	w, wctx := newWatch(ctx, epoch)
	b.wallet = w

	ch := make(chan wallet.Event, 16)
	sub := b.provider.Subscribe(ch)
	w.group.Go(func() error {
		defer sub.Unsubscribe()
		for {
			select {
			case ev := <-ch:
				b.forward(wctx, epoch, ev)
			case err := <-sub.Err():
				return err
			case <-wctx.Done():
				return nil
			}
		}
	})
	b.mu.Unlock()

	b.stopAll(old...)
	return nil
}

func (b *Bridge) forward(ctx context.Context, epoch uint64, ev wallet.Event) {
	switch ev.Kind {
	case wallet.AccountsChanged:
		b.log.Debug("wallet event", "kind", ev.Kind, "accounts", len(ev.Accounts))
		b.emit(ctx, AccountsChanged{Epoch: Epoch(epoch), Accounts: ev.Accounts})
	case wallet.ChainChanged:
		b.log.Debug("wallet event", "kind", ev.Kind, "chain", ev.ChainID)
		b.emit(ctx, ChainChanged{Epoch: Epoch(epoch), ChainID: ev.ChainID})
	}
}

// AttachContract subscribes to MessageSet on board, replacing the previous
// contract watcher.
func (b *Bridge) AttachContract(ctx context.Context, epoch uint64, board Board) error {
	b.mu.Lock()
	if epoch < b.detached || (b.contract != nil && b.contract.epoch > epoch) || (b.wallet != nil && b.wallet.epoch > epoch) {
		b.mu.Unlock()
		return nil
	}
	old := b.contract
	w, wctx := newWatch(ctx, epoch)
	b.contract = w
	b.mu.Unlock()
	b.stopAll(old)

	sink := make(chan *messageboard.MessageSet, 16)
	sub, err := board.WatchMessageSet(wctx, sink)
	if err != nil {
		w.cancel()
		return fmt.Errorf("watch %s: %w", messageboard.EventMessageSet, err)
	}
	w.group.Go(func() error {
		defer sub.Unsubscribe()
		for {
			select {
			case ev := <-sink:
				info := ev.Info()
				b.log.Debug("contract event", "event", messageboard.EventMessageSet, "writer", info.Writer.Hex())
				b.emit(wctx, MessageObserved{Epoch: Epoch(epoch), Record: MessageRecord{
					Text:      info.Message,
					Writer:    info.Writer,
					UpdatedAt: info.UpdatedAt,
				}})
			case err := <-sub.Err():
				return err
			case <-wctx.Done():
				return nil
			}
		}
	})
	return nil
}

// Detach stops every watcher started before epoch and waits for them.
// Later attaches for those epochs are refused.
func (b *Bridge) Detach(epoch uint64) {
	b.mu.Lock()
	if epoch > b.detached {
		b.detached = epoch
	}
	var old []*watch
	if b.wallet != nil && b.wallet.epoch < epoch {
		old = append(old, b.wallet)
		b.wallet = nil
	}
	if b.contract != nil && b.contract.epoch < epoch {
		old = append(old, b.contract)
		b.contract = nil
	}
	b.mu.Unlock()
	b.stopAll(old...)
}

// Attached reports the epochs of the live watchers, zero when absent.
func (b *Bridge) Attached() (walletEpoch, contractEpoch uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.wallet != nil {
		walletEpoch = b.wallet.epoch
	}
	if b.contract != nil {
		contractEpoch = b.contract.epoch
	}
	return walletEpoch, contractEpoch
}

func (b *Bridge) stopAll(ws ...*watch) {
	for _, w := range ws {
		if err := w.stop(); err != nil {
			b.log.Warn("watcher stopped with error", "epoch", w.epoch, "err", err)
		}
	}
}
