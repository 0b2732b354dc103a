package dapp

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ethereum/go-ethereum/accounts/abi"

	"blockmsg/rpc"
	"blockmsg/wallet"
)

// Effect is one suspended operation. Its result, if any, is the next event.
type Effect func(ctx context.Context) Event

// Settings are resolved once at startup.
type Settings struct {
	// ContractAddress as configured; validated when binding.
	ContractAddress string
	ABI             abi.ABI
	Expectation     NetworkExpectation
	// LocalChain is the target of SwitchNetwork and AddNetwork.
	LocalChain wallet.ChainParams
}

// Timing controls how long finished transactions stay on screen.
type Timing struct {
	SuccessDisplay time.Duration
	ErrorDisplay   time.Duration
}

// DefaultTiming keeps a success for 5s and an error for 8s.
var DefaultTiming = Timing{SuccessDisplay: 5 * time.Second, ErrorDisplay: 8 * time.Second}

// Option configures a Client.
type Option func(*Client)

func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.log = l }
}

func WithBinder(b Binder) Option {
	return func(c *Client) { c.binder = b }
}

func WithTiming(t Timing) Option {
	return func(c *Client) { c.timing = t }
}

// WithLocalCheck overrides how an RPC endpoint is recognised as a local node.
func WithLocalCheck(fn func(endpoint string) bool) Option {
	return func(c *Client) { c.isLocal = fn }
}

// Client wires the Connection Manager, Contract Session and Event Bridge
// to the state container.
type Client struct {
	provider wallet.Provider
	settings Settings
	binder   Binder
	bridge   *Bridge
	timing   Timing
	isLocal  func(string) bool
	log      *log.Logger
}

// New creates a client. provider may be nil, in which case connecting
// reports KindProviderUnavailable.
func New(provider wallet.Provider, settings Settings, opts ...Option) *Client {
	if settings.LocalChain.ChainID == 0 {
		settings.LocalChain = wallet.LocalChain
	}
	c := &Client{
		provider: provider,
		settings: settings,
		binder:   BindMessageBoard,
		timing:   DefaultTiming,
		isLocal:  rpc.IsLocalEndpoint,
		log:      log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.bridge = NewBridge(provider, c.log)
	return c
}

// Settings returns the startup settings.
func (c *Client) Settings() Settings {
	return c.settings
}

// Bridge returns the client's event bridge.
func (c *Client) Bridge() *Bridge {
	return c.bridge
}

// Init returns the effects to start with: listening on the bridge.
func (c *Client) Init() []Effect {
	return []Effect{c.bridge.Next}
}

// Handle reduces ev into s and returns the follow-up effects.
func (c *Client) Handle(s State, ev Event) (State, []Effect) {
	var effects []Effect
	if _, ok := ev.(bridged); ok {
		effects = append(effects, c.bridge.Next)
	}
	if sc, ok := ev.(scoped); ok && sc.epoch() != s.Epoch {
		c.log.Debug("dropping stale event", "event", EventName(ev), "epoch", sc.epoch(), "current", s.Epoch)
		return s, effects
	}

	next := Reduce(s, ev)
	switch ev := ev.(type) {
	case ConnectRequested:
		if s.Connecting {
			break
		}
		epoch := next.Epoch
		effects = append(effects, func(ctx context.Context) Event { return c.Connect(ctx, epoch) })

	case Connected:
		if next.Session == nil || next.Epoch == s.Epoch {
			break
		}
		c.log.Info("wallet connected", "account", next.Session.Address.Hex(), "chain", next.Session.ChainID)
		epoch, session := next.Epoch, *next.Session
		effects = append(effects,
			c.attachWallet(epoch),
			func(ctx context.Context) Event { return c.Bind(ctx, epoch, session) },
		)

	case ConnectFailed:
		c.log.Error("connect failed", "kind", ev.Err.Kind, "err", ev.Err.Message)

	case DisconnectRequested:
		c.log.Info("disconnected")
		effects = append(effects, c.detach(next.Epoch))

	case Bound:
		if next.Binding != ev.Binding {
			break
		}
		epoch, binding := next.Epoch, next.Binding
		effects = append(effects,
			func(ctx context.Context) Event { return c.Read(ctx, epoch, binding) },
			c.attachContract(epoch, binding.Board),
		)

	case BindFailed:
		c.log.Error("contract unavailable", "kind", ev.Err.Kind, "err", ev.Err.Message)

	case ReadRequested:
		if next.Binding == nil {
			break
		}
		epoch, binding := next.Epoch, next.Binding
		effects = append(effects, func(ctx context.Context) Event { return c.Read(ctx, epoch, binding) })

	case MessageLoaded:
		c.log.Debug("message loaded", "writer", ev.Record.Writer.Hex())

	case ReadFailed:
		c.log.Error("read failed", "err", ev.Err.Err)

	case WriteRequested:
		if next.Attempts == s.Attempts {
			if next.Err != nil && next.Err != s.Err {
				c.log.Warn("write refused", "reason", next.Err.Message)
			}
			break
		}
		epoch, seq, binding, session := next.Epoch, next.Tx.Seq, next.Binding, *next.Session
		text := strings.TrimSpace(ev.Text)
		c.log.Info("sending message", "seq", seq, "length", len(text))
		effects = append(effects, func(ctx context.Context) Event {
			return c.Submit(ctx, epoch, seq, binding, session, text)
		})

	case WriteSubmitted:
		if s.Tx.Seq != ev.Seq || ev.Tx == nil || ev.Binding == nil {
			break
		}
		epoch, seq, binding, tx := next.Epoch, ev.Seq, ev.Binding, ev.Tx
		effects = append(effects, func(ctx context.Context) Event {
			return c.Confirm(ctx, epoch, seq, binding, tx)
		})

	case WriteConfirmed:
		if s.Tx.Seq != ev.Seq {
			break
		}
		c.log.Info("transaction confirmed", "hash", next.Tx.Hash.Hex())
		effects = append(effects, c.resetAfter(c.timing.SuccessDisplay, ev.Seq))
		if next.Binding != nil {
			epoch, binding := next.Epoch, next.Binding
			effects = append(effects, func(ctx context.Context) Event { return c.Read(ctx, epoch, binding) })
		}

	case WriteFailed:
		if s.Tx.Seq != ev.Seq {
			break
		}
		c.log.Error("transaction failed", "kind", next.Err.Kind, "err", next.Err.Message)
		effects = append(effects, c.resetAfter(c.timing.ErrorDisplay, ev.Seq))

	case AccountsChanged:
		if s.Session == nil {
			break
		}
		if next.Session == nil {
			c.log.Info("wallet locked, disconnecting")
			effects = append(effects, c.detach(next.Epoch))
			break
		}
		if next.Session.Address == s.Session.Address {
			break
		}
		c.log.Info("account changed", "account", next.Session.Address.Hex())
		epoch, session := next.Epoch, *next.Session
		effects = append(effects,
			func(ctx context.Context) Event { return c.RefreshBalance(ctx, epoch, session) },
			func(ctx context.Context) Event { return c.Resign(ctx, epoch, session.Address) },
		)

	case SignerChanged:
		if next.Session == nil || next.Session.Signer != ev.Signer {
			break
		}
		epoch, session := next.Epoch, *next.Session
		effects = append(effects, func(ctx context.Context) Event { return c.Bind(ctx, epoch, session) })

	case ChainChanged:
		c.log.Info("network changed, reloading", "chain", ev.ChainID)
		effects = append(effects, c.detach(next.Epoch))

	case MessageObserved:
		c.log.Info("message updated on chain", "writer", ev.Record.Writer.Hex())

	case SwitchRequested:
		if s.Switching {
			break
		}
		effects = append(effects, c.SwitchNetwork)

	case AddRequested:
		if s.Switching {
			break
		}
		effects = append(effects, c.AddNetwork)

	case NetworkSwitched:
		c.log.Info("network switched", "chain", ev.ChainID)

	case NetworkSwitchFailed:
		c.log.Error("network switch failed", "err", ev.Err.Message)
	}
	return next, effects
}

func (c *Client) attachWallet(epoch uint64) Effect {
	return func(ctx context.Context) Event {
		if err := c.bridge.AttachWallet(ctx, epoch); err != nil {
			c.log.Warn("wallet notifications unavailable", "err", err)
		}
		return nil
	}
}

func (c *Client) attachContract(epoch uint64, board Board) Effect {
	return func(ctx context.Context) Event {
		if err := c.bridge.AttachContract(ctx, epoch, board); err != nil {
			c.log.Warn("contract notifications unavailable", "err", err)
		}
		return nil
	}
}

func (c *Client) detach(epoch uint64) Effect {
	return func(context.Context) Event {
		c.bridge.Detach(epoch)
		return nil
	}
}

func (c *Client) resetAfter(d time.Duration, seq uint64) Effect {
	return func(ctx context.Context) Event {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			return TxReset{Seq: seq}
		case <-ctx.Done():
			return nil
		}
	}
}

// EventName is a short name for logs.
func EventName(ev Event) string {
	name := fmt.Sprintf("%T", ev)
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}
