package dapp

import (
	"context"
	"sync"
)

// Runner drives a Client without a UI: it owns the state, applies events in
// order and runs effects on their own goroutines.
type Runner struct {
	client *Client
	events chan Event

	mu        sync.RWMutex
	state     State
	observers []observer
}

type observer struct {
	ctx context.Context
	ch  chan<- Update
}

// Update is one applied event and the state it produced.
type Update struct {
	Event Event
	State State
}

// NewRunner creates a runner for c.
func NewRunner(c *Client) *Runner {
	return &Runner{
		client: c,
		events: make(chan Event, 64),
	}
}

// State returns the current state.
func (r *Runner) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Dispatch queues a user event.
func (r *Runner) Dispatch(ctx context.Context, ev Event) {
	select {
	case r.events <- ev:
	case <-ctx.Done():
	}
}

// Observe delivers every applied event to ch until ctx ends. Slow observers
// block the loop.
func (r *Runner) Observe(ctx context.Context, ch chan<- Update) {
	r.mu.Lock()
	r.observers = append(r.observers, observer{ctx: ctx, ch: ch})
	r.mu.Unlock()
	go func() {
		<-ctx.Done()
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, o := range r.observers {
			if o.ch == ch {
				r.observers = append(r.observers[:i], r.observers[i+1:]...)
				break
			}
		}
	}()
}

// Run processes events until ctx ends.
func (r *Runner) Run(ctx context.Context) error {
	r.spawn(ctx, r.client.Init())
	for {
		select {
		case <-ctx.Done():
			r.client.bridge.Detach(^uint64(0))
			return ctx.Err()
		case ev := <-r.events:
			next, effects := r.client.Handle(r.State(), ev)
			r.mu.Lock()
			r.state = next
			observers := append([]observer(nil), r.observers...)
			r.mu.Unlock()
			for _, o := range observers {
				select {
				case o.ch <- Update{Event: ev, State: next}:
				case <-o.ctx.Done():
				case <-ctx.Done():
				}
			}
			r.spawn(ctx, effects)
		}
	}
}

func (r *Runner) spawn(ctx context.Context, effects []Effect) {
	for _, eff := range effects {
		go func(eff Effect) {
			ev := eff(ctx)
			if ev == nil {
				return
			}
			select {
			case r.events <- ev:
			case <-ctx.Done():
			}
		}(eff)
	}
}

// Await dispatches ev (when non-nil), then waits for an update that done
// accepts. done returns a non-nil error to stop waiting with that error.
func (r *Runner) Await(ctx context.Context, ev Event, done func(Update) (bool, error)) (State, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	updates := make(chan Update, 16)
	r.Observe(ctx, updates)
	if ev != nil {
		r.Dispatch(ctx, ev)
	}
	for {
		select {
		case <-ctx.Done():
			return r.State(), ctx.Err()
		case u := <-updates:
			ok, err := done(u)
			if err != nil {
				return u.State, err
			}
			if ok {
				return u.State, nil
			}
		}
	}
}
