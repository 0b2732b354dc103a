package dapp

import (
	"strings"
)

// Reduce applies ev to s. It never blocks and never performs I/O.
func Reduce(s State, ev Event) State {
	if sc, ok := ev.(scoped); ok && sc.epoch() != s.Epoch {
		return s
	}

	switch ev := ev.(type) {
	case ConnectRequested:
		if s.Connecting {
			return s
		}
		s.Connecting = true
		s.Err = nil

	case Connected:
		if !s.Connecting {
			return s
		}
		s.Epoch++
		s.Connecting = false
		s.Session = ev.Session
		s.Network = ev.Network
		// the old binding belongs to the previous epoch
		s.Binding = nil
		s.LoadingMessage = false
		s.Err = nil

	case ConnectFailed:
		s.Connecting = false
		s.Err = ev.Err
		if ev.Network != (NetworkInfo{}) {
			s.Network = ev.Network
		}

	case DisconnectRequested:
		return clearSession(s)

	case BalanceRefreshed:
		if s.Session == nil || s.Session.Address != ev.Address {
			return s
		}
		sess := *s.Session
		sess.Balance = ev.Balance
		s.Session = &sess

	case SignerChanged:
		if s.Session == nil || s.Session.Address != ev.Address {
			return s
		}
		sess := *s.Session
		sess.Signer = ev.Signer
		s.Session = &sess

	case SwitchRequested, AddRequested:
		if s.Switching {
			return s
		}
		s.Switching = true
		s.Err = nil

	case NetworkSwitched, NetworkAdded:
		s.Switching = false

	case NetworkSwitchFailed:
		s.Switching = false
		s.Err = ev.Err

	case Bound:
		if s.Session == nil || ev.Binding == nil || ev.Binding.Account != s.Session.Address {
			return s
		}
		s.Binding = ev.Binding
		s.LoadingMessage = true

	case BindFailed:
		s.Binding = nil
		s.LoadingMessage = false
		s.Err = ev.Err

	case ReadRequested:
		if s.Binding == nil {
			return s
		}
		s.LoadingMessage = true

	case MessageLoaded:
		s.Message = ev.Record
		s.LoadingMessage = false

	case ReadFailed:
		s.LoadingMessage = false
		s.Err = ev.Err

	case DraftChanged:
		s.Draft = ev.Text

	case WriteRequested:
		if s.Sending {
			return s
		}
		if s.Binding == nil || strings.TrimSpace(ev.Text) == "" {
			s.Err = newError(KindEmptyMessage, MsgEmptyMessage, nil)
			return s
		}
		s.Attempts++
		s.Tx = TransactionAttempt{Status: TxPending, Seq: s.Attempts}
		s.Sending = true
		s.Err = nil

	case WriteSubmitted:
		if s.Tx.Seq != ev.Seq || ev.Tx == nil {
			return s
		}
		s.Tx.Hash = ev.Tx.Hash()

	case WriteConfirmed:
		if s.Tx.Seq != ev.Seq {
			return s
		}
		s.Tx.Status = TxSuccess
		s.Sending = false
		s.Draft = ""

	case WriteFailed:
		if s.Tx.Seq != ev.Seq {
			return s
		}
		err := Error{Kind: KindTransactionFailed, Message: MsgWriteFailed}
		if ev.Err != nil {
			err = *ev.Err
		}
		err.Attempt = ev.Seq
		s.Tx.Status = TxError
		s.Tx.Reason = err.Message
		s.Sending = false
		s.Err = &err

	case TxReset:
		if s.Tx.Seq != ev.Seq || (s.Tx.Status != TxSuccess && s.Tx.Status != TxError) {
			return s
		}
		s.Tx = TransactionAttempt{Seq: ev.Seq}
		if s.Err != nil && s.Err.Attempt == ev.Seq {
			s.Err = nil
		}

	case AccountsChanged:
		if s.Session == nil {
			return s
		}
		if len(ev.Accounts) == 0 {
			return clearSession(s)
		}
		if s.Session.Address == ev.Accounts[0] {
			return s
		}
		sess := *s.Session
		sess.Address = ev.Accounts[0]
		sess.Balance = nil
		sess.Signer = nil
		s.Session = &sess
		// rebuilt once the new account's signer arrives
		s.Binding = nil

	case ChainChanged:
		return reload(s)

	case MessageObserved:
		s.Message = ev.Record
	}
	return s
}

// clearSession is the disconnect transition. Repeating it changes nothing.
func clearSession(s State) State {
	epoch := s.Epoch
	if s.Session != nil || s.Connecting {
		epoch++
	}
	return State{Epoch: epoch, Attempts: s.Attempts}
}

// reload returns the startup state in a fresh epoch.
func reload(s State) State {
	return State{Epoch: s.Epoch + 1, Attempts: s.Attempts}
}
