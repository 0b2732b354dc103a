package main

import (
	"testing"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"blockmsg/dapp"
)

func TestComposerGatedWhileSending(t *testing.T) {
	sending := dapp.State{Binding: &dapp.ContractBinding{}, Sending: true}

	t.Run("focus", func(t *testing.T) {
		m := &model{input: textinput.New(), state: sending}
		m.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("i")})
		if m.editing {
			t.Fatal("composer opened while a write is pending")
		}
	})

	t.Run("submit", func(t *testing.T) {
		m := &model{input: textinput.New(), state: sending, editing: true}
		m.input.SetValue("again")
		_, cmd := m.handleKey(tea.KeyMsg{Type: tea.KeyEnter})
		if cmd != nil {
			t.Fatal("enter dispatched a write while one is pending")
		}
		if m.state.Attempts != 0 {
			t.Fatalf("attempts = %d", m.state.Attempts)
		}
	})

	t.Run("unbound", func(t *testing.T) {
		m := &model{input: textinput.New()}
		m.handleKey(tea.KeyMsg{Type: tea.KeyTab})
		if m.editing {
			t.Fatal("composer opened without a contract binding")
		}
	})
}
