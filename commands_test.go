package main

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"blockmsg/wallet"
)

func TestPromptApprover(t *testing.T) {
	t.Run("answered", func(t *testing.T) {
		approve := promptApprover(func(msg tea.Msg) {
			req, ok := msg.(approvalRequestMsg)
			if !ok {
				t.Fatalf("unexpected message %T", msg)
			}
			req.reply <- true
		})
		ok, err := approve(context.Background(), wallet.Approval{Kind: wallet.ApproveConnect})
		if err != nil || !ok {
			t.Fatalf("got (%v, %v), want (true, nil)", ok, err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		approve := promptApprover(func(tea.Msg) { cancel() })
		ok, err := approve(ctx, wallet.Approval{Kind: wallet.ApproveConnect})
		if ok || !errors.Is(err, context.Canceled) {
			t.Fatalf("got (%v, %v), want (false, context.Canceled)", ok, err)
		}
	})
}

func TestLogBuffer(t *testing.T) {
	var b logBuffer
	if _, err := b.Write([]byte("hello\n")); err != nil {
		t.Fatal(err)
	}
	if got := b.String(); got != "hello\n" {
		t.Errorf("String() = %q", got)
	}
	b.Reset()
	if got := b.String(); got != "" {
		t.Errorf("after Reset String() = %q", got)
	}
}
