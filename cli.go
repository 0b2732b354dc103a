package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"blockmsg/dapp"
	"blockmsg/helpers"
	"blockmsg/wallet"
)

type rootOptions struct {
	configPath   string
	artifactPath string
	verbose      bool
	autoApprove  bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "blockmsg",
		Short: "Read and write the MessageBoard contract from your terminal",
		Long: `blockmsg connects a local wallet to the MessageBoard contract.

Without a subcommand it starts the interactive dApp. Wallet keys come from
BLOCKMSG_PRIVATE_KEYS or a keystore directory (BLOCKMSG_KEYSTORE).`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(opts)
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.blockmsg-config.json)")
	root.PersistentFlags().StringVar(&opts.artifactPath, "artifact", "", "deployment artifact JSON (default: embedded local deployment)")
	root.PersistentFlags().BoolVar(&opts.verbose, "log", false, "verbose logging")
	root.PersistentFlags().BoolVarP(&opts.autoApprove, "yes", "y", false, "approve wallet requests without asking")

	root.AddCommand(newReadCmd(opts))
	root.AddCommand(newPostCmd(opts))
	root.AddCommand(newWatchCmd(opts))
	return root
}

func newReadCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "read",
		Short: "Print the current message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return withRunner(ctx, opts, func(r *dapp.Runner) error {
				s, err := connectAndRead(ctx, r)
				if err != nil {
					return err
				}
				printRecord(cmd.OutOrStdout(), s.Message)
				return nil
			})
		},
	}
}

func newPostCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "post <message>",
		Short: "Write a new message and wait for confirmation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			text := strings.Join(args, " ")
			return withRunner(ctx, opts, func(r *dapp.Runner) error {
				if _, err := connectAndRead(ctx, r); err != nil {
					return err
				}
				confirmed := false
				s, err := r.Await(ctx, dapp.WriteRequested{Text: text}, func(u dapp.Update) (bool, error) {
					switch ev := u.Event.(type) {
					case dapp.WriteSubmitted:
						fmt.Fprintln(cmd.ErrOrStderr(), "submitted", ev.Tx.Hash().Hex())
					case dapp.WriteConfirmed:
						confirmed = true
					case dapp.MessageLoaded:
						return confirmed, nil
					case dapp.ReadFailed:
						// the write already landed
						return confirmed, nil
					}
					if u.State.Err != nil && !confirmed {
						return false, u.State.Err
					}
					return false, nil
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "confirmed", s.Tx.Hash.Hex())
				printRecord(cmd.OutOrStdout(), s.Message)
				return nil
			})
		},
	}
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the message and every update until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return withRunner(ctx, opts, func(r *dapp.Runner) error {
				s, err := connectAndRead(ctx, r)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				printRecord(out, s.Message)
				_, err = r.Await(ctx, nil, func(u dapp.Update) (bool, error) {
					switch u.Event.(type) {
					case dapp.MessageObserved:
						fmt.Fprintln(out, "---")
						printRecord(out, u.State.Message)
					case dapp.ChainChanged, dapp.AccountsChanged:
						if u.State.Session == nil {
							return false, errors.New("wallet session ended")
						}
					}
					return false, nil
				})
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}
}

// withRunner builds the client with a stderr logger and runs fn against a
// live runner.
func withRunner(ctx context.Context, opts *rootOptions, fn func(*dapp.Runner) error) error {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, TimeFormat: "15:04:05"})
	if opts.verbose {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.WarnLevel)
	}

	a, err := setup(opts, logger, confirmApprover)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	r := dapp.NewRunner(a.client)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run(ctx)
	}()
	err = fn(r)
	cancel()
	<-done
	return err
}

// connectAndRead connects the wallet and waits for the first message read.
func connectAndRead(ctx context.Context, r *dapp.Runner) (dapp.State, error) {
	return r.Await(ctx, dapp.ConnectRequested{}, func(u dapp.Update) (bool, error) {
		if u.State.Err != nil {
			return false, u.State.Err
		}
		_, ok := u.Event.(dapp.MessageLoaded)
		return ok, nil
	})
}

func printRecord(w io.Writer, rec dapp.MessageRecord) {
	if rec.Text == "" {
		fmt.Fprintln(w, "(no message)")
		return
	}
	fmt.Fprintf(w, "message: %s\n", rec.Text)
	fmt.Fprintf(w, "writer:  %s\n", rec.Writer.Hex())
	fmt.Fprintf(w, "updated: %s\n", helpers.UpdatedAt(rec.UpdatedAt))
}

// confirmApprover asks on the terminal before the wallet acts.
func confirmApprover(_ context.Context, req wallet.Approval) (bool, error) {
	ok := false
	err := huh.NewConfirm().
		Title(req.Title()).
		Description(req.Detail()).
		Affirmative("Approve").
		Negative("Reject").
		Value(&ok).
		Run()
	if err != nil {
		return false, fmt.Errorf("approval prompt: %w", err)
	}
	return ok, nil
}
