package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	stellarpay "github.com/marwen-abid/stellar-payments-go"
	"github.com/marwen-abid/stellar-payments-go/client"
)

func newAccountCmd(a *app) *cobra.Command {
	accountCmd := &cobra.Command{
		Use:   "account",
		Short: "Manage the active account",
	}

	accountCmd.AddCommand(
		&cobra.Command{
			Use:   "create",
			Short: "Generate a new account, fund it on testnet and make it active",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				return a.withSession(ctx, func(s *client.Session) error {
					kp, err := s.Create(ctx)
					if kp.PublicKey != "" {
						printKeypair(cmd.OutOrStdout(), kp)
					}
					if err != nil && kp.PublicKey != "" {
						return fmt.Errorf("%w (keys were saved; run `payctl account fund` to retry)", err)
					}
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "import <secret-key>",
			Short: "Make an existing account active",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				return a.withSession(ctx, func(s *client.Session) error {
					kp, err := s.Import(ctx, args[0])
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", kp.PublicKey)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "fund [public-key]",
			Short: "Fund an account from the testnet faucet",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				publicKey, err := a.activePublicKey(ctx, args)
				if err != nil {
					return err
				}
				if err := a.client.FundAccount(ctx, publicKey); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Funded %s\n", publicKey)
				return nil
			},
		},
		newShowCmd(a),
		&cobra.Command{
			Use:   "logout",
			Short: "Forget the active account",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				return a.withSession(ctx, func(s *client.Session) error {
					if err := s.Logout(ctx); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
					return nil
				})
			},
		},
	)
	return accountCmd
}

func newShowCmd(a *app) *cobra.Command {
	var (
		follow   bool
		interval time.Duration
	)

	showCmd := &cobra.Command{
		Use:   "show [public-key]",
		Short: "Print balances and recent transactions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			publicKey, err := a.activePublicKey(ctx, args)
			if err != nil {
				return err
			}

			if !follow {
				details, err := a.client.AccountDetails(ctx, publicKey)
				if err != nil {
					return err
				}
				printDetails(cmd.OutOrStdout(), publicKey, details)
				return nil
			}

			out := cmd.OutOrStdout()
			r := client.NewRefresher(a.client, publicKey, interval,
				func(d *stellarpay.AccountDetails) { printDetails(out, publicKey, d) },
				func(err error) { fmt.Fprintln(cmd.ErrOrStderr(), "refresh failed:", err) },
			)
			if err := r.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}

	showCmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep refreshing until interrupted")
	showCmd.Flags().DurationVar(&interval, "interval", client.DefaultRefreshInterval, "refresh interval with --follow")
	return showCmd
}

func printKeypair(w io.Writer, kp stellarpay.Keypair) {
	fmt.Fprintf(w, "Public key: %s\n", kp.PublicKey)
	fmt.Fprintf(w, "Secret key: %s\n", kp.SecretKey)
}

func printDetails(w io.Writer, publicKey string, d *stellarpay.AccountDetails) {
	fmt.Fprintf(w, "Account %s\n", publicKey)
	fmt.Fprintln(w, "Balances:")
	for _, b := range d.Balances {
		fmt.Fprintf(w, "  %-12s %s\n", balanceLabel(b), b.Balance)
	}
	if len(d.Transactions) == 0 {
		fmt.Fprintln(w, "No transactions")
		return
	}
	fmt.Fprintln(w, "Recent transactions:")
	for _, tx := range d.Transactions {
		status := "ok"
		if !tx.Successful {
			status = "failed"
		}
		line := fmt.Sprintf("  %s  %s  %s", tx.CreatedAt.Format(time.RFC3339), tx.Hash, status)
		if tx.Memo != "" {
			line += "  memo=" + tx.Memo
		}
		fmt.Fprintln(w, line)
	}
}

func balanceLabel(b stellarpay.Balance) string {
	if b.AssetType == stellarpay.AssetTypeNative {
		return stellarpay.NativeSymbol
	}
	return b.AssetCode
}
