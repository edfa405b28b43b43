package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/marwen-abid/stellar-payments-go/client"
	"github.com/marwen-abid/stellar-payments-go/core/net"
	"github.com/marwen-abid/stellar-payments-go/errors"
	"github.com/marwen-abid/stellar-payments-go/store/bolt"
)

type rootConfig struct {
	GatewayURL   string
	KeyStorePath string
	Passphrase   string
	Timeout      time.Duration
	Verbose      bool
}

// app holds what subcommands share once flags are parsed.
type app struct {
	cfg    rootConfig
	log    *logrus.Entry
	client *client.Client
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "payctl",
		Short:         "Wallet CLI for the Stellar payment gateway",
		Long:          "Create or import an account, check balances, send payments and manage custom assets through the payment gateway.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger := logrus.New()
			logger.SetOutput(io.Discard)
			if a.cfg.Verbose {
				logger.SetOutput(cmd.ErrOrStderr())
				logger.SetLevel(logrus.DebugLevel)
			}
			a.log = logrus.NewEntry(logger)
			a.client = client.New(a.cfg.GatewayURL,
				client.WithLogger(a.log),
				client.WithHTTPClient(net.NewClient(net.WithTimeout(a.cfg.Timeout), net.WithLogger(a.log))),
			)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.cfg.GatewayURL, "gateway", "g", envOr("PAYCTL_GATEWAY", "http://localhost:5000"), "payment gateway URL")
	flags.StringVar(&a.cfg.KeyStorePath, "keystore", envOr("PAYCTL_KEYSTORE", defaultKeyStorePath()), "key store file")
	flags.StringVar(&a.cfg.Passphrase, "passphrase", os.Getenv("PAYCTL_PASSPHRASE"), "key store passphrase")
	flags.DurationVar(&a.cfg.Timeout, "timeout", 30*time.Second, "per-request timeout")
	flags.BoolVarP(&a.cfg.Verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(
		newAccountCmd(a),
		newPayCmd(a),
		newAssetCmd(a),
		newWatchCmd(a),
	)
	return rootCmd
}

// withSession opens the key store for the duration of fn.
func (a *app) withSession(ctx context.Context, fn func(*client.Session) error) error {
	if a.cfg.Passphrase == "" {
		return errors.New(errors.LayerClient, errors.KEYSTORE_ERROR,
			"a key store passphrase is required (--passphrase or PAYCTL_PASSPHRASE)", nil)
	}
	if dir := filepath.Dir(a.cfg.KeyStorePath); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return errors.New(errors.LayerClient, errors.KEYSTORE_ERROR, "failed to create key store directory", err)
		}
	}

	store, err := bolt.Open(a.cfg.KeyStorePath, a.cfg.Passphrase)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(client.NewSession(a.client, store))
}

// activePublicKey resolves an optional public key argument, falling back to the stored keypair.
func (a *app) activePublicKey(ctx context.Context, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	var publicKey string
	err := a.withSession(ctx, func(s *client.Session) error {
		kp, err := s.Require(ctx)
		publicKey = kp.PublicKey
		return err
	})
	return publicKey, err
}

// activeSecret returns the stored secret key.
func (a *app) activeSecret(ctx context.Context) (string, error) {
	var secret string
	err := a.withSession(ctx, func(s *client.Session) error {
		kp, err := s.Require(ctx)
		secret = kp.SecretKey
		return err
	})
	return secret, err
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultKeyStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "payctl.db"
	}
	return filepath.Join(home, ".payctl", "wallet.db")
}
