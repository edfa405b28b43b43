// Command server runs the payment gateway.
//
// Configuration comes from the environment and an optional .env file; see the config
// package. LEDGER_BACKEND=memory runs against an in-process ledger with no network
// access, which is useful for demos and front-end work.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stellar/go-stellar-sdk/clients/horizonclient"

	stellarpay "github.com/marwen-abid/stellar-payments-go"
	"github.com/marwen-abid/stellar-payments-go/account"
	"github.com/marwen-abid/stellar-payments-go/config"
	"github.com/marwen-abid/stellar-payments-go/core/faucet"
	"github.com/marwen-abid/stellar-payments-go/core/ledger"
	"github.com/marwen-abid/stellar-payments-go/core/net"
	"github.com/marwen-abid/stellar-payments-go/gateway"
	"github.com/marwen-abid/stellar-payments-go/observer"
	"github.com/marwen-abid/stellar-payments-go/payment"
	"github.com/marwen-abid/stellar-payments-go/store/memory"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := cfg.NewLogger()
	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func run(cfg *config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := newServer(cfg, logrus.NewEntry(log))
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// Writes are not bounded so payment streams can stay open.
		IdleTimeout: 2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":    httpServer.Addr,
			"backend": cfg.LedgerBackend,
			"network": cfg.NetworkPassphrase,
		}).Info("payment gateway listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// newServer wires the gateway for the configured ledger backend.
func newServer(cfg *config.Config, log *logrus.Entry) (*gateway.Server, error) {
	var (
		l       stellarpay.Ledger
		f       stellarpay.Faucet
		streams gateway.StreamSource
	)

	switch cfg.LedgerBackend {
	case config.BackendMemory:
		mem := memory.NewLedger(cfg.NetworkPassphrase)
		l, f = mem, mem
		streams = func(publicKey string) observer.Observer {
			return mem.Observe(publicKey)
		}
	case config.BackendHorizon:
		client := &horizonclient.Client{
			HorizonURL: cfg.HorizonURL,
			HTTP:       &http.Client{Timeout: cfg.HTTPTimeout},
		}
		l = ledger.New(client, ledger.WithLogger(log))
		f = faucet.NewFriendbot(cfg.FriendbotURL, net.NewClient(net.WithTimeout(cfg.HTTPTimeout), net.WithLogger(log)), log)
		// Streams hold their connection open, so they get a client without a timeout.
		streamClient := &horizonclient.Client{HorizonURL: cfg.HorizonURL}
		streams = func(publicKey string) observer.Observer {
			return observer.NewHorizonObserver(streamClient, publicKey, observer.WithLogger(log))
		}
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.LedgerBackend)
	}

	accounts := account.NewManager(l, f, account.WithLogger(log))
	payments := payment.NewWorkflow(l, payment.Config{
		NetworkPassphrase: cfg.NetworkPassphrase,
		DynamicFee:        cfg.DynamicFee,
		Timeout:           cfg.TxTimeout,
	}, payment.WithLogger(log))

	return gateway.NewServer(accounts, payments,
		gateway.WithLogger(log),
		gateway.WithStreams(streams),
	), nil
}
