// Command stellar-poc walks through a complete cross-border payment: three accounts are
// created and funded, a bank-issued USD asset is trusted by a sender and a receiver, the
// sender is issued 100 USD and pays 50 of it to the receiver.
//
// By default it runs against the Stellar testnet. With -offline it runs against an
// in-process ledger instead.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/stellar/go-stellar-sdk/clients/horizonclient"
	"github.com/stellar/go-stellar-sdk/network"

	stellarpay "github.com/marwen-abid/stellar-payments-go"
	"github.com/marwen-abid/stellar-payments-go/account"
	"github.com/marwen-abid/stellar-payments-go/core/faucet"
	"github.com/marwen-abid/stellar-payments-go/core/ledger"
	"github.com/marwen-abid/stellar-payments-go/core/net"
	"github.com/marwen-abid/stellar-payments-go/payment"
	"github.com/marwen-abid/stellar-payments-go/signers"
	"github.com/marwen-abid/stellar-payments-go/store/memory"
)

const (
	defaultHorizonURL = "https://horizon-testnet.stellar.org"

	assetCode   = "USD"
	trustLimit  = "1000"
	issueAmount = "100"
	payAmount   = "50"
)

func main() {
	offline := flag.Bool("offline", false, "Run against an in-process ledger instead of testnet")
	horizonURL := flag.String("horizon", defaultHorizonURL, "Horizon server URL")
	friendbotURL := flag.String("friendbot", faucet.DefaultFriendbotURL, "Friendbot URL")
	dynamicFee := flag.Bool("dynamic-fee", true, "Use the last ledger's base fee instead of the minimum")
	verbose := flag.Bool("verbose", false, "Log every ledger call")
	flag.Parse()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	if *verbose {
		logger.SetOutput(os.Stderr)
		logger.SetLevel(logrus.DebugLevel)
	}
	log := logrus.NewEntry(logger)

	var (
		l stellarpay.Ledger
		f stellarpay.Faucet
	)
	if *offline {
		mem := memory.NewLedger(network.TestNetworkPassphrase)
		l, f = mem, mem
	} else {
		l = ledger.New(&horizonclient.Client{HorizonURL: *horizonURL, HTTP: http.DefaultClient}, ledger.WithLogger(log))
		f = faucet.NewFriendbot(*friendbotURL, net.NewClient(net.WithLogger(log)), log)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	d := &demo{
		out:      os.Stdout,
		accounts: account.NewManager(l, f, account.WithLogger(log)),
		payments: payment.NewWorkflow(l, payment.Config{
			NetworkPassphrase: network.TestNetworkPassphrase,
			DynamicFee:        *dynamicFee,
		}, payment.WithLogger(log)),
	}
	if err := d.run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error in demonstration: %v\n", err)
		os.Exit(1)
	}
}

type demo struct {
	out      io.Writer
	accounts *account.Manager
	payments *payment.Workflow
}

type participant struct {
	name   string
	keys   stellarpay.Keypair
	signer stellarpay.Signer
}

func (d *demo) run(ctx context.Context) error {
	fmt.Fprintln(d.out, "====== STELLAR CROSS-BORDER PAYMENT POC ======")

	d.step(1, "Creating accounts...")
	issuer, err := d.createAccount(ctx, "issuer")
	if err != nil {
		return err
	}
	sender, err := d.createAccount(ctx, "sender")
	if err != nil {
		return err
	}
	receiver, err := d.createAccount(ctx, "receiver")
	if err != nil {
		return err
	}

	d.step(2, "Checking initial balances...")
	if err := d.printBalances(ctx, sender, receiver); err != nil {
		return err
	}

	d.step(3, "Creating custom asset...")
	usd, err := stellarpay.NewAsset(assetCode, issuer.keys.PublicKey)
	if err != nil {
		return err
	}
	fmt.Fprintf(d.out, "Created %s asset issued by %s\n", usd.Code, usd.Issuer)

	d.step(4, fmt.Sprintf("Establishing trust for the %s asset...", usd.Code))
	for _, p := range []participant{sender, receiver} {
		if _, err := d.payments.EstablishTrust(ctx, p.signer, usd, trustLimit); err != nil {
			return fmt.Errorf("establish trust for %s: %w", p.name, err)
		}
		fmt.Fprintf(d.out, "%s trusts %s up to %s\n", p.name, usd.Code, trustLimit)
	}

	d.step(5, fmt.Sprintf("Issuing %s to the sender...", usd.Code))
	if _, err := d.payments.IssueAsset(ctx, issuer.signer, sender.keys.PublicKey, usd.Code, issueAmount); err != nil {
		return fmt.Errorf("issue asset: %w", err)
	}
	fmt.Fprintf(d.out, "%s %s issued to %s\n", issueAmount, usd.Code, sender.keys.PublicKey)

	d.step(6, "Checking balances after issuance...")
	if err := d.printBalances(ctx, sender); err != nil {
		return err
	}

	d.step(7, "Making cross-border payment...")
	if _, err := d.payments.Pay(ctx, payment.PaymentRequest{
		Signer:      sender.signer,
		Destination: receiver.keys.PublicKey,
		Amount:      payAmount,
		Asset:       usd.Code,
		Issuer:      usd.Issuer,
	}); err != nil {
		return fmt.Errorf("payment: %w", err)
	}
	fmt.Fprintf(d.out, "%s %s sent to %s\n", payAmount, usd.Code, receiver.keys.PublicKey)

	d.step(8, "Checking final balances...")
	if err := d.printBalances(ctx, sender, receiver); err != nil {
		return err
	}

	fmt.Fprintln(d.out, "\n====== CROSS-BORDER PAYMENT COMPLETED SUCCESSFULLY ======")
	return nil
}

func (d *demo) step(n int, title string) {
	fmt.Fprintf(d.out, "\n%d. %s\n", n, title)
}

func (d *demo) createAccount(ctx context.Context, name string) (participant, error) {
	kp, err := d.accounts.CreateAccount(ctx)
	if err != nil {
		return participant{}, fmt.Errorf("create %s account: %w", name, err)
	}
	signer, err := signers.FromSecret(kp.SecretKey)
	if err != nil {
		return participant{}, err
	}

	fmt.Fprintf(d.out, "Created %s account: %s\n", name, kp.PublicKey)
	fmt.Fprintf(d.out, "Secret key: %s\n", kp.SecretKey)
	return participant{name: name, keys: kp, signer: signer}, nil
}

func (d *demo) printBalances(ctx context.Context, participants ...participant) error {
	for _, p := range participants {
		details, err := d.accounts.GetAccountDetails(ctx, p.keys.PublicKey)
		if err != nil {
			return fmt.Errorf("load %s balances: %w", p.name, err)
		}
		fmt.Fprintf(d.out, "%s balances:\n", p.name)
		for _, b := range details.Balances {
			code := b.AssetCode
			if b.AssetType == stellarpay.AssetTypeNative {
				code = stellarpay.NativeSymbol
			}
			fmt.Fprintf(d.out, "- %s %s\n", b.Balance, code)
		}
	}
	return nil
}
