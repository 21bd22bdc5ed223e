package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/brojonat/subpay/client"
	"github.com/urfave/cli/v2"
)

func newClient(c *cli.Context) (*client.Client, error) {
	serverURL := c.String("server-url")
	if serverURL == "" {
		return nil, fmt.Errorf("server-url is required (set SERVER_URL env var or use --server-url)")
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError, // Only errors to stderr
	}))
	return client.NewClient(serverURL, nil, logger), nil
}

func quoteCommand() *cli.Command {
	return &cli.Command{
		Name:  "quote",
		Usage: "Quote the network fee in SOL",
		Action: func(c *cli.Context) error {
			cl, err := newClient(c)
			if err != nil {
				return err
			}

			quote, err := cl.QuoteFee(context.Background())
			if err != nil {
				return fmt.Errorf("failed to quote fee: %w", err)
			}

			return printResult(c, quote, func() {
				fmt.Printf("SOL needed:  %.8f\n", quote.SolNeeded)
				fmt.Printf("SOL price:   %.4f USDC\n", quote.SolPriceUSD)
				fmt.Printf("Source:      %s\n", quote.Source)
			})
		},
	}
}

func buildTxCommand() *cli.Command {
	return &cli.Command{
		Name:  "build-tx",
		Usage: "Build an unsigned subscription payment transaction",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Usage: "Paying user wallet", Required: true},
			&cli.StringFlag{Name: "subscription", Usage: "Subscription account", Required: true},
			&cli.StringFlag{Name: "signer", Usage: "Subscription signer PDA", Required: true},
			&cli.StringFlag{Name: "escrow", Usage: "Escrow token account", Required: true},
			&cli.StringFlag{Name: "recipient", Usage: "Recipient token account", Required: true},
			&cli.Uint64Flag{Name: "monthly-amount", Usage: "Monthly amount in USDC base units"},
		},
		Action: func(c *cli.Context) error {
			cl, err := newClient(c)
			if err != nil {
				return err
			}

			tx, err := cl.CreatePaymentTransaction(context.Background(), client.PaymentRequest{
				UserPubkey:            c.String("user"),
				SubscriptionPubkey:    c.String("subscription"),
				SubscriptionSigner:    c.String("signer"),
				EscrowTokenAccount:    c.String("escrow"),
				RecipientTokenAccount: c.String("recipient"),
				MonthlyUSDCAmount:     c.Uint64("monthly-amount"),
			})
			if err != nil {
				return fmt.Errorf("failed to build transaction: %w", err)
			}

			return printResult(c, tx, func() {
				fmt.Println(tx.Message)
				fmt.Printf("Fee:        %d lamports\n", tx.FeeLamports)
				fmt.Printf("Blockhash:  %s (valid through height %d)\n", tx.Blockhash, tx.LastValidBlockHeight)
				fmt.Printf("\n%s\n", tx.Transaction)
			})
		},
	}
}

func sweepCommand() *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Run a low balance sweep through the server",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 5 * time.Minute,
			},
		},
		Action: func(c *cli.Context) error {
			cl, err := newClient(c)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
			defer cancel()

			result, err := cl.SweepLowBalances(ctx)
			if err != nil {
				return fmt.Errorf("sweep failed: %w", err)
			}

			return printResult(c, result, func() {
				fmt.Printf("Status:    %s\n", result.Status)
				fmt.Printf("Checked:   %d\n", result.Checked)
				fmt.Printf("Notified:  %d\n", result.Notified)
				fmt.Printf("Failed:    %d\n", result.Failed)
				fmt.Printf("Skipped:   %d\n", result.Skipped)
			})
		},
	}
}

func notifyFailedCommand() *cli.Command {
	return &cli.Command{
		Name:      "notify-failed",
		Usage:     "Send the payment failed notification for one subscription",
		ArgsUsage: "<wallet>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: wallet address")
			}

			cl, err := newClient(c)
			if err != nil {
				return err
			}

			wallet := c.Args().First()
			if err := cl.NotifyPaymentFailed(context.Background(), wallet); err != nil {
				return fmt.Errorf("failed to notify: %w", err)
			}

			fmt.Printf("✓ Payment failed notification sent for %s\n", wallet)
			return nil
		},
	}
}

func receiptCommand() *cli.Command {
	return &cli.Command{
		Name:  "receipt",
		Usage: "Send a payment receipt",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "wallet", Required: true},
			&cli.Uint64Flag{Name: "usdc-amount", Usage: "Amount in USDC base units", Required: true},
			&cli.StringFlag{Name: "signature", Usage: "Settled transaction signature", Required: true},
		},
		Action: func(c *cli.Context) error {
			cl, err := newClient(c)
			if err != nil {
				return err
			}

			err = cl.SendReceipt(context.Background(), client.Receipt{
				Email:       c.String("email"),
				Wallet:      c.String("wallet"),
				USDCAmount:  c.Uint64("usdc-amount"),
				TxSignature: c.String("signature"),
			})
			if err != nil {
				return fmt.Errorf("failed to send receipt: %w", err)
			}

			fmt.Println("✓ Receipt sent")
			return nil
		},
	}
}
