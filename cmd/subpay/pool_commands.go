package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/brojonat/subpay/service/config"
	"github.com/brojonat/subpay/service/oracle"
	"github.com/brojonat/subpay/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/urfave/cli/v2"
)

type poolReport struct {
	Pool     string               `json:"pool"`
	Reserves solana.PoolReserves  `json:"reserves"`
	Quote    *oracle.RoundedQuote `json:"quote,omitempty"`
	Error    string               `json:"error,omitempty"`
}

func decodePoolCommand() *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     "Read a pool account and decode its reserves",
		ArgsUsage: "[pool-address]",
		Flags: []cli.Flag{
			&cli.Float64Flag{
				Name:  "target-usd",
				Usage: "USD fee target to price",
				Value: oracle.DefaultTargetUSD,
			},
		},
		Action: func(c *cli.Context) error {
			address := config.DefaultPoolAddress
			if c.NArg() > 0 {
				address = c.Args().First()
			}
			pool, err := solanago.PublicKeyFromBase58(address)
			if err != nil {
				return fmt.Errorf("invalid pool address %q: %w", address, err)
			}

			rpcURL := c.String("solana-rpc-url")
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
			ledger := solana.NewClient(solana.NewRPCClient(rpcURL), solana.EndpointLabel(rpcURL), 0, nil, logger)

			data, err := ledger.GetAccountData(context.Background(), pool)
			if err != nil {
				return fmt.Errorf("failed to read pool account: %w", err)
			}

			reserves, err := solana.DecodeReserves(data)
			if err != nil {
				return fmt.Errorf("failed to decode pool account (%d bytes): %w", len(data), err)
			}

			report := poolReport{Pool: pool.String(), Reserves: reserves}
			quote, err := oracle.Price(reserves, c.Float64("target-usd"))
			switch {
			case err == nil:
				rounded := quote.Rounded()
				report.Quote = &rounded
			case errors.Is(err, oracle.ErrZeroReserve):
				report.Error = err.Error()
			default:
				return err
			}

			return printResult(c, report, func() {
				fmt.Printf("Pool:           %s (%d bytes)\n", report.Pool, len(data))
				fmt.Printf("Base reserve:   %d\n", reserves.Base)
				fmt.Printf("Quote reserve:  %d\n", reserves.Quote)
				if report.Quote != nil {
					fmt.Printf("SOL price:      %.4f USDC\n", report.Quote.SolPriceUSD)
					fmt.Printf("SOL needed:     %.8f for $%.2f\n", report.Quote.SolNeeded, c.Float64("target-usd"))
				} else {
					fmt.Printf("Price:          unavailable (%s)\n", report.Error)
				}
			})
		},
	}
}
