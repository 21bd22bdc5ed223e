package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/brojonat/subpay/service/db"
	"github.com/brojonat/subpay/service/txbuilder"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply the subscription schema",
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			if err := store.Migrate(context.Background()); err != nil {
				return fmt.Errorf("failed to migrate: %w", err)
			}
			fmt.Println("✓ Schema applied")
			return nil
		},
	}
}

func listSubscriptionsCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Usage:   "List all subscription records",
		Aliases: []string{"ls"},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "incomplete",
				Usage: "Only show records the balance sweep would skip",
			},
		},
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			subs, err := store.ListSubscriptions(context.Background())
			if err != nil {
				return fmt.Errorf("failed to list subscriptions: %w", err)
			}

			if c.Bool("incomplete") {
				filtered := make([]*db.Subscription, 0)
				for _, s := range subs {
					if !s.Complete() {
						filtered = append(filtered, s)
					}
				}
				subs = filtered
			}

			return printResult(c, subs, func() {
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "WALLET\tEMAIL\tMONTHLY\tESCROW\tUPDATED")
				for _, s := range subs {
					fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
						s.Wallet,
						orDash(s.Email),
						s.MonthlyAmount,
						orDash(s.EscrowAddress),
						s.UpdatedAt.Format(time.RFC3339),
					)
				}
				w.Flush()

				fmt.Fprintf(os.Stderr, "\nTotal: %d subscriptions\n", len(subs))
			})
		},
	}
}

func getSubscriptionCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Get one subscription record",
		ArgsUsage: "<wallet>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: wallet address")
			}

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			wallet := c.Args().First()
			sub, err := store.GetSubscription(context.Background(), wallet)
			if err != nil {
				return fmt.Errorf("failed to get subscription: %w", err)
			}
			if sub == nil {
				return fmt.Errorf("subscription not found: %s", wallet)
			}

			return printResult(c, sub, func() { printSubscription(sub) })
		},
	}
}

func upsertSubscriptionCommand() *cli.Command {
	return &cli.Command{
		Name:      "upsert",
		Usage:     "Create or replace a subscription record",
		ArgsUsage: "<wallet>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Usage: "Subscriber email"},
			&cli.Uint64Flag{Name: "monthly-amount", Usage: "Monthly amount in USDC base units"},
			&cli.StringFlag{Name: "escrow", Usage: "Escrow token account"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: wallet address")
			}

			params := db.UpsertSubscriptionParams{Wallet: c.Args().First()}
			if _, err := txbuilder.ParseAddress("wallet", params.Wallet); err != nil {
				return err
			}
			if c.IsSet("email") {
				email := c.String("email")
				params.Email = &email
			}
			if c.IsSet("monthly-amount") {
				amount := c.Uint64("monthly-amount")
				params.MonthlyAmount = &amount
			}
			if c.IsSet("escrow") {
				escrow := c.String("escrow")
				if _, err := txbuilder.ParseAddress("escrow", escrow); err != nil {
					return err
				}
				params.EscrowAddress = &escrow
			}

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			sub, err := store.UpsertSubscription(context.Background(), params)
			if err != nil {
				return fmt.Errorf("failed to upsert subscription: %w", err)
			}

			return printResult(c, sub, func() { printSubscription(sub) })
		},
	}
}

func deleteSubscriptionCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a subscription record",
		ArgsUsage: "<wallet>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: wallet address")
			}

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			wallet := c.Args().First()
			if err := store.DeleteSubscription(context.Background(), wallet); err != nil {
				return fmt.Errorf("failed to delete subscription: %w", err)
			}
			fmt.Printf("✓ Deleted %s\n", wallet)
			return nil
		},
	}
}

func printSubscription(sub *db.Subscription) {
	fmt.Printf("Wallet:   %s\n", sub.Wallet)
	fmt.Printf("Email:    %s\n", orDash(sub.Email))
	fmt.Printf("Monthly:  %d\n", sub.MonthlyAmount)
	fmt.Printf("Escrow:   %s\n", orDash(sub.EscrowAddress))
	fmt.Printf("Complete: %v\n", sub.Complete())
	fmt.Printf("Created:  %s\n", sub.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Updated:  %s\n", sub.UpdatedAt.Format(time.RFC3339))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// getStore creates a database store from CLI context
func getStore(c *cli.Context) (*db.Store, func(), error) {
	dbURL := c.String("database-url")
	if dbURL == "" {
		return nil, nil, fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := db.NewStore(pool, nil)
	closer := func() { pool.Close() }

	return store, closer, nil
}
