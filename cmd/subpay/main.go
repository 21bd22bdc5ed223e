package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "subpay",
		Usage: "Fee-aware subscription payment service CLI",
		Description: `A command-line tool for operating the subpay service.

Use this CLI to quote fees, build payment transactions, run balance sweeps,
inspect pool and database state, and manage the Temporal sweep schedule.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			// Payment and notification commands (HTTP API)
			quoteCommand(),
			buildTxCommand(),
			sweepCommand(),
			notifyFailedCommand(),
			receiptCommand(),
			// Direct ledger reads
			{
				Name:  "pool",
				Usage: "Liquidity pool inspection commands",
				Subcommands: []*cli.Command{
					decodePoolCommand(),
				},
			},
			// Database commands
			{
				Name:  "db",
				Usage: "Subscription record commands",
				Subcommands: []*cli.Command{
					migrateCommand(),
					listSubscriptionsCommand(),
					getSubscriptionCommand(),
					upsertSubscriptionCommand(),
					deleteSubscriptionCommand(),
				},
			},
			// Temporal schedule commands
			{
				Name:  "temporal",
				Usage: "Temporal sweep schedule commands",
				Subcommands: []*cli.Command{
					createScheduleCommand(),
					deleteScheduleCommand(),
					triggerSweepCommand(),
				},
			},
			// Server utility commands
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					versionCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "subpay server URL",
				EnvVars: []string{"SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "solana-rpc-url",
				Usage:   "Solana RPC endpoint for direct reads",
				EnvVars: []string{"SOLANA_RPC_URL"},
				Value:   "https://api.mainnet-beta.solana.com",
			},
			&cli.StringFlag{
				Name:    "temporal-host",
				Usage:   "Temporal server address",
				EnvVars: []string{"TEMPORAL_HOST"},
				Value:   "localhost:7233",
			},
			&cli.StringFlag{
				Name:    "temporal-namespace",
				Usage:   "Temporal namespace",
				EnvVars: []string{"TEMPORAL_NAMESPACE"},
				Value:   "default",
			},
			&cli.StringFlag{
				Name:    "temporal-task-queue",
				Usage:   "Temporal task queue of the sweep worker",
				EnvVars: []string{"TEMPORAL_TASK_QUEUE"},
				Value:   "subpay-balance-sweep",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
			&cli.StringFlag{
				Name:  "jq",
				Usage: "Filter JSON output through a jq expression (implies --json)",
			},
		},
	}
}
