package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/brojonat/subpay/service/config"
	"github.com/brojonat/subpay/service/db"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

// backfill-escrow applies the schema and fills escrow_address for subscription records
// that lack one, using the wallet's USDC associated token account.
// Set DRY_RUN=true to log the derived addresses without writing them.
func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Info("starting escrow backfill")

	// Load configuration
	cfg := config.MustLoad()
	dryRun := os.Getenv("DRY_RUN") == "true"

	// Connect to database
	ctx := context.Background()
	dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	// Verify database connection
	if err := dbPool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	store := db.NewStore(dbPool, nil)
	if err := store.Migrate(ctx); err != nil {
		logger.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}

	mintPubkey, err := solanago.PublicKeyFromBase58(cfg.USDCMintAddress)
	if err != nil {
		logger.Error("failed to parse mint address", "mint", cfg.USDCMintAddress, "error", err)
		os.Exit(1)
	}
	logger.Info("using USDC mint address", "mint", cfg.USDCMintAddress, "dry_run", dryRun)

	subs, err := store.ListSubscriptions(ctx)
	if err != nil {
		logger.Error("failed to list subscriptions", "error", err)
		os.Exit(1)
	}
	logger.Info("found subscriptions", "count", len(subs))

	successCount := 0
	errorCount := 0
	skipped := 0

	for _, sub := range subs {
		if sub.EscrowAddress != "" {
			skipped++
			continue
		}

		walletPubkey, err := solanago.PublicKeyFromBase58(sub.Wallet)
		if err != nil {
			logger.Error("failed to parse wallet address", "wallet", sub.Wallet, "error", err)
			errorCount++
			continue
		}

		ata, _, err := solanago.FindAssociatedTokenAddress(walletPubkey, mintPubkey)
		if err != nil {
			logger.Error("failed to derive ATA", "wallet", sub.Wallet, "error", err)
			errorCount++
			continue
		}

		if dryRun {
			logger.Info("would backfill escrow", "wallet", sub.Wallet, "escrow", ata.String())
			successCount++
			continue
		}

		// Upsert replaces every column, so carry the existing values over.
		escrow := ata.String()
		email := sub.Email
		amount := sub.MonthlyAmount
		params := db.UpsertSubscriptionParams{Wallet: sub.Wallet, EscrowAddress: &escrow}
		if email != "" {
			params.Email = &email
		}
		if amount > 0 {
			params.MonthlyAmount = &amount
		}

		if _, err := store.UpsertSubscription(ctx, params); err != nil {
			logger.Error("failed to update subscription", "wallet", sub.Wallet, "error", err)
			errorCount++
			continue
		}

		logger.Info("backfilled escrow", "wallet", sub.Wallet, "escrow", escrow)
		successCount++
	}

	logger.Info("backfill complete",
		"total", len(subs),
		"success", successCount,
		"skipped", skipped,
		"errors", errorCount,
	)

	if errorCount > 0 {
		os.Exit(1)
	}
}
