package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/brojonat/subpay/service/temporal"
	"github.com/urfave/cli/v2"
)

func getTemporalClient(c *cli.Context) (*temporal.Client, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return temporal.NewClient(
		c.String("temporal-host"),
		c.String("temporal-namespace"),
		c.String("temporal-task-queue"),
		logger,
	)
}

func createScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:  "create-schedule",
		Usage: "Create or update the daily balance sweep schedule",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "cron",
				Usage:   "Cron expression (UTC)",
				EnvVars: []string{"SWEEP_SCHEDULE"},
				Value:   temporal.DefaultSweepSchedule,
			},
		},
		Action: func(c *cli.Context) error {
			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
			if err := temporal.EnsureSweepSchedule(context.Background(), tc, c.String("cron"), logger); err != nil {
				return fmt.Errorf("failed to create schedule: %w", err)
			}

			fmt.Printf("✓ Schedule %s set to %q\n", temporal.SweepScheduleID, c.String("cron"))
			return nil
		},
	}
}

func deleteScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:  "delete-schedule",
		Usage: "Delete the balance sweep schedule",
		Action: func(c *cli.Context) error {
			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			if err := tc.DeleteSweepSchedule(context.Background()); err != nil {
				return err
			}

			fmt.Printf("✓ Schedule %s deleted\n", temporal.SweepScheduleID)
			return nil
		},
	}
}

func triggerSweepCommand() *cli.Command {
	return &cli.Command{
		Name:  "trigger-sweep",
		Usage: "Start a balance sweep workflow now",
		Action: func(c *cli.Context) error {
			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			workflowID, err := tc.TriggerSweep(context.Background(), "cli")
			if err != nil {
				return err
			}

			return printResult(c, map[string]string{"workflow_id": workflowID}, func() {
				fmt.Printf("✓ Sweep started: %s\n", workflowID)
			})
		},
	}
}
