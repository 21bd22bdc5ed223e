package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/brojonat/subpay/client"
	"github.com/urfave/cli/v2"
)

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check server health",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 5 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			serverURL := c.String("server-url")
			if serverURL == "" {
				return fmt.Errorf("server-url is required (set SERVER_URL env var or use --server-url)")
			}

			cl := client.NewClient(serverURL, &http.Client{Timeout: c.Duration("timeout")}, nil)
			health, err := cl.Health(context.Background())
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}

			return printResult(c, health, func() {
				fmt.Printf("✓ Server is healthy (status: %s)\n", health.Status)
				fmt.Printf("  URL:     %s\n", serverURL)
				fmt.Printf("  Version: %s\n", health.Version)
			})
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			fmt.Printf("subpay CLI\n")
			fmt.Printf("  Version: %s\n", version)
			fmt.Printf("  Commit:  %s\n", commit)
			fmt.Printf("  Built:   %s\n", date)
			return nil
		},
	}
}
