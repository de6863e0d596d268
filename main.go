// Package main is the entry point for the outpost event log agent.
package main

import (
	"context"
	"fmt"
	"os"

	"outpost/bootstrap"
	"outpost/cmd"
)

// run initializes and starts the outpost agent.
func run() error {
	ctx := context.Background()

	// Create and initialize application
	app, err := bootstrap.NewApp(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	// Start background workers
	if err := app.Start(ctx); err != nil {
		app.Shutdown()
		return fmt.Errorf("failed to start application: %w", err)
	}

	// Wait for shutdown signal
	app.WaitForShutdown()

	// Graceful shutdown
	app.Shutdown()

	return nil
}

// main is the entry point.
func main() {
	// Check if running as CLI command
	if len(os.Args) > 1 && os.Args[1] == "events" {
		// Strip "events" from os.Args since the command already knows it's the events command
		os.Args = append([]string{os.Args[0]}, os.Args[2:]...)

		eventsCmd := cmd.NewEventsCmd()
		if err := eventsCmd.Execute(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Otherwise run as the long-lived agent
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
