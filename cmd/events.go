// Package cmd provides the command-line interface for the outpost event log.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"outpost/bootstrap"
	"outpost/config"
	"outpost/core"
	"outpost/forward"
	"outpost/storage"
	"outpost/telemetry"
)

// CLI output formatters
var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
)

// Global flags for events commands
var (
	outputJSON bool
	noColor    bool
	quiet      bool
)

const defaultTimeout = 5 * time.Minute

// NewEventsCmd creates the root events command with all subcommands.
func NewEventsCmd() *cobra.Command {
	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "Manage the local durable event log",
		Long: `Inspect and operate the local durable event log.

Producers append events to a SQLite-backed store on this host; an aggregator
polls unforwarded events, marks them forwarded, and retention deletes old
forwarded rows and reclaims space.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}

	eventsCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output in JSON format")
	eventsCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	eventsCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress non-essential output")

	eventsCmd.AddCommand(newInitCmd())
	eventsCmd.AddCommand(newWriteCmd())
	eventsCmd.AddCommand(newListCmd())
	eventsCmd.AddCommand(newDrainCmd())
	eventsCmd.AddCommand(newPurgeCmd())
	eventsCmd.AddCommand(newCompactCmd())
	eventsCmd.AddCommand(newStatsCmd())

	return eventsCmd
}

// initStore loads config and returns a store handle plus a quiet logger.
func initStore() (*storage.Store, *config.Config, *zap.SugaredLogger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	var sugar *zap.SugaredLogger
	if quiet {
		sugar = zap.NewNop().Sugar()
	} else {
		_, sugar, err = bootstrap.InitLogger()
		if err != nil {
			return nil, nil, nil, err
		}
	}

	store := storage.NewStoreWithPragmas(cfg.GetSQLitePath(), storage.Pragmas{
		BusyTimeout:       cfg.Storage.BusyTimeout,
		CacheKB:           cfg.Storage.CacheKB,
		MmapBytes:         cfg.Storage.MmapBytes,
		WALAutoCheckpoint: cfg.Storage.WALAutoCheckpoint,
	}, sugar)

	return store, cfg, sugar, nil
}

// newInitCmd creates the 'init' subcommand
func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the event store",
		Long:  "Create the database file, schema, and indexes. Safe to run repeatedly.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			store, _, _, err := initStore()
			if err != nil {
				return err
			}

			if err := store.Initialize(ctx); err != nil {
				return err
			}

			successColor.Printf("✓ Event store initialized at %s\n", store.Path())
			return nil
		},
	}
}

// newWriteCmd creates the 'write' subcommand
func newWriteCmd() *cobra.Command {
	var (
		serviceName    string
		eventType      string
		severity       string
		message        string
		metadataJSON   string
		correlationID  string
		newCorrelation bool
	)

	cmd := &cobra.Command{
		Use:   "write",
		Short: "Append a single event",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			store, cfg, sugar, err := initStore()
			if err != nil {
				return err
			}
			if err := store.Initialize(ctx); err != nil {
				return err
			}

			if serviceName == "" {
				serviceName = cfg.Service.Name
			}
			recorder, err := telemetry.NewRecorder(store, serviceName, cfg.Service.NodeID, sugar)
			if err != nil {
				return fmt.Errorf("cannot record events: %w (pass --service or set OUTPOST_SERVICE_NAME)", err)
			}

			var metadata map[string]interface{}
			if metadataJSON != "" {
				if err := json.Unmarshal([]byte(metadataJSON), &metadata); err != nil {
					return fmt.Errorf("invalid --metadata JSON: %w", err)
				}
			}

			switch {
			case newCorrelation:
				ctx, correlationID = core.EnsureCorrelationID(ctx)
			case correlationID != "":
				ctx = core.WithCorrelationID(ctx, correlationID)
			}

			if err := recorder.Record(ctx, eventType, severity, message, metadata); err != nil {
				return err
			}

			if !quiet {
				successColor.Println("✓ Event written")
				if correlationID != "" {
					infoColor.Printf("  correlation_id: %s\n", correlationID)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&serviceName, "service", "", "Service name (defaults to config)")
	cmd.Flags().StringVar(&eventType, "type", core.EventTypeTest, "Event type")
	cmd.Flags().StringVar(&severity, "severity", core.SeverityInfo, "Severity (debug|info|warning|error|critical)")
	cmd.Flags().StringVar(&message, "message", "", "Event message")
	cmd.Flags().StringVar(&metadataJSON, "metadata", "", "Metadata as a JSON object")
	cmd.Flags().StringVar(&correlationID, "correlation-id", "", "Attach an existing correlation ID")
	cmd.Flags().BoolVar(&newCorrelation, "new-correlation", false, "Generate and attach a fresh correlation ID")
	_ = cmd.MarkFlagRequired("message")

	return cmd
}

// newListCmd creates the 'list' subcommand
func newListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List unforwarded events (oldest first)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			store, _, _, err := initStore()
			if err != nil {
				return err
			}

			events, err := store.FetchUnforwarded(ctx, limit)
			if err != nil {
				return err
			}

			if outputJSON {
				return outputAsJSON(events)
			}

			renderEventsTable(events)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of events to show")

	return cmd
}

// newDrainCmd creates the 'drain' subcommand
func newDrainCmd() *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Deliver unforwarded events to the log sink and mark them forwarded",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			store, _, sugar, err := initStore()
			if err != nil {
				return err
			}

			drainer := forward.NewDrainer(store, &forward.LogSink{Logger: sugar}, batchSize, time.Second, sugar)
			n, err := drainer.DrainOnce(ctx)
			if err != nil {
				return err
			}

			successColor.Printf("✓ Forwarded %d event(s)\n", n)
			return nil
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 500, "Maximum events per drain")

	return cmd
}

// newPurgeCmd creates the 'purge' subcommand
func newPurgeCmd() *cobra.Command {
	var olderThanDays int
	var compact bool

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete forwarded events older than the cutoff",
		Long:  "Delete forwarded events past the retention cutoff. Unforwarded events are never touched.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			store, _, _, err := initStore()
			if err != nil {
				return err
			}

			cutoff := time.Now().AddDate(0, 0, -olderThanDays).Unix()
			deleted, err := store.DeleteForwardedOlderThan(ctx, cutoff)
			if err != nil {
				return err
			}

			successColor.Printf("✓ Deleted %d forwarded event(s) older than %d day(s)\n", deleted, olderThanDays)

			if compact && deleted > 0 {
				if err := store.Compact(ctx); err != nil {
					return err
				}
				successColor.Println("✓ Store compacted")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&olderThanDays, "older-than", 7, "Cutoff in days")
	cmd.Flags().BoolVar(&compact, "compact", false, "Compact after deleting")

	return cmd
}

// newCompactCmd creates the 'compact' subcommand
func newCompactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Reclaim disk space freed by deletions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			store, _, _, err := initStore()
			if err != nil {
				return err
			}

			if err := store.Compact(ctx); err != nil {
				return err
			}

			successColor.Println("✓ Store compacted")
			return nil
		},
	}
}

// newStatsCmd creates the 'stats' subcommand
func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show event counts by forwarding state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			store, _, _, err := initStore()
			if err != nil {
				return err
			}

			stats, err := store.Stats(ctx)
			if err != nil {
				return err
			}

			if outputJSON {
				return outputAsJSON(stats)
			}

			headerColor.Println("Event store:", store.Path())
			fmt.Printf("  total:       %d\n", stats.Total)
			fmt.Printf("  unforwarded: %d\n", stats.Unforwarded)
			fmt.Printf("  forwarded:   %d\n", stats.Forwarded)
			return nil
		},
	}
}

// outputAsJSON prints v as indented JSON to stdout.
func outputAsJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderEventsTable prints events in a compact table.
func renderEventsTable(events []*core.Event) {
	if len(events) == 0 {
		infoColor.Println("No unforwarded events.")
		return
	}

	headerColor.Printf("%-8s %-20s %-16s %-10s %-9s %s\n",
		"ID", "TIME", "SERVICE", "TYPE", "SEVERITY", "MESSAGE")
	for _, e := range events {
		ts := time.Unix(e.Timestamp, 0).UTC().Format("2006-01-02 15:04:05")
		msg := e.Message
		if len(msg) > 60 {
			msg = msg[:57] + "..."
		}
		line := fmt.Sprintf("%-8s %-20s %-16s %-10s %-9s %s",
			strconv.FormatInt(e.ID, 10), ts, e.ServiceName, e.EventType, e.Severity, msg)
		switch e.Severity {
		case core.SeverityError, core.SeverityCritical:
			errorColor.Println(line)
		default:
			fmt.Println(line)
		}
	}
	infoColor.Printf("%d event(s)\n", len(events))
}
