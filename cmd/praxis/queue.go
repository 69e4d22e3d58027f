package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kestrelhealth/praxis/internal/config"
	"github.com/kestrelhealth/praxis/internal/store"
	"github.com/kestrelhealth/praxis/internal/ui"
)

var (
	queueListAll   bool
	queueListLimit int
	queuePruneDays int
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and maintain the sync queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sync queue items",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, st := openStore()
		defer st.Close()

		items, err := st.ListQueue(context.Background(), store.ListQueueFilter{
			UserID:        cfg.UserID,
			IncludeSynced: queueListAll,
			Limit:         queueListLimit,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing queue: %v\n", err)
			os.Exit(1)
		}

		if len(items) == 0 {
			fmt.Printf("%s Queue is empty\n", ui.RenderSuccess("✓"))
			return
		}

		for _, item := range items {
			state := ui.RenderWarn("pending")
			if item.Synced {
				state = ui.RenderSuccess("synced")
			}
			line := fmt.Sprintf("#%-6d %-8s %-8s %-24s %s %s",
				item.ID, item.Operation, item.EntityKind, item.EntityID,
				item.Timestamp.Format(time.RFC3339), state)
			fmt.Println(line)
			if item.Error != "" && !item.Synced {
				fmt.Printf("        %s\n", ui.RenderError(item.Error))
			}
		}
	},
}

var queuePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove synced items past the retention window",
	Long: `Remove synced sync queue items older than the retention window.

Unsynced items are never removed, regardless of age.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, st := openStore()
		defer st.Close()

		days := queuePruneDays
		if days <= 0 {
			days = cfg.Sync.RetentionDays
		}

		n, err := st.PruneSynced(context.Background(), time.Duration(days)*24*time.Hour)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error pruning queue: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Pruned %d synced item(s) older than %d day(s)\n",
			ui.RenderSuccess("✓"), n, days)
	},
}

// openStore loads config and opens the local store, exiting on failure.
func openStore() (*config.Config, *store.Store) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}

	if err := st.InitSchema(); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing schema: %v\n", err)
		os.Exit(1)
	}

	return cfg, st
}

func init() {
	queueListCmd.Flags().BoolVar(&queueListAll, "all", false, "include synced history entries")
	queueListCmd.Flags().IntVar(&queueListLimit, "limit", 0, "limit the number of items listed (0 = all)")
	queuePruneCmd.Flags().IntVar(&queuePruneDays, "days", 0, "retention window in days (default: configured retention)")

	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queuePruneCmd)
}
