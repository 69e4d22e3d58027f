package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kestrelhealth/praxis/internal/config"
	"github.com/kestrelhealth/praxis/internal/engine"
	"github.com/kestrelhealth/praxis/internal/netmon"
	"github.com/kestrelhealth/praxis/internal/remote"
	"github.com/kestrelhealth/praxis/internal/store"
	"github.com/kestrelhealth/praxis/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one drain pass against the remote service",
	Long: `Drain all pending sync queue items now.

Items are dispatched to the remote service strictly in order. A failing
item is recorded and skipped; the remaining items still sync. Failed items
are retried on the next pass.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		if cfg.Remote.BaseURL == "" {
			fmt.Fprintf(os.Stderr, "Error: remote.base_url is required\n")
			os.Exit(1)
		}

		st, err := store.Open(cfg.DBPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		if err := st.InitSchema(); err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing schema: %v\n", err)
			os.Exit(1)
		}

		client, err := remote.NewClient(remote.Config{
			BaseURL: cfg.Remote.BaseURL,
			APIKey:  cfg.Remote.APIKey,
			Timeout: cfg.Remote.Timeout,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating remote client: %v\n", err)
			os.Exit(1)
		}

		monitor, err := netmon.New(client, &netmon.Config{
			ReconnectDebounce: time.Millisecond, // one-shot: no flapping to absorb
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating connectivity monitor: %v\n", err)
			os.Exit(1)
		}
		if err := monitor.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting connectivity monitor: %v\n", err)
			os.Exit(1)
		}
		defer monitor.Close()

		eng, err := engine.New(st, remote.NewDispatcher(client), monitor, &engine.Config{
			UserID:    cfg.UserID,
			Retention: cfg.Sync.Retention(),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating sync engine: %v\n", err)
			os.Exit(1)
		}

		pending, err := st.PendingCount(context.Background(), cfg.UserID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading queue: %v\n", err)
			os.Exit(1)
		}
		if pending == 0 {
			fmt.Printf("%s Nothing to sync\n", ui.RenderSuccess("✓"))
			return
		}

		fmt.Printf("%s Syncing %d pending item(s)...\n", ui.RenderAccent("🔄"), pending)
		start := time.Now()

		err = eng.SyncOnce(context.Background())
		switch {
		case errors.Is(err, engine.ErrOffline):
			fmt.Fprintf(os.Stderr, "%s Remote service unreachable; items stay queued\n", ui.RenderWarn("!"))
			os.Exit(1)
		case errors.Is(err, engine.ErrSyncInProgress):
			fmt.Fprintf(os.Stderr, "%s A sync pass is already running\n", ui.RenderWarn("!"))
			os.Exit(1)
		case err != nil:
			fmt.Fprintf(os.Stderr, "%s Sync aborted: %v\n", ui.RenderError("✗"), err)
			os.Exit(1)
		}

		status := eng.Status()
		if status.SyncError != "" {
			fmt.Printf("%s Sync finished in %v with failures: %s\n",
				ui.RenderWarn("!"), time.Since(start).Round(time.Millisecond), status.SyncError)
			os.Exit(1)
		}
		fmt.Printf("%s Synced %d item(s) in %v\n",
			ui.RenderSuccess("✓"), pending, time.Since(start).Round(time.Millisecond))
	},
}
