package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kestrelhealth/praxis/internal/config"
	"github.com/kestrelhealth/praxis/internal/engine"
	"github.com/kestrelhealth/praxis/internal/store"
	"github.com/kestrelhealth/praxis/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync status",
	Long: `Show the current sync status.

Reads the running daemon's status surface when available; otherwise falls
back to inspecting the local store directly.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		if status, ok := fetchDaemonStatus(cfg.Status.Port); ok {
			printStatus(status, true)
			return
		}

		// Daemon not running; report what the store alone can tell us.
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

		count, err := st.PendingCount(context.Background(), cfg.UserID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading queue: %v\n", err)
			os.Exit(1)
		}

		printStatus(engine.Status{PendingSyncCount: count}, false)
	},
}

// fetchDaemonStatus reads the running daemon's status surface.
func fetchDaemonStatus(port int) (engine.Status, bool) {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/status", port))
	if err != nil {
		return engine.Status{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return engine.Status{}, false
	}

	var status engine.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return engine.Status{}, false
	}
	return status, true
}

func printStatus(status engine.Status, daemonRunning bool) {
	if !daemonRunning {
		fmt.Printf("%s\n", ui.RenderMuted("daemon not running; showing local store state"))
	}

	online := ui.RenderError("offline")
	if status.IsOnline {
		online = ui.RenderSuccess("online")
	}
	syncing := "idle"
	if status.IsSyncing {
		syncing = ui.RenderAccent("syncing")
	}

	fmt.Printf("%s %s\n", ui.RenderLabel("Connectivity:"), online)
	fmt.Printf("%s %s\n", ui.RenderLabel("Engine:"), syncing)
	fmt.Printf("%s %d\n", ui.RenderLabel("Pending:"), status.PendingSyncCount)

	if status.LastSyncTime.IsZero() {
		fmt.Printf("%s never\n", ui.RenderLabel("Last sync:"))
	} else {
		fmt.Printf("%s %s\n", ui.RenderLabel("Last sync:"), status.LastSyncTime.Format(time.RFC3339))
	}

	if status.SyncError != "" {
		fmt.Printf("%s %s\n", ui.RenderLabel("Error:"), ui.RenderError(status.SyncError))
	}
}
