package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kestrelhealth/praxis/internal/config"
	"github.com/kestrelhealth/praxis/internal/engine"
	"github.com/kestrelhealth/praxis/internal/netmon"
	"github.com/kestrelhealth/praxis/internal/remote"
	"github.com/kestrelhealth/praxis/internal/statusd"
	"github.com/kestrelhealth/praxis/internal/store"
	"github.com/kestrelhealth/praxis/internal/ui"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the sync daemon",
	Long: `Run the sync daemon in the foreground.

The daemon:
  1. Opens the local store and initializes the schema
  2. Monitors connectivity to the remote service
  3. Drains the sync queue on reconnect and on a periodic check
  4. Serves the local status surface for the UI`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		if cfg.Remote.BaseURL == "" {
			fmt.Fprintf(os.Stderr, "Error: remote.base_url is required for the daemon\n")
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
			ProbeInterval:     cfg.Net.ProbeInterval,
			ReconnectDebounce: cfg.Net.ReconnectDebounce,
			StateFile:         cfg.Net.StateFile,
			Logger:            config.NewLogger("[netmon] ", cfg.LogFile),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating connectivity monitor: %v\n", err)
			os.Exit(1)
		}

		eng, err := engine.New(st, remote.NewDispatcher(client), monitor, &engine.Config{
			UserID:        cfg.UserID,
			SyncInterval:  cfg.Sync.Interval,
			PruneInterval: cfg.Sync.PruneInterval,
			Retention:     cfg.Sync.Retention(),
			Logger:        config.NewLogger("[engine] ", cfg.LogFile),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating sync engine: %v\n", err)
			os.Exit(1)
		}

		srv, err := statusd.NewServer(eng, &statusd.Config{
			Port:   cfg.Status.Port,
			Logger: config.NewLogger("[statusd] ", cfg.LogFile),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating status server: %v\n", err)
			os.Exit(1)
		}

		if err := monitor.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting connectivity monitor: %v\n", err)
			os.Exit(1)
		}
		if err := eng.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting sync engine: %v\n", err)
			_ = monitor.Close()
			os.Exit(1)
		}
		if err := srv.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting status server: %v\n", err)
			eng.Stop()
			_ = monitor.Close()
			os.Exit(1)
		}

		fmt.Printf("%s praxis daemon running (user %s, status on %s)\n",
			ui.RenderAccent("●"), cfg.UserID, srv.Addr())

		// Drain anything left over from a previous run.
		eng.TriggerSync()

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		<-sigs

		fmt.Printf("\n%s shutting down\n", ui.RenderMuted("●"))

		if err := srv.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error stopping status server: %v\n", err)
		}
		eng.Stop()
		if err := monitor.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error stopping connectivity monitor: %v\n", err)
		}
	},
}
