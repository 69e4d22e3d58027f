// Command praxis is the practice-management sync daemon and its management
// CLI.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "praxis",
	Short: "Offline-first sync engine for praxis practice management",
	Long: `praxis keeps a durable local store of clients, programs, sessions,
and stimuli, queues every local mutation, and replays the queue against the
remote service whenever connectivity allows.

Mutations made offline are never lost: each one is written to the sync
queue in the same transaction as the entity itself and drained in order
once the client is back online.`,
}

func main() {
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(queueCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
