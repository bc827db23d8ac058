package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/trawlerdev/trawler/pkg/maintenance"
	"github.com/trawlerdev/trawler/pkg/solr"
)

var cleanupExecute bool

func init() {
	cleanupCmd.Flags().BoolVar(&cleanupExecute, "execute", false,
		"Actually delete duplicates (default is a dry run)")
	cleanupCmd.Flags().StringVar(&configFile, "config", "", "Path to YAML config file")
	resetCmd.Flags().StringVar(&configFile, "config", "", "Path to YAML config file")
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup-duplicates",
	Short: "Remove duplicate index entries per file path",
	Long: `Scan the whole index for file paths with more than one document and
delete every copy except the newest. Runs dry by default; pass --execute
to delete.

Duplicates only occur when documents were written before ids became
path-derived, or after an index restore from mixed sources.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, store, err := loadConfig(false)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cleanup := maintenance.NewCleanup(solr.New(cfg.SolrURL, cfg.RequestTimeout))
		cleanup.DryRun = !cleanupExecute

		result, err := cleanup.Run(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Scanned %d documents across %d paths\n", result.Scanned, result.Paths)
		fmt.Printf("Duplicates found: %d\n", result.Duplicates)
		if cleanup.DryRun {
			fmt.Println("Dry run: nothing deleted. Re-run with --execute to delete.")
		} else {
			fmt.Printf("Deleted: %d\n", result.Deleted)
		}
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset-state",
	Short: "Clear all enqueue tracking state",
	Long: `Delete the queued and processed sets plus every per-path and per-hash
tracking key from the state store. The search index, the work queues and
rendered thumbnails are left alone.

Use this when tracking has drifted from reality, e.g. after restoring the
index from a backup. The next rescan rebuilds tracking from disk.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, err := loadConfig(false)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		result, err := maintenance.NewResetState(store).Run(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d sets and %d tracking keys\n", result.Sets, result.Keys)
		return nil
	},
}
