package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "trawler",
	Short: "Trawler - NAS content indexing pipeline",
	Long: `Trawler watches NAS volumes, extracts metadata from changed files
and keeps a Solr search index and thumbnail store in sync.

All components run from this single binary: the filesystem watcher,
the metadata extractor, the thumbnail renderer and the query API.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Trawler version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(thumbsCmd)
	rootCmd.AddCommand(apiCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(resetCmd)
}
