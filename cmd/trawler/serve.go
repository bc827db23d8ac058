package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/trawlerdev/trawler/pkg/api"
	"github.com/trawlerdev/trawler/pkg/config"
	"github.com/trawlerdev/trawler/pkg/extract"
	"github.com/trawlerdev/trawler/pkg/log"
	"github.com/trawlerdev/trawler/pkg/metrics"
	"github.com/trawlerdev/trawler/pkg/pathmap"
	"github.com/trawlerdev/trawler/pkg/solr"
	"github.com/trawlerdev/trawler/pkg/state"
	"github.com/trawlerdev/trawler/pkg/thumbs"
	"github.com/trawlerdev/trawler/pkg/watcher"
)

var configFile string

func init() {
	for _, cmd := range []*cobra.Command{serveCmd, watchCmd, extractCmd, thumbsCmd, apiCmd} {
		cmd.Flags().StringVar(&configFile, "config", "", "Path to YAML config file")
	}
}

// loadConfig builds the runtime configuration from the environment plus the
// optional config file, initializes logging and verifies the state store is
// reachable.
func loadConfig(needVolumes bool) (config.Config, *state.Store, error) {
	cfg := config.FromEnv()
	if configFile != "" {
		if err := cfg.MergeFile(configFile); err != nil {
			return cfg, nil, err
		}
	}

	log.Init(log.Config{
		Level:      log.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
	})
	api.Version = Version

	if needVolumes {
		if err := cfg.Validate(); err != nil {
			return cfg, nil, err
		}
	}

	store, err := state.New(cfg.RedisURL)
	if err != nil {
		return cfg, nil, fmt.Errorf("connect state store: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		store.Close()
		return cfg, nil, fmt.Errorf("state store unreachable: %w", err)
	}
	return cfg, store, nil
}

// runComponents runs the given components under one signal-aware group and
// blocks until all exit.
func runComponents(components ...func(context.Context) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	for _, run := range components {
		run := run
		g.Go(func() error { return run(ctx) })
	}
	return g.Wait()
}

func depthCollector(store *state.Store) func(context.Context) error {
	c := metrics.NewCollector(store,
		[]string{state.ProcessingQueue, state.ThumbnailQueue}, 15*time.Second)
	return c.Run
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the full pipeline in one process",
	Long: `Run every pipeline component: the filesystem watcher, the metadata
extractor, the thumbnail renderer and the query API. This is the default
deployment mode for a single-host NAS.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, store, err := loadConfig(true)
		if err != nil {
			return err
		}
		defer store.Close()

		w, err := watcher.New(cfg, store, pathmap.New(cfg.Volumes))
		if err != nil {
			return err
		}
		index := solr.New(cfg.SolrURL, cfg.RequestTimeout)

		return runComponents(
			w.Run,
			extract.New(cfg, store, index).Run,
			thumbs.New(cfg, store).Run,
			api.New(cfg, store, index).Run,
			depthCollector(store),
		)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run only the filesystem watcher",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, store, err := loadConfig(true)
		if err != nil {
			return err
		}
		defer store.Close()

		w, err := watcher.New(cfg, store, pathmap.New(cfg.Volumes))
		if err != nil {
			return err
		}
		return runComponents(w.Run, depthCollector(store))
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Run only the metadata extractor",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, store, err := loadConfig(false)
		if err != nil {
			return err
		}
		defer store.Close()

		index := solr.New(cfg.SolrURL, cfg.RequestTimeout)
		return runComponents(extract.New(cfg, store, index).Run)
	},
}

var thumbsCmd = &cobra.Command{
	Use:   "thumbs",
	Short: "Run only the thumbnail renderer",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, store, err := loadConfig(false)
		if err != nil {
			return err
		}
		defer store.Close()

		return runComponents(thumbs.New(cfg, store).Run)
	},
}

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Run only the query API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, store, err := loadConfig(false)
		if err != nil {
			return err
		}
		defer store.Close()

		index := solr.New(cfg.SolrURL, cfg.RequestTimeout)
		return runComponents(api.New(cfg, store, index).Run)
	},
}
