package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/trawlerdev/trawler/pkg/pathmap"
	"github.com/trawlerdev/trawler/pkg/types"
)

// Defaults for everything the environment leaves unset.
const (
	DefaultRedisURL         = "redis://redis:6379"
	DefaultSolrURL          = "http://solr:8983/solr/nas_content"
	DefaultThumbnailDir     = "/app/thumbnails"
	DefaultThumbnailQuality = 85
	DefaultAPIAddr          = ":8080"

	DefaultDebounceDelay  = 5 * time.Second
	DefaultModifySettle   = 1 * time.Second
	DefaultRescanInterval = 30 * time.Minute

	DefaultExtractWorkers   = 4
	DefaultThumbnailWorkers = 2

	// DefaultRequestTimeout bounds every call to the index and to external
	// tools (ffprobe, ffmpeg).
	DefaultRequestTimeout = 30 * time.Second
)

// Config carries the full pipeline configuration. It is built once in main
// and passed into every constructor; nothing reads the environment after
// startup.
type Config struct {
	RedisURL         string         `yaml:"redis_url"`
	SolrURL          string         `yaml:"solr_url"`
	Volumes          []types.Volume `yaml:"volumes"`
	ThumbnailDir     string         `yaml:"thumbnail_dir"`
	ThumbnailQuality int            `yaml:"thumbnail_quality"`
	APIAddr          string         `yaml:"api_addr"`

	DebounceDelay  time.Duration `yaml:"debounce_delay"`
	ModifySettle   time.Duration `yaml:"modify_settle"`
	RescanInterval time.Duration `yaml:"rescan_interval"`

	ExtractWorkers   int `yaml:"extract_workers"`
	ThumbnailWorkers int `yaml:"thumbnail_workers"`

	RequestTimeout time.Duration `yaml:"request_timeout"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
}

// FromEnv builds a Config from the process environment, falling back to
// defaults. MOUNT_PATHS is a comma-separated list of container paths; the
// volume name is the last path segment of each.
func FromEnv() Config {
	cfg := Config{
		RedisURL:         envOr("REDIS_URL", DefaultRedisURL),
		SolrURL:          envOr("SOLR_URL", DefaultSolrURL),
		ThumbnailDir:     envOr("THUMBNAIL_DIR", DefaultThumbnailDir),
		ThumbnailQuality: envIntOr("THUMBNAIL_QUALITY", DefaultThumbnailQuality),
		APIAddr:          envOr("API_ADDR", DefaultAPIAddr),
		DebounceDelay:    DefaultDebounceDelay,
		ModifySettle:     DefaultModifySettle,
		RescanInterval:   DefaultRescanInterval,
		ExtractWorkers:   DefaultExtractWorkers,
		ThumbnailWorkers: DefaultThumbnailWorkers,
		RequestTimeout:   DefaultRequestTimeout,
		LogLevel:         envOr("LOG_LEVEL", "info"),
		LogJSON:          true,
	}
	if mounts := os.Getenv("MOUNT_PATHS"); mounts != "" {
		cfg.Volumes = pathmap.VolumesFromMounts(strings.Split(mounts, ","))
	}
	return cfg
}

// MergeFile overlays settings from a YAML file onto cfg. Values present in
// the file win over the environment; absent values keep their current value.
func (c *Config) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks the parts whose absence must refuse startup: at least one
// volume, and every volume root present on disk.
func (c *Config) Validate() error {
	if len(c.Volumes) == 0 {
		return fmt.Errorf("no volumes configured: set MOUNT_PATHS or the volumes config key")
	}
	for _, v := range c.Volumes {
		info, err := os.Stat(v.Root)
		if err != nil {
			return fmt.Errorf("volume %s root %s: %w", v.Name, v.Root, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("volume %s root %s is not a directory", v.Name, v.Root)
		}
	}
	if c.ThumbnailQuality < 1 || c.ThumbnailQuality > 100 {
		return fmt.Errorf("thumbnail quality %d out of range 1-100", c.ThumbnailQuality)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
