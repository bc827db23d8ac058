/*
Package log provides structured logging for Trawler using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers and configurable log levels. All logs include
timestamps and support filtering by severity level.

Initializing the logger:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Component loggers:

	watcherLog := log.WithComponent("watcher")
	watcherLog.Info().Str("file_path", "/photos/a/b.jpg").Msg("file queued")

Every pipeline component (watcher, extractor, thumbnailer, api) takes a child
logger from WithComponent so that the JSON output can be filtered per
component in aggregation tools.
*/
package log
