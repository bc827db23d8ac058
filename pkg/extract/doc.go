// Package extract consumes the file processing queue and keeps the search
// index in sync with the filesystem.
//
// Each worker blocks on the queue, pops one event at a time and handles it
// end to end: delete events remove the document, create and modify events
// sniff the MIME type, run the type-specific extractor (image decoder plus
// EXIF, ffprobe for video and audio streams, tag readers for audio metadata,
// plain-text body capture) and upsert the resulting document under its
// deterministic path-derived id. Files whose stored hash, size and timestamp
// still match are skipped without a write.
//
// Successful passes release per-path locks, record recency bookkeeping in
// the state store and forward renderable files to the thumbnail queue.
package extract
