// Package thumbs renders preview images for files on the thumbnail queue.
//
// Each file gets up to three JPEG renditions (small, medium, large), written
// under a per-size directory with an md5-prefixed name derived from the
// logical path. Images are oriented, downsampled with Lanczos and centered
// on a white canvas; videos contribute a single frame grabbed via ffmpeg
// past the opening seconds. Rendered locations are recorded in a state-store
// hash with a 30-day TTL so the query API can serve them; delete events
// remove both the files and the hash.
package thumbs
