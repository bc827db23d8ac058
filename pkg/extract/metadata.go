package extract

import (
	"context"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/trawlerdev/trawler/pkg/solr"
	"github.com/trawlerdev/trawler/pkg/types"
)

// extractMetadata sniffs the MIME type from file contents, derives the coarse
// file type and runs the matching extractor. Metadata failures never block
// indexing: whatever fields were extracted are kept and the rest are absent.
func (w *Worker) extractMetadata(ctx context.Context, containerPath, ext string, logger zerolog.Logger) (string, types.FileType, solr.Document) {
	contentType := ""
	if mt, err := mimetype.DetectFile(containerPath); err == nil {
		contentType = mt.String()
		if i := strings.Index(contentType, ";"); i >= 0 {
			contentType = strings.TrimSpace(contentType[:i])
		}
	} else {
		logger.Warn().Err(err).Msg("mime detection failed")
	}

	fileType := classify(contentType, ext)

	var meta solr.Document
	switch fileType {
	case types.FileTypeImage:
		meta = w.extractImage(containerPath, logger)
	case types.FileTypeVideo:
		meta = w.extractVideo(ctx, containerPath, logger)
	case types.FileTypeAudio:
		meta = w.extractAudio(ctx, containerPath, logger)
	case types.FileTypeDocument:
		meta = extractDocument(containerPath, ext, logger)
	default:
		meta = solr.Document{}
	}
	return contentType, fileType, meta
}

// classify derives the coarse file type from the sniffed MIME type, falling
// back to the extension tables for documents, archives and anything the
// sniffer could not place.
func classify(contentType, ext string) types.FileType {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return types.FileTypeImage
	case strings.HasPrefix(contentType, "video/"):
		return types.FileTypeVideo
	case strings.HasPrefix(contentType, "audio/"):
		return types.FileTypeAudio
	case strings.HasPrefix(contentType, "text/"), types.DocumentExtensions[ext]:
		return types.FileTypeDocument
	case types.ArchiveExtensions[ext]:
		return types.FileTypeArchive
	default:
		return types.FileTypeOther
	}
}
