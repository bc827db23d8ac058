package extract

import (
	"os"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/trawlerdev/trawler/pkg/solr"
)

// contentPreviewLimit caps how much plain-text body is indexed per file.
const contentPreviewLimit = 10000

// extractDocument handles text-class files. Plain .txt bodies are indexed
// directly; every other document format only records its type.
func extractDocument(containerPath, ext string, logger zerolog.Logger) solr.Document {
	meta := solr.Document{}

	if ext == ".txt" {
		data, err := os.ReadFile(containerPath)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to read text file")
			return meta
		}
		text := toValidUTF8(data)
		meta["character_count"] = utf8.RuneCountInString(text)
		meta["content"] = truncateRunes(text, contentPreviewLimit)
		return meta
	}

	meta["document_type"] = strings.TrimPrefix(ext, ".")
	return meta
}

// toValidUTF8 decodes bytes lossily, replacing invalid sequences so the
// index never rejects a document over encoding garbage.
func toValidUTF8(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), string(utf8.RuneError))
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
