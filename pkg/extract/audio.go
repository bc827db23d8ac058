package extract

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/dhowden/tag"
	"github.com/rs/zerolog"

	"github.com/trawlerdev/trawler/pkg/solr"
)

// Rank-ordered tag names per field, covering ID3v2 frames, Vorbis comments
// and MP4 atoms. The first present name wins.
var audioTagNames = map[string][]string{
	"artist":       {"TPE1", "ARTIST", "©ART"},
	"album":        {"TALB", "ALBUM", "©alb"},
	"title":        {"TIT2", "TITLE", "©nam"},
	"genre":        {"TCON", "GENRE", "©gen"},
	"year":         {"TDRC", "DATE", "©day"},
	"track_number": {"TRCK", "TRACKNUMBER", "trkn"},
}

// extractAudio reads tags through the format-aware reader, falling back to
// raw frames for anything the typed accessors miss. Duration comes from
// ffprobe since tag headers do not carry stream info.
func (w *Worker) extractAudio(ctx context.Context, containerPath string, logger zerolog.Logger) solr.Document {
	meta := solr.Document{}

	f, err := os.Open(containerPath)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to open audio file")
		return meta
	}
	defer f.Close()

	if m, err := tag.ReadFrom(f); err == nil {
		mergeAudioTags(meta, m)
	} else {
		logger.Debug().Err(err).Msg("no audio tags")
	}

	if probed, err := w.probe(ctx, containerPath); err == nil {
		if d, perr := strconv.ParseFloat(probed.Format.Duration, 64); perr == nil {
			meta["duration"] = int(d)
		}
	} else {
		logger.Debug().Err(err).Msg("audio probe failed")
	}
	return meta
}

func mergeAudioTags(meta solr.Document, m tag.Metadata) {
	raw := m.Raw()

	setTag := func(field, typed string) {
		if typed != "" {
			meta[field] = typed
			return
		}
		if v := firstTag(raw, audioTagNames[field]...); v != "" {
			meta[field] = v
		}
	}

	setTag("artist", m.Artist())
	setTag("album", m.Album())
	setTag("title", m.Title())
	setTag("genre", m.Genre())

	if y := m.Year(); y != 0 {
		meta["year"] = strconv.Itoa(y)
	} else if v := firstTag(raw, audioTagNames["year"]...); v != "" {
		meta["year"] = v
	}
	if n, _ := m.Track(); n != 0 {
		meta["track_number"] = strconv.Itoa(n)
	} else if v := firstTag(raw, audioTagNames["track_number"]...); v != "" {
		meta["track_number"] = v
	}
}

// firstTag returns the first present tag, stringified. Raw tag values are
// heterogeneous (strings, slices, structured frames); slices yield their
// first element.
func firstTag(raw map[string]interface{}, names ...string) string {
	for _, name := range names {
		v, ok := raw[name]
		if !ok || v == nil {
			continue
		}
		if s := stringifyTag(v); s != "" {
			return s
		}
	}
	return ""
}

func stringifyTag(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []string:
		if len(t) == 0 {
			return ""
		}
		return t[0]
	case []interface{}:
		if len(t) == 0 {
			return ""
		}
		return stringifyTag(t[0])
	case []byte:
		return string(t)
	case int:
		return strconv.Itoa(t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}
