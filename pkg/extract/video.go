package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/trawlerdev/trawler/pkg/solr"
)

// ffprobeOutput is the subset of ffprobe's JSON report the pipeline reads.
type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeStream struct {
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	RFrameRate string `json:"r_frame_rate"`
}

// probe runs ffprobe with a bounded timeout and parses its JSON report.
func (w *Worker) probe(ctx context.Context, containerPath string) (*ffprobeOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.RequestTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		containerPath)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", containerPath, err)
	}
	var probed ffprobeOutput
	if err := json.Unmarshal(out, &probed); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}
	return &probed, nil
}

// extractVideo pulls container and stream facts via ffprobe.
func (w *Worker) extractVideo(ctx context.Context, containerPath string, logger zerolog.Logger) solr.Document {
	meta := solr.Document{}

	probed, err := w.probe(ctx, containerPath)
	if err != nil {
		logger.Warn().Err(err).Msg("video probe failed")
		return meta
	}
	mergeProbe(meta, probed)
	return meta
}

func mergeProbe(meta solr.Document, probed *ffprobeOutput) {
	if d, err := strconv.ParseFloat(probed.Format.Duration, 64); err == nil {
		meta["duration"] = int(d)
	}
	if br, err := strconv.Atoi(probed.Format.BitRate); err == nil {
		meta["bit_rate"] = br
	}

	var video, audio *ffprobeStream
	for i := range probed.Streams {
		s := &probed.Streams[i]
		switch s.CodecType {
		case "video":
			if video == nil {
				video = s
			}
		case "audio":
			if audio == nil {
				audio = s
			}
		}
	}
	if video != nil {
		meta["width"] = video.Width
		meta["height"] = video.Height
		meta["video_codec"] = video.CodecName
		meta["resolution"] = fmt.Sprintf("%dx%d", video.Width, video.Height)
		if fr, ok := parseRational(video.RFrameRate); ok {
			meta["frame_rate"] = fr
		}
	}
	if audio != nil {
		meta["audio_codec"] = audio.CodecName
	}
}

// parseRational converts ffprobe's "num/den" rationals to a float.
func parseRational(s string) (float64, bool) {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return 0, false
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0, false
	}
	return n / d, true
}
