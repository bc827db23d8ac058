package thumbs

import (
	"context"
	"fmt"
	"image/color"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/trawlerdev/trawler/pkg/types"
)

// mediaRenderer renders images in-process and videos through ffmpeg.
type mediaRenderer struct {
	quality int
	timeout time.Duration
}

func (r *mediaRenderer) Render(ctx context.Context, containerPath, ext, dst string, size Size) error {
	if types.VideoExtensions[ext] {
		return r.renderVideo(ctx, containerPath, dst, size)
	}
	return r.renderImage(containerPath, dst, size)
}

// renderImage decodes, orients and downsamples the source, then centers it
// on a white canvas of the exact target size. Transparency flattens to
// white so JPEG output stays predictable.
func (r *mediaRenderer) renderImage(containerPath, dst string, size Size) error {
	src, err := imaging.Open(containerPath, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("decode %s: %w", containerPath, err)
	}

	fitted := imaging.Fit(src, size.Width, size.Height, imaging.Lanczos)

	canvas := imaging.New(size.Width, size.Height, color.White)
	canvas = imaging.PasteCenter(canvas, fitted)

	if err := imaging.Save(canvas, dst, imaging.JPEGQuality(r.quality)); err != nil {
		return fmt.Errorf("save %s: %w", dst, err)
	}
	return nil
}

// renderVideo grabs a single frame past the opening seconds and lets ffmpeg
// scale and pad it to the target size.
func (r *mediaRenderer) renderVideo(ctx context.Context, containerPath, dst string, size Size) error {
	seek := r.seekPoint(ctx, containerPath)

	filter := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:white",
		size.Width, size.Height, size.Width, size.Height)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y", "-v", "quiet",
		"-ss", strconv.FormatFloat(seek, 'f', 1, 64),
		"-i", containerPath,
		"-vframes", "1",
		"-vf", filter,
		"-q:v", "2",
		dst)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg %s: %w: %s", containerPath, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// seekPoint picks the frame offset: a tenth of the way in, at least one
// second, or a flat five seconds when the duration is unknown.
func (r *mediaRenderer) seekPoint(ctx context.Context, containerPath string) float64 {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-show_entries", "format=duration",
		"-of", "csv=p=0",
		containerPath)
	out, err := cmd.Output()
	if err != nil {
		return 5.0
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil || duration <= 0 {
		return 5.0
	}
	seek := 0.1 * duration
	if seek < 1.0 {
		seek = 1.0
	}
	return seek
}
