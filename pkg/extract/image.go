package extract

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	// Decoders for DecodeConfig. JPEG, PNG and GIF come from the standard
	// library; BMP, TIFF and WebP from golang.org/x/image.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/trawlerdev/trawler/pkg/solr"
)

// extractImage reads basic decoder info plus EXIF. Every field is optional;
// undecodable images still index with base fields only.
func (w *Worker) extractImage(containerPath string, logger zerolog.Logger) solr.Document {
	meta := solr.Document{}

	f, err := os.Open(containerPath)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to open image")
		return meta
	}
	defer f.Close()

	if cfg, format, err := image.DecodeConfig(f); err == nil {
		meta["width"] = cfg.Width
		meta["height"] = cfg.Height
		meta["color_space"] = colorSpaceName(cfg.ColorModel)
		meta["format"] = strings.ToUpper(format)
	} else {
		logger.Debug().Err(err).Msg("image decode failed")
	}

	if _, err := f.Seek(0, 0); err != nil {
		return meta
	}
	x, err := exif.Decode(f)
	if err != nil {
		// Most PNGs and GIFs simply carry no EXIF.
		logger.Debug().Err(err).Msg("no exif data")
		return meta
	}
	mergeExif(meta, x)
	return meta
}

// mergeExif pulls camera, exposure and GPS fields out of a decoded EXIF
// block. Each field is independent; a malformed tag loses only itself.
func mergeExif(meta solr.Document, x *exif.Exif) {
	if v, ok := exifString(x, exif.Make); ok {
		meta["camera_make"] = v
	}
	if v, ok := exifString(x, exif.Model); ok {
		meta["camera_model"] = v
	}
	if v, ok := exifString(x, exif.LensModel); ok {
		meta["lens_model"] = v
	}
	if v, ok := exifRational(x, exif.FocalLength); ok {
		meta["focal_length"] = v
	}
	if v, ok := exifRational(x, exif.FNumber); ok {
		meta["aperture"] = v
	}
	if v, ok := exifInt(x, exif.ISOSpeedRatings); ok {
		meta["iso_speed"] = v
	}
	if tag, err := x.Get(exif.ExposureTime); err == nil {
		if num, den, rerr := tag.Rat2(0); rerr == nil && den != 0 {
			meta["shutter_speed"] = fmt.Sprintf("%d/%d", num, den)
		}
	}
	if tag, err := x.Get(exif.Flash); err == nil {
		meta["flash"] = flashFired(tag)
	}
	if lat, lon, err := x.LatLong(); err == nil {
		meta["gps_location"] = fmt.Sprintf("%v,%v", lat, lon)
	}
	if v, ok := exifRational(x, exif.GPSAltitude); ok {
		meta["gps_altitude"] = v
	}
}

func exifString(x *exif.Exif, name exif.FieldName) (string, bool) {
	tag, err := x.Get(name)
	if err != nil {
		return "", false
	}
	s, err := tag.StringVal()
	if err != nil {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func exifInt(x *exif.Exif, name exif.FieldName) (int, bool) {
	tag, err := x.Get(name)
	if err != nil {
		return 0, false
	}
	n, err := tag.Int(0)
	if err != nil {
		return 0, false
	}
	return n, true
}

func exifRational(x *exif.Exif, name exif.FieldName) (float64, bool) {
	tag, err := x.Get(name)
	if err != nil {
		return 0, false
	}
	num, den, err := tag.Rat2(0)
	if err != nil || den == 0 {
		return 0, false
	}
	return float64(num) / float64(den), true
}

// flashFired interprets the EXIF Flash tag: a positive integer means fired,
// and text values count when they mention firing.
func flashFired(tag *tiff.Tag) bool {
	if n, err := tag.Int(0); err == nil {
		return n > 0
	}
	if s, err := tag.StringVal(); err == nil {
		return strings.Contains(strings.ToLower(s), "fire")
	}
	return false
}

func colorSpaceName(m color.Model) string {
	switch m {
	case color.YCbCrModel:
		return "YCbCr"
	case color.RGBAModel, color.RGBA64Model:
		return "RGBA"
	case color.NRGBAModel, color.NRGBA64Model:
		return "RGBA"
	case color.GrayModel, color.Gray16Model:
		return "Gray"
	case color.CMYKModel:
		return "CMYK"
	}
	if _, ok := m.(color.Palette); ok {
		return "Paletted"
	}
	return "RGB"
}
