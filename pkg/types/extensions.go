package types

// Supported file extensions, lowercased, including the leading dot.
// Events on anything else are dropped before any further work.
var (
	ImageExtensions = map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
		".bmp": true, ".tiff": true, ".tif": true, ".webp": true,
		".raw": true, ".cr2": true, ".nef": true, ".arw": true,
	}

	VideoExtensions = map[string]bool{
		".mp4": true, ".avi": true, ".mkv": true, ".mov": true,
		".wmv": true, ".flv": true, ".webm": true, ".m4v": true,
		".mpg": true, ".mpeg": true,
	}

	AudioExtensions = map[string]bool{
		".mp3": true, ".wav": true, ".flac": true, ".aac": true,
		".ogg": true, ".wma": true, ".m4a": true,
	}

	DocumentExtensions = map[string]bool{
		".pdf": true, ".doc": true, ".docx": true, ".txt": true,
		".rtf": true, ".odt": true, ".pages": true,
	}

	ArchiveExtensions = map[string]bool{
		".zip": true, ".rar": true, ".7z": true, ".tar": true, ".gz": true,
	}
)

// IsSupportedExtension reports whether ext (lowercased, with leading dot)
// belongs to any supported class.
func IsSupportedExtension(ext string) bool {
	return ImageExtensions[ext] || VideoExtensions[ext] || AudioExtensions[ext] ||
		DocumentExtensions[ext] || ArchiveExtensions[ext]
}

// IsThumbnailable reports whether files with this extension get thumbnails.
// Only images and videos are rendered; the renderer cannot decode RAW
// camera formats, so those index without a preview.
func IsThumbnailable(ext string) bool {
	switch ext {
	case ".raw", ".cr2", ".nef", ".arw":
		return false
	}
	return ImageExtensions[ext] || VideoExtensions[ext]
}
