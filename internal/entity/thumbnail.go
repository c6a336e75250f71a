package entity

const (
	ThumbnailFormatPNG  = "png"
	ThumbnailFormatWebP = "webp"
)

// ThumbnailFormats lists every format the cache can hold for a single source.
var ThumbnailFormats = []string{ThumbnailFormatPNG, ThumbnailFormatWebP}

type Thumbnail struct {
	SourcePath string // Public path of the source document, the cache key
	Format     string
	Path       string // Location of the image inside the cache root
	Cached     bool   // True when served without rendering
}

// ContentType returns the MIME type of an image stored in format.
func ContentType(format string) string {
	switch format {
	case ThumbnailFormatWebP:
		return "image/webp"
	default:
		return "image/png"
	}
}
