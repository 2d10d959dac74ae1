package domain

import "fmt"

// Location photos are shown on widget cards only, so a single scaled JPEG is
// kept per location.
const (
	MaxImageSize         = 10 << 20
	ThumbnailMaxWidth    = 400
	ThumbnailMaxHeight   = 400
	ThumbnailJPEGQuality = 85
)

// decodableImageTypes are the sniffed content types the thumbnailer reads.
var decodableImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// IsValidImageContentType reports whether a sniffed type can be thumbnailed.
func IsValidImageContentType(contentType string) bool {
	return decodableImageTypes[contentType]
}

// ValidateImageSize rejects empty uploads and uploads over MaxImageSize.
func ValidateImageSize(size int64) error {
	const op = "image.validate"
	switch {
	case size <= 0:
		return Invalid(op, "Image file is empty")
	case size > MaxImageSize:
		return TooLarge(op, fmt.Sprintf("Image is %.1f MB; the limit is %d MB", float64(size)/(1<<20), MaxImageSize>>20))
	}
	return nil
}
