package service

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/DukeRupert/storefinder/internal/domain"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// Thumbnail is a card-sized JPEG and the dimensions of its source.
type Thumbnail struct {
	JPEG         []byte
	SourceWidth  int
	SourceHeight int
}

// ThumbnailProcessor scales a photo to fit the widget card.
type ThumbnailProcessor interface {
	Thumbnail(src io.Reader, maxWidth, maxHeight int) (Thumbnail, error)
}

type imagingProcessor struct{}

// NewImagingProcessor decodes JPEG, PNG and WebP with the standard decoders
// and scales with imaging's Lanczos filter.
func NewImagingProcessor() ThumbnailProcessor {
	return imagingProcessor{}
}

func (imagingProcessor) Thumbnail(src io.Reader, maxWidth, maxHeight int) (Thumbnail, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return Thumbnail{}, fmt.Errorf("decode image: %w", err)
	}

	// Fit never enlarges a small photo
	scaled := imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, scaled, imaging.JPEG, imaging.JPEGQuality(domain.ThumbnailJPEGQuality)); err != nil {
		return Thumbnail{}, fmt.Errorf("encode thumbnail: %w", err)
	}
	return Thumbnail{
		JPEG:         buf.Bytes(),
		SourceWidth:  img.Bounds().Dx(),
		SourceHeight: img.Bounds().Dy(),
	}, nil
}
