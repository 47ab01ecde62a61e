package imagegen

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"

	"diffusionto/diffusion"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ImageInfo describes decoded image data.
type ImageInfo struct {
	Format    string // "png", "jpeg", "gif", "webp" or "bmp"
	Width     int
	Height    int
	Extension string // ".png", ".jpg", ...
	MediaType string // "image/png", ...
}

// Inspect sniffs the format and dimensions of data without decoding pixels.
// Data that is not a supported image yields a diffusion.ErrDecode error.
func Inspect(data []byte) (ImageInfo, error) {
	if len(data) == 0 {
		return ImageInfo{}, fmt.Errorf("%w: image data is empty", diffusion.ErrDecode)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ImageInfo{}, fmt.Errorf("%w: unrecognized image data: %w", diffusion.ErrDecode, err)
	}

	return ImageInfo{
		Format:    format,
		Width:     cfg.Width,
		Height:    cfg.Height,
		Extension: extensionForFormat(format),
		MediaType: mediaTypeForFormat(format),
	}, nil
}

// WriteThumbnail decodes data and writes a PNG scaled so that its longer side
// is maxSide pixels. Images already within maxSide are written at their
// original size.
func WriteThumbnail(w io.Writer, data []byte, maxSide int) error {
	if maxSide <= 0 {
		return fmt.Errorf("imagegen: thumbnail size must be positive, got %d", maxSide)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: decode image: %w", diffusion.ErrDecode, err)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	longest := max(width, height)
	if longest > maxSide {
		scale := float64(maxSide) / float64(longest)
		width = max(1, int(float64(width)*scale))
		height = max(1, int(float64(height)*scale))
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	if err := png.Encode(w, dst); err != nil {
		return fmt.Errorf("imagegen: encode thumbnail: %w", err)
	}
	return nil
}
