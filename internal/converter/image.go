package converter

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
)

const (
	defaultJPEGQuality = 85
	defaultMaxPixels   = 100 * 1000 * 1000 // 100 megapixels
)

// ImageOptimizer shrinks raster images wider than MaxWidth. Output keeps the
// input's format so an asset's extension matches its bytes.
type ImageOptimizer struct {
	MaxWidth    int
	JPEGQuality int
	MaxPixels   int // decode limit on width * height
}

// OptimizedImage is the result of Optimize. Warning explains why Data is
// the untouched input.
type OptimizedImage struct {
	Data    []byte
	Width   int
	Height  int
	Format  string
	Resized bool
	Warning string
}

// NewImageOptimizer returns nil when opts disable downscaling.
func NewImageOptimizer(opts ConvertOptions) *ImageOptimizer {
	if opts.MaxImageWidth <= 0 {
		return nil
	}
	quality := opts.JPEGQuality
	switch {
	case quality <= 0:
		quality = defaultJPEGQuality
	case quality > 100:
		quality = 100
	}
	return &ImageOptimizer{
		MaxWidth:    opts.MaxImageWidth,
		JPEGQuality: quality,
		MaxPixels:   defaultMaxPixels,
	}
}

// rasterFormats are the formats Optimize re-encodes.
var rasterFormats = map[string]imaging.Format{
	"image/jpeg": imaging.JPEG,
	"image/jpg":  imaging.JPEG,
	"image/png":  imaging.PNG,
}

// Optimize downscales JPEG and PNG data to MaxWidth. Other formats, data
// that fails to decode and images already narrow enough come back as-is
// with a Warning where relevant. Only encoding errors are returned.
func (o *ImageOptimizer) Optimize(path, mediaType string, input []byte) (OptimizedImage, error) {
	mediaType = strings.ToLower(mediaType)
	out := OptimizedImage{Data: input, Format: shortFormat(mediaType)}

	format, ok := rasterFormats[mediaType]
	if !ok {
		out.Warning = fmt.Sprintf("%s: format %q is not resized", path, mediaType)
		return out, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(input))
	if err != nil {
		out.Warning = fmt.Sprintf("%s: decode failed: %v", path, err)
		return out, nil
	}
	out.Width, out.Height = cfg.Width, cfg.Height
	if cfg.Width <= o.MaxWidth {
		return out, nil
	}
	if pixels := cfg.Width * cfg.Height; o.MaxPixels > 0 && pixels > o.MaxPixels {
		out.Warning = fmt.Sprintf("%s: %dx%d exceeds the %d pixel decode limit", path, cfg.Width, cfg.Height, o.MaxPixels)
		return out, nil
	}

	src, err := imaging.Decode(bytes.NewReader(input))
	if err != nil {
		out.Warning = fmt.Sprintf("%s: decode failed: %v", path, err)
		return out, nil
	}
	resized := imaging.Resize(src, o.MaxWidth, 0, imaging.Lanczos)

	var buf bytes.Buffer
	err = imaging.Encode(&buf, resized, format,
		imaging.JPEGQuality(o.JPEGQuality),
		imaging.PNGCompressionLevel(png.BestCompression))
	if err != nil {
		return out, fmt.Errorf("%s: %s encode failed: %w", path, out.Format, err)
	}

	out.Data = buf.Bytes()
	out.Width, out.Height = resized.Bounds().Dx(), resized.Bounds().Dy()
	out.Resized = true
	return out, nil
}

// shortFormat names a media type the way image.DecodeConfig reports it.
func shortFormat(mediaType string) string {
	switch mediaType {
	case "image/jpeg", "image/jpg":
		return "jpeg"
	case "image/svg+xml":
		return "svg"
	}
	return strings.TrimPrefix(mediaType, "image/")
}
