// Package inspection flags uploaded safety media that is likely to be explicit.
package inspection

import (
	"bytes"
	"context"
	"image"
	"image/color"

	// Registered decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"campusfix/internal/observability"
	contextutils "campusfix/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// maxSamples bounds the number of pixels examined per image
const maxSamples = 40000

// SkinInspector estimates the share of skin-toned pixels in an image
type SkinInspector struct {
	threshold float64
	maxPixels int64
}

// NewSkinInspector creates an inspector that flags images whose skin ratio reaches threshold.
// Images declaring more than maxPixels pixels are refused before decoding; 0 disables the cap.
func NewSkinInspector(threshold float64, maxPixels int64) *SkinInspector {
	return &SkinInspector{threshold: threshold, maxPixels: maxPixels}
}

// Threshold returns the configured ratio
func (i *SkinInspector) Threshold() float64 { return i.threshold }

// Inspect decodes data and reports whether it looks explicit.
// Undecodable or oversized data returns an INVALID_FORMAT error.
func (i *SkinInspector) Inspect(ctx context.Context, data []byte) (result0 bool, err error) {
	_, span := observability.TraceFunction(ctx, "inspection", "inspect_media", attribute.Int("media.bytes", len(data)))
	defer observability.FinishSpan(span, &err)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return false, contextutils.WrapErrorf(contextutils.ErrInvalidFormat, "cannot decode image header: %v", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return false, contextutils.WrapErrorf(contextutils.ErrInvalidFormat, "image has empty dimensions %dx%d", cfg.Width, cfg.Height)
	}
	pixels := int64(cfg.Width) * int64(cfg.Height)
	span.SetAttributes(attribute.Int64("media.pixels", pixels))
	if i.maxPixels > 0 && pixels > i.maxPixels {
		return false, contextutils.WrapErrorf(contextutils.ErrInvalidFormat, "image is %dx%d, exceeds %d pixel limit", cfg.Width, cfg.Height, i.maxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return false, contextutils.WrapErrorf(contextutils.ErrInvalidFormat, "cannot decode image: %v", err)
	}

	ratio := SkinRatio(img)
	span.SetAttributes(
		attribute.String("media.format", format),
		attribute.Float64("media.skin_ratio", ratio),
	)
	return ratio >= i.threshold, nil
}

// SkinRatio samples the image on an even grid and returns the fraction of skin pixels
func SkinRatio(img image.Image) float64 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return 0
	}

	step := 1
	for (w/step)*(h/step) > maxSamples {
		step++
	}

	var skin, total int
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			total++
			if IsSkin(img.At(x, y)) {
				skin++
			}
		}
	}
	return float64(skin) / float64(total)
}

// IsSkin applies the RGB rule and the YCbCr chroma box; both must agree
func IsSkin(c color.Color) bool {
	r32, g32, b32, a32 := c.RGBA()
	if a32 == 0 {
		return false
	}
	r, g, b := uint8(r32>>8), uint8(g32>>8), uint8(b32>>8)

	if !rgbSkin(int(r), int(g), int(b)) {
		return false
	}
	_, cb, cr := color.RGBToYCbCr(r, g, b)
	return cb >= 77 && cb <= 127 && cr >= 133 && cr <= 173
}

func rgbSkin(r, g, b int) bool {
	maxC := max(r, g, b)
	minC := min(r, g, b)
	return r > 95 && g > 40 && b > 20 &&
		maxC-minC > 15 &&
		abs(r-g) > 15 && r > g && r > b
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
