package imaging

import (
	"bytes"
	"image"
	"image/jpeg"
	_ "image/png" // register PNG decoding

	"golang.org/x/image/draw"
)

// Compression tiers. Normal is the default analysis upload; Reduced is used
// after a size-related failure; Thumbnail feeds the history list; Share feeds
// the export attachment.
const (
	NormalMaxWidth = 1024
	NormalQuality  = 80

	ReducedMaxWidth = 800
	ReducedQuality  = 60

	ThumbnailMaxWidth = 200
	ThumbnailQuality  = 60

	ShareMaxWidth = 600
	ShareQuality  = 60
)

// Compress downscales an encoded image so its width does not exceed maxWidth
// (preserving aspect ratio) and re-encodes it as JPEG at the given quality.
// It is best-effort bandwidth reduction, not a guarantee: when the input
// cannot be decoded or re-encoded it is returned unchanged rather than
// failing. No size bound is promised on the output.
func Compress(data []byte, maxWidth, quality int) []byte {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data
	}

	img = downscale(img, maxWidth)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return data
	}
	return buf.Bytes()
}

// IsSupported reports whether data sniffs as a decodable JPEG or PNG.
func IsSupported(data []byte) bool {
	_, _, err := image.DecodeConfig(bytes.NewReader(data))
	return err == nil
}

// downscale resizes the image so its width does not exceed maxWidth.
// Uses high-quality Catmull-Rom interpolation.
// Returns the original image if already within bounds.
func downscale(img image.Image, maxWidth int) image.Image {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	if w <= maxWidth {
		return img
	}

	newW := maxWidth
	newH := h * maxWidth / w
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
