package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	// Register decoders for every source format the scanner accepts.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Decode decodes any supported image format from memory and returns the image
// together with the detected format name.
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

// Flatten returns an opaque copy of img suitable for JPEG encoding. Images with
// alpha, palettes or grayscale are composited onto a white background; JPEG
// sources (YCbCr) are returned as-is since they are already opaque colour.
func Flatten(img image.Image) image.Image {
	if ycc, ok := img.(*image.YCbCr); ok {
		return ycc
	}

	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Over)
	return dst
}
