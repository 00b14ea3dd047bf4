// Package imaging re-encodes card images so their base64 form fits the OCR
// service's payload ceiling.
//
// Compression runs a binary search over JPEG quality. When even the minimum
// quality is too large the image is downscaled and the search restarts from a
// lower ceiling, a bounded number of times.
package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
)

const (
	// DefaultMinQuality is the lowest JPEG quality the search will try.
	DefaultMinQuality = 5
	// DefaultMaxQuality is the highest JPEG quality the search will try.
	DefaultMaxQuality = 95
	// DefaultResumeQuality caps the search after a downscale.
	DefaultResumeQuality = 85
	// DefaultScaleFactor shrinks both dimensions on each downscale step.
	DefaultScaleFactor = 0.8
	// DefaultMaxDownscales bounds the number of downscale steps.
	DefaultMaxDownscales = 6
)

// CompressionExhaustedError reports that no quality/scale combination met the
// size ceiling. FinalSizeBytes is the base64 size of the smallest attempt.
type CompressionExhaustedError struct {
	TargetBytes    int
	FinalSizeBytes int
	Attempts       int
}

func (e *CompressionExhaustedError) Error() string {
	return fmt.Sprintf("compression exhausted after %d encodes: smallest payload %d bytes exceeds limit %d bytes",
		e.Attempts, e.FinalSizeBytes, e.TargetBytes)
}

// EncodedLen returns the base64 length of n raw bytes.
func EncodedLen(n int) int {
	return base64.StdEncoding.EncodedLen(n)
}

// RawBudget returns the largest raw byte count whose base64 form fits in
// maxEncoded bytes.
func RawBudget(maxEncoded int) int {
	if maxEncoded <= 0 {
		return 0
	}
	return maxEncoded / 4 * 3
}

// Result describes a compression run.
type Result struct {
	Data       []byte
	Quality    int
	Width      int
	Height     int
	Encodes    int
	Downscales int
}

// EncodedSize returns the base64 size of Data.
func (r *Result) EncodedSize() int { return EncodedLen(len(r.Data)) }

// Compressor searches for the highest JPEG quality that fits a size ceiling.
type Compressor struct {
	MinQuality    int
	MaxQuality    int
	ResumeQuality int
	ScaleFactor   float64
	MaxDownscales int
}

// NewCompressor returns a Compressor with the default search bounds.
func NewCompressor() *Compressor {
	return &Compressor{
		MinQuality:    DefaultMinQuality,
		MaxQuality:    DefaultMaxQuality,
		ResumeQuality: DefaultResumeQuality,
		ScaleFactor:   DefaultScaleFactor,
		MaxDownscales: DefaultMaxDownscales,
	}
}

// Compress returns a JPEG re-encoding of raw whose base64 size is at most
// maxEncoded bytes. Input that already fits is returned unchanged as a copy.
// raw itself is never modified.
func (c *Compressor) Compress(raw []byte, maxEncoded int) (*Result, error) {
	budget := RawBudget(maxEncoded)
	if len(raw) <= budget {
		return &Result{Data: append([]byte(nil), raw...)}, nil
	}

	src, format, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	img := Flatten(src)

	log.Info().
		Str("format", format).
		Int("size_bytes", EncodedLen(len(raw))).
		Int("limit_bytes", maxEncoded).
		Msg("Starting binary search compression")

	encodes := 0
	smallest := -1
	hi := c.MaxQuality
	for step := 0; ; step++ {
		best, quality, n, minSize, err := c.search(img, budget, hi)
		encodes += n
		if err != nil {
			return nil, err
		}
		if smallest < 0 || minSize < smallest {
			smallest = minSize
		}

		if best != nil {
			b := img.Bounds()
			log.Info().
				Int("quality", quality).
				Int("encodes", encodes).
				Int("downscales", step).
				Int("size_bytes", EncodedLen(len(best))).
				Msg("Compression successful")
			return &Result{
				Data:       best,
				Quality:    quality,
				Width:      b.Dx(),
				Height:     b.Dy(),
				Encodes:    encodes,
				Downscales: step,
			}, nil
		}

		if step >= c.MaxDownscales {
			break
		}
		next, ok := c.downscale(img)
		if !ok {
			break
		}
		log.Warn().
			Int("width", next.Bounds().Dx()).
			Int("height", next.Bounds().Dy()).
			Msg("Minimum quality still too large, downscaling")
		img = next
		hi = c.ResumeQuality
	}

	return nil, &CompressionExhaustedError{
		TargetBytes:    maxEncoded,
		FinalSizeBytes: EncodedLen(smallest),
		Attempts:       encodes,
	}
}

// search binary-searches quality in [MinQuality, hi]. It returns the best
// encoding within budget (nil if none), its quality, the number of encodes and
// the smallest raw size seen.
func (c *Compressor) search(img image.Image, budget, hi int) ([]byte, int, int, int, error) {
	lo := c.MinQuality
	var (
		best        []byte
		bestQuality int
		encodes     int
		smallest    = -1
	)

	for lo <= hi {
		q := (lo + hi) / 2
		data, err := encodeJPEG(img, q)
		if err != nil {
			return nil, 0, encodes, smallest, err
		}
		encodes++
		if smallest < 0 || len(data) < smallest {
			smallest = len(data)
		}

		log.Debug().
			Int("attempt", encodes).
			Int("quality", q).
			Int("size_bytes", EncodedLen(len(data))).
			Msg("Compression attempt")

		if len(data) <= budget {
			best, bestQuality = data, q
			lo = q + 1
		} else {
			hi = q - 1
		}
	}
	return best, bestQuality, encodes, smallest, nil
}

// downscale shrinks img by ScaleFactor. It reports false once the image
// cannot get any smaller.
func (c *Compressor) downscale(img image.Image) (image.Image, bool) {
	b := img.Bounds()
	w := int(float64(b.Dx()) * c.ScaleFactor)
	h := int(float64(b.Dy()) * c.ScaleFactor)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	if w == b.Dx() && h == b.Dy() {
		return nil, false
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst, true
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG at quality %d: %w", quality, err)
	}
	return buf.Bytes(), nil
}
