package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"testing"
)

// noiseImage returns a deterministic high-entropy image that compresses poorly.
func noiseImage(w, h int) *image.RGBA {
	rng := rand.New(rand.NewSource(42))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = byte(rng.Intn(256))
	}
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestRawBudget(t *testing.T) {
	tests := []struct {
		maxEncoded int
		want       int
	}{
		{0, 0},
		{4, 3},
		{7, 3},
		{8, 6},
		{10 * 1024 * 1024, 7864320},
	}
	for _, tt := range tests {
		if got := RawBudget(tt.maxEncoded); got != tt.want {
			t.Errorf("RawBudget(%d) = %d, want %d", tt.maxEncoded, got, tt.want)
		}
		if got := EncodedLen(RawBudget(tt.maxEncoded)); got > tt.maxEncoded {
			t.Errorf("EncodedLen(RawBudget(%d)) = %d exceeds limit", tt.maxEncoded, got)
		}
	}
}

func TestCompressUnderBudgetReturnsInput(t *testing.T) {
	raw := encodePNG(t, noiseImage(16, 16))
	original := append([]byte(nil), raw...)

	res, err := NewCompressor().Compress(raw, EncodedLen(len(raw)))
	if err != nil {
		t.Fatalf("Compress error: %v", err)
	}
	if !bytes.Equal(res.Data, raw) {
		t.Error("under-budget input was re-encoded")
	}
	if res.Encodes != 0 || res.Downscales != 0 {
		t.Errorf("Encodes=%d Downscales=%d, want 0/0", res.Encodes, res.Downscales)
	}
	if !bytes.Equal(raw, original) {
		t.Error("caller bytes were modified")
	}
}

func TestCompressMeetsTarget(t *testing.T) {
	raw := encodePNG(t, noiseImage(320, 240))
	original := append([]byte(nil), raw...)
	target := EncodedLen(len(raw)) / 4

	res, err := NewCompressor().Compress(raw, target)
	if err != nil {
		t.Fatalf("Compress error: %v", err)
	}
	if res.EncodedSize() > target {
		t.Errorf("encoded size %d exceeds target %d", res.EncodedSize(), target)
	}
	if res.Downscales == 0 && res.Encodes > 7 {
		t.Errorf("quality search used %d encodes, want <= 7", res.Encodes)
	}
	if _, err := jpeg.Decode(bytes.NewReader(res.Data)); err != nil {
		t.Errorf("result is not a valid JPEG: %v", err)
	}
	if !bytes.Equal(raw, original) {
		t.Error("caller bytes were modified")
	}
}

func TestCompressNeverExceedsTarget(t *testing.T) {
	raw := encodePNG(t, noiseImage(200, 150))
	full := EncodedLen(len(raw))

	for _, target := range []int{full / 2, full / 8, full / 32, full / 128, 64} {
		res, err := NewCompressor().Compress(raw, target)
		if err != nil {
			var exhausted *CompressionExhaustedError
			if !errors.As(err, &exhausted) {
				t.Errorf("target %d: unexpected error %v", target, err)
			}
			continue
		}
		if res.EncodedSize() > target {
			t.Errorf("target %d: encoded size %d exceeds target", target, res.EncodedSize())
		}
	}
}

func TestCompressExhausted(t *testing.T) {
	raw := encodePNG(t, noiseImage(200, 200))

	c := NewCompressor()
	c.MaxDownscales = 2
	_, err := c.Compress(raw, 64)

	var exhausted *CompressionExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected CompressionExhaustedError, got %v", err)
	}
	if exhausted.FinalSizeBytes <= 64 {
		t.Errorf("FinalSizeBytes = %d, want > 64", exhausted.FinalSizeBytes)
	}
	if exhausted.Attempts == 0 {
		t.Error("expected at least one encode attempt")
	}
}

func TestCompressDownscales(t *testing.T) {
	raw := encodePNG(t, noiseImage(400, 400))

	// Size of the minimum-quality encode at full resolution; anything below it
	// forces the downscale path.
	floor, err := encodeJPEG(Flatten(noiseImage(400, 400)), DefaultMinQuality)
	if err != nil {
		t.Fatalf("encodeJPEG: %v", err)
	}
	target := EncodedLen(len(floor)) * 3 / 4

	res, err := NewCompressor().Compress(raw, target)
	if err != nil {
		t.Fatalf("Compress error: %v", err)
	}
	if res.Downscales == 0 {
		t.Error("expected at least one downscale")
	}
	if res.Width >= 400 || res.Height >= 400 {
		t.Errorf("result is %dx%d, want smaller than 400x400", res.Width, res.Height)
	}
	if res.EncodedSize() > target {
		t.Errorf("encoded size %d exceeds target %d", res.EncodedSize(), target)
	}
}

func TestFlattenCompositesOntoWhite(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	src.Set(1, 1, color.NRGBA{R: 255, A: 255})

	flat := Flatten(src)
	r, g, b, a := flat.At(0, 0).RGBA()
	if r != 0xffff || g != 0xffff || b != 0xffff || a != 0xffff {
		t.Errorf("transparent pixel = (%x,%x,%x,%x), want opaque white", r, g, b, a)
	}
	r, g, b, _ = flat.At(1, 1).RGBA()
	if r != 0xffff || g != 0 || b != 0 {
		t.Errorf("opaque red pixel = (%x,%x,%x), want red", r, g, b)
	}
}

func TestFlattenPalettedAndGray(t *testing.T) {
	pal := image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{color.Transparent, color.Black})
	pal.SetColorIndex(1, 1, 1)

	flat := Flatten(pal)
	if r, _, _, _ := flat.At(0, 0).RGBA(); r != 0xffff {
		t.Errorf("transparent palette entry = %x, want white", r)
	}
	if r, _, _, _ := flat.At(1, 1).RGBA(); r != 0 {
		t.Errorf("black palette entry = %x, want black", r)
	}

	gray := image.NewGray(image.Rect(0, 0, 2, 2))
	if _, ok := Flatten(gray).(*image.RGBA); !ok {
		t.Error("grayscale image was not converted to RGBA")
	}
}

func TestCompressTransparentPNG(t *testing.T) {
	// Left half is fully transparent but carries noisy colour values, which
	// must not leak into the JPEG.
	noise := noiseImage(128, 128)
	src := image.NewNRGBA(noise.Bounds())
	copy(src.Pix, noise.Pix)
	for y := 0; y < 128; y++ {
		for x := 0; x < 64; x++ {
			src.Pix[src.PixOffset(x, y)+3] = 0
		}
	}
	raw := encodePNG(t, src)

	res, err := NewCompressor().Compress(raw, EncodedLen(len(raw))/2)
	if err != nil {
		t.Fatalf("Compress error: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(res.Data))
	if err != nil {
		t.Fatalf("jpeg.Decode: %v", err)
	}
	r, g, b, _ := img.At(16, 64).RGBA()
	if r < 0xf000 || g < 0xf000 || b < 0xf000 {
		t.Errorf("transparent region pixel = (%x,%x,%x), want near white", r, g, b)
	}
}

func TestCompressRejectsGarbage(t *testing.T) {
	_, err := NewCompressor().Compress(bytes.Repeat([]byte{0x42}, 1024), 100)
	if err == nil {
		t.Fatal("expected decode error")
	}
	var exhausted *CompressionExhaustedError
	if errors.As(err, &exhausted) {
		t.Error("decode failure reported as exhaustion")
	}
}
