package imaging_test

import (
	"image"
	"image/color"
	"testing"

	"lightbox/internal/imaging"
)

func solidImage(w, h int, c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	src := solidImage(64, 36, color.RGBA{R: 200, G: 40, B: 40, A: 255})

	data, err := imaging.EncodeJPEG(src, 75)
	if err != nil {
		t.Fatalf("EncodeJPEG failed: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty payload")
	}

	decoded, err := imaging.Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got, want := decoded.Bounds(), src.Bounds(); got != want {
		t.Fatalf("bounds = %v, want %v", got, want)
	}

	// JPEG is lossy; the dominant channel must survive within tolerance.
	r, g, b, _ := decoded.At(32, 18).RGBA()
	if r>>8 < 170 {
		t.Fatalf("red channel lost in round trip: %d", r>>8)
	}
	if g>>8 > 80 || b>>8 > 80 {
		t.Fatalf("unexpected channel bleed: g=%d b=%d", g>>8, b>>8)
	}
}

func TestEncodeRejectsNilAndEmpty(t *testing.T) {
	if _, err := imaging.EncodeJPEG(nil, 75); err == nil {
		t.Fatal("expected error for nil image")
	}
	empty := image.NewRGBA(image.Rect(0, 0, 0, 0))
	if _, err := imaging.EncodeJPEG(empty, 75); err == nil {
		t.Fatal("expected error for zero-size image")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := imaging.Decode(nil); err == nil {
		t.Fatal("expected error for empty payload")
	}
	if _, err := imaging.Decode([]byte("not an image")); err == nil {
		t.Fatal("expected error for garbage payload")
	}
}
