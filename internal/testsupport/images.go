package testsupport

import (
	"image"
	"image/color"

	"lightbox/internal/thumbcache"
)

// SolidImage returns a width×height image filled with one color.
func SolidImage(width, height int, c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// SolidThumbs builds one thumbnail per timestamp, each a distinct solid
// color so round-trip tests can tell them apart after lossy re-encoding.
func SolidThumbs(timestamps ...float64) []thumbcache.Thumbnail {
	palette := []color.RGBA{
		{R: 220, G: 30, B: 30, A: 255},
		{R: 30, G: 220, B: 30, A: 255},
		{R: 30, G: 30, B: 220, A: 255},
		{R: 220, G: 220, B: 30, A: 255},
		{R: 30, G: 220, B: 220, A: 255},
		{R: 220, G: 30, B: 220, A: 255},
	}
	thumbs := make([]thumbcache.Thumbnail, 0, len(timestamps))
	for i, ts := range timestamps {
		thumbs = append(thumbs, thumbcache.Thumbnail{
			RealTime: ts,
			Image:    SolidImage(32, 24, palette[i%len(palette)]),
		})
	}
	return thumbs
}
