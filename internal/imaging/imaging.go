// Package imaging wraps the standard library image codecs behind the
// small encode/decode surface the record codec and frame producer share.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
)

// EncodeJPEG encodes img as JPEG at the given quality (1-100).
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if img == nil {
		return nil, errors.New("imaging: nil image")
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("imaging: invalid dimensions %dx%d", bounds.Dx(), bounds.Dy())
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("imaging: encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses an encoded image payload. JPEG is the only format the
// cache writes, but decoding goes through the registry so any format
// imported elsewhere in the binary also works.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, errors.New("imaging: empty payload")
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("imaging: decode: %w", err)
	}
	return img, nil
}
