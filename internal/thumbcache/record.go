package thumbcache

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"lightbox/internal/imaging"
)

// Record layout, all integers and the timestamp float little-endian:
//
//	offset 0:  version            u8
//	offset 1:  sourceFileSize     u64
//	offset 9:  sourceModifiedTime i64  (Unix seconds)
//	offset 17: blocks, each:
//	    blockLength i64  (= 8 + image byte count)
//	    timestamp   f64  (presentation seconds, IEEE 754 bits)
//	    imageBytes  [blockLength - 8]
//
// Version 1 was written in host byte order; those records are rejected as
// corrupt rather than migrated.
const (
	formatVersion   = 2
	headerSize      = 1 + 8 + 8
	blockHeaderSize = 8 + 8

	// jpegQuality is the fixed lossy quality thumbnails are stored at.
	jpegQuality = 75
)

func encodeHeader(meta SourceMeta) []byte {
	buf := make([]byte, headerSize)
	buf[0] = formatVersion
	binary.LittleEndian.PutUint64(buf[1:9], uint64(meta.Size))
	binary.LittleEndian.PutUint64(buf[9:17], uint64(meta.ModTime.Unix()))
	return buf
}

func parseHeader(buf []byte) (SourceMeta, error) {
	if len(buf) != headerSize {
		return SourceMeta{}, fmt.Errorf("header is %d bytes, want %d", len(buf), headerSize)
	}
	if buf[0] != formatVersion {
		return SourceMeta{}, fmt.Errorf("unsupported record version %d", buf[0])
	}
	return SourceMeta{
		Size:    int64(binary.LittleEndian.Uint64(buf[1:9])),
		ModTime: time.Unix(int64(binary.LittleEndian.Uint64(buf[9:17])), 0),
	}, nil
}

func encodeBlock(thumb Thumbnail) ([]byte, error) {
	payload, err := imaging.EncodeJPEG(thumb.Image, jpegQuality)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, blockHeaderSize+len(payload))
	binary.LittleEndian.PutUint64(buf[0:8], uint64(8+len(payload)))
	binary.LittleEndian.PutUint64(buf[8:16], math.Float64bits(thumb.RealTime))
	copy(buf[blockHeaderSize:], payload)
	return buf, nil
}

// readBlock decodes the next block from r. remaining bounds the block
// against the bytes left in the file so a corrupt length can neither
// over-allocate nor read past EOF. Returns io.EOF when r is exhausted
// exactly at a block boundary; any other failure is a structural
// violation the caller must treat as corruption.
func readBlock(r io.Reader, remaining int64) (Thumbnail, int64, error) {
	var header [blockHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return Thumbnail{}, 0, io.EOF
		}
		return Thumbnail{}, 0, fmt.Errorf("block header: %w", err)
	}

	blockLength := int64(binary.LittleEndian.Uint64(header[0:8]))
	timestamp := math.Float64frombits(binary.LittleEndian.Uint64(header[8:16]))

	payloadLength := blockLength - 8
	if payloadLength <= 0 {
		return Thumbnail{}, 0, fmt.Errorf("block length %d leaves no image payload", blockLength)
	}
	if payloadLength > remaining-blockHeaderSize {
		return Thumbnail{}, 0, fmt.Errorf("block payload %d bytes exceeds %d remaining", payloadLength, remaining-blockHeaderSize)
	}

	payload := make([]byte, payloadLength)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Thumbnail{}, 0, fmt.Errorf("block payload: %w", err)
	}

	img, err := imaging.Decode(payload)
	if err != nil {
		return Thumbnail{}, 0, fmt.Errorf("block image: %w", err)
	}

	return Thumbnail{RealTime: timestamp, Image: img}, blockHeaderSize + payloadLength, nil
}
