// Package fingerprint derives stable cache keys from video content.
//
// A key is the MD5 digest of the video's first megabyte, rendered as 32
// lowercase hex characters. The digest is content addressing, not
// authentication: identical prefixes always converge on the same key
// whether the bytes arrive from a local file or an HTTP range request,
// and the hex encoding guarantees a key can never carry path separators.
package fingerprint

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"lightbox/internal/remote"
)

// PrefixSize is the number of leading source bytes a key is derived from.
const PrefixSize = 1_000_000

// KeyLength is the length of a rendered key in hex characters.
const KeyLength = md5.Size * 2

// ErrSourceRead indicates the source bytes could not be read for hashing.
// There is no retry and no fallback; the caller owns recovery.
var ErrSourceRead = errors.New("fingerprint: source read failed")

// Key identifies one video's cached record. Used directly as the record
// filename inside the cache directory.
type Key string

func (k Key) String() string { return string(k) }

// ParseKey validates an untrusted key string, typically CLI input, so a
// malformed key can never reach the filesystem layer.
func ParseKey(s string) (Key, error) {
	if len(s) != KeyLength {
		return "", fmt.Errorf("fingerprint: key must be %d hex chars, got %d", KeyLength, len(s))
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		default:
			return "", fmt.Errorf("fingerprint: key contains invalid character %q", r)
		}
	}
	return Key(s), nil
}

// FromBytes hashes a byte prefix into a key. Input beyond PrefixSize is
// ignored so every derivation path agrees on the same digest input.
func FromBytes(b []byte) Key {
	if len(b) > PrefixSize {
		b = b[:PrefixSize]
	}
	sum := md5.Sum(b)
	return Key(hex.EncodeToString(sum[:]))
}

// FromFile derives the key for a local video. Files shorter than
// PrefixSize hash their full contents.
func FromFile(path string) (Key, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %w", ErrSourceRead, path, err)
	}
	defer file.Close()

	hasher := md5.New()
	if _, err := io.Copy(hasher, io.LimitReader(file, PrefixSize)); err != nil {
		return "", fmt.Errorf("%w: read %s: %w", ErrSourceRead, path, err)
	}
	return Key(hex.EncodeToString(hasher.Sum(nil))), nil
}

// FromURL derives the key for a remote video by fetching the same byte
// range FromFile reads locally.
func FromURL(ctx context.Context, src remote.RangeSource, url string) (Key, error) {
	if src == nil {
		return "", fmt.Errorf("%w: no range source configured", ErrSourceRead)
	}
	prefix, err := src.FetchRange(ctx, url, 0, PrefixSize)
	if err != nil {
		return "", fmt.Errorf("%w: fetch %s: %w", ErrSourceRead, url, err)
	}
	return FromBytes(prefix), nil
}
