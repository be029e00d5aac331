package fingerprint_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"lightbox/internal/fingerprint"
	"lightbox/internal/remote"
)

func TestFromBytesDeterministic(t *testing.T) {
	input := []byte("the same prefix bytes")
	first := fingerprint.FromBytes(input)
	second := fingerprint.FromBytes(input)
	if first != second {
		t.Fatalf("same input produced different keys: %s vs %s", first, second)
	}
	if len(first) != fingerprint.KeyLength {
		t.Fatalf("key length = %d, want %d", len(first), fingerprint.KeyLength)
	}
	if first.String() != strings.ToLower(first.String()) {
		t.Fatalf("key not lowercase: %s", first)
	}

	other := fingerprint.FromBytes([]byte("different prefix bytes"))
	if other == first {
		t.Fatalf("distinct inputs collided on key %s", first)
	}
}

func TestFromBytesIgnoresBytesPastPrefix(t *testing.T) {
	prefix := bytes.Repeat([]byte{0xAB}, fingerprint.PrefixSize)
	extended := append(append([]byte{}, prefix...), []byte("trailing content")...)

	if fingerprint.FromBytes(prefix) != fingerprint.FromBytes(extended) {
		t.Fatal("bytes past the prefix changed the key")
	}
}

func TestFromFileMatchesFromBytes(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		name string
		size int
	}{
		{"short file", 1234},
		{"exact prefix", fingerprint.PrefixSize},
		{"oversized file", fingerprint.PrefixSize + 4096},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			content := bytes.Repeat([]byte{0x5C}, tc.size)
			for i := range content {
				content[i] = byte(i % 251)
			}
			path := filepath.Join(dir, "video-"+strconv.Itoa(tc.size)+".mp4")
			if err := os.WriteFile(path, content, 0o644); err != nil {
				t.Fatalf("write fixture: %v", err)
			}

			got, err := fingerprint.FromFile(path)
			if err != nil {
				t.Fatalf("FromFile failed: %v", err)
			}
			if want := fingerprint.FromBytes(content); got != want {
				t.Fatalf("FromFile = %s, FromBytes = %s", got, want)
			}
		})
	}
}

func TestFromFileMissingSource(t *testing.T) {
	_, err := fingerprint.FromFile(filepath.Join(t.TempDir(), "absent.mp4"))
	if !errors.Is(err, fingerprint.ErrSourceRead) {
		t.Fatalf("expected ErrSourceRead, got %v", err)
	}
}

func TestFromURLConvergesWithLocal(t *testing.T) {
	content := make([]byte, fingerprint.PrefixSize+512)
	for i := range content {
		content[i] = byte(i * 7 % 256)
	}
	path := filepath.Join(t.TempDir(), "video.mp4")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, path)
	}))
	defer server.Close()

	source := remote.NewHTTPSource(remote.Config{Enabled: true, HTTPClient: server.Client()})

	local, err := fingerprint.FromFile(path)
	if err != nil {
		t.Fatalf("FromFile failed: %v", err)
	}
	viaURL, err := fingerprint.FromURL(context.Background(), source, server.URL)
	if err != nil {
		t.Fatalf("FromURL failed: %v", err)
	}
	if local != viaURL {
		t.Fatalf("local and remote keys diverged: %s vs %s", local, viaURL)
	}
}

func TestFromURLDisabledSource(t *testing.T) {
	source := remote.NewHTTPSource(remote.Config{Enabled: false})
	_, err := fingerprint.FromURL(context.Background(), source, "http://unused.example/video.mp4")
	if !errors.Is(err, fingerprint.ErrSourceRead) {
		t.Fatalf("expected ErrSourceRead, got %v", err)
	}
	if !errors.Is(err, remote.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported cause, got %v", err)
	}
}

func TestParseKey(t *testing.T) {
	valid := fingerprint.FromBytes([]byte("seed"))
	parsed, err := fingerprint.ParseKey(valid.String())
	if err != nil {
		t.Fatalf("ParseKey rejected valid key: %v", err)
	}
	if parsed != valid {
		t.Fatalf("ParseKey = %s, want %s", parsed, valid)
	}

	invalid := []string{
		"",
		"short",
		strings.Repeat("g", fingerprint.KeyLength),
		strings.ToUpper(valid.String()),
		"../" + valid.String()[3:],
	}
	for _, s := range invalid {
		if _, err := fingerprint.ParseKey(s); err == nil {
			t.Fatalf("ParseKey accepted %q", s)
		}
	}
}
