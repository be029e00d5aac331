package remote_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lightbox/internal/remote"
)

func newEnabledSource(client *http.Client) *remote.HTTPSource {
	return remote.NewHTTPSource(remote.Config{
		Enabled:    true,
		Timeout:    5 * time.Second,
		HTTPClient: client,
	})
}

func TestFetchRangeHonorsRangeHeader(t *testing.T) {
	payload := []byte("0123456789abcdef")
	var gotRange string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRange = r.Header.Get("Range")
		w.Header().Set("Content-Range", "bytes 4-7/16")
		w.WriteHeader(http.StatusPartialContent)
		w.Write(payload[4:8])
	}))
	defer server.Close()

	source := newEnabledSource(server.Client())
	data, err := source.FetchRange(context.Background(), server.URL, 4, 4)
	if err != nil {
		t.Fatalf("FetchRange failed: %v", err)
	}
	if string(data) != "4567" {
		t.Fatalf("unexpected payload: %q", data)
	}
	if gotRange != "bytes=4-7" {
		t.Fatalf("unexpected Range header: %q", gotRange)
	}
}

func TestFetchRangeTruncatesFullResponses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Ignore the Range header entirely.
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer server.Close()

	source := newEnabledSource(server.Client())
	data, err := source.FetchRange(context.Background(), server.URL, 0, 10)
	if err != nil {
		t.Fatalf("FetchRange failed: %v", err)
	}
	if len(data) != 10 {
		t.Fatalf("expected truncation to 10 bytes, got %d", len(data))
	}
}

func TestFetchRangeShortResource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte("tiny"))
	}))
	defer server.Close()

	source := newEnabledSource(server.Client())
	data, err := source.FetchRange(context.Background(), server.URL, 0, 1024)
	if err != nil {
		t.Fatalf("FetchRange failed: %v", err)
	}
	if string(data) != "tiny" {
		t.Fatalf("unexpected payload: %q", data)
	}
}

func TestFetchRangeNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	source := newEnabledSource(server.Client())
	_, err := source.FetchRange(context.Background(), server.URL, 0, 16)
	if !errors.Is(err, remote.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFetchRangeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	source := newEnabledSource(server.Client())
	_, err := source.FetchRange(context.Background(), server.URL, 0, 16)
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	if errors.Is(err, remote.ErrNotFound) {
		t.Fatalf("500 must not map to ErrNotFound: %v", err)
	}
	if !strings.Contains(err.Error(), "500") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

func TestFetchRangeDisabled(t *testing.T) {
	source := remote.NewHTTPSource(remote.Config{Enabled: false})
	_, err := source.FetchRange(context.Background(), "http://unused.example", 0, 16)
	if !errors.Is(err, remote.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestFetchRangeRejectsBadArguments(t *testing.T) {
	source := remote.NewHTTPSource(remote.Config{Enabled: true})
	if _, err := source.FetchRange(context.Background(), "http://unused.example", -1, 16); err == nil {
		t.Fatal("expected error for negative offset")
	}
	if _, err := source.FetchRange(context.Background(), "http://unused.example", 0, 0); err == nil {
		t.Fatal("expected error for zero length")
	}
}
