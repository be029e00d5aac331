// Package remote fetches byte ranges from HTTP sources so videos can be
// fingerprinted without downloading them in full.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "lightbox/dev"
)

var (
	// ErrNotFound indicates the source no longer exists at the URL.
	ErrNotFound = errors.New("remote: source not found")
	// ErrUnsupported indicates remote fetching is disabled by configuration.
	ErrUnsupported = errors.New("remote: fetching disabled")
)

// RangeSource yields a byte range of the resource at url. Implementations
// must honor ctx cancellation and return short reads as short slices, never
// by blocking.
type RangeSource interface {
	FetchRange(ctx context.Context, url string, offset, length int64) ([]byte, error)
}

// Config describes the HTTP range source configuration.
type Config struct {
	Enabled    bool
	Timeout    time.Duration
	UserAgent  string
	HTTPClient *http.Client
}

// HTTPSource fetches ranges with HTTP Range requests.
type HTTPSource struct {
	enabled   bool
	userAgent string
	http      *http.Client
}

// NewHTTPSource creates an HTTPSource from the supplied configuration.
// A disabled source is still constructible; every fetch then reports
// ErrUnsupported so callers can distinguish policy from absence.
func NewHTTPSource(cfg Config) *HTTPSource {
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPSource{
		enabled:   cfg.Enabled,
		userAgent: userAgent,
		http:      client,
	}
}

// FetchRange requests bytes [offset, offset+length) of the resource at url.
// Servers that ignore the Range header have their full response truncated
// to length. A shorter resource yields a shorter slice.
func (s *HTTPSource) FetchRange(ctx context.Context, url string, offset, length int64) ([]byte, error) {
	if s == nil || !s.enabled {
		return nil, ErrUnsupported
	}
	if offset < 0 {
		return nil, fmt.Errorf("remote: negative offset %d", offset)
	}
	if length <= 0 {
		return nil, fmt.Errorf("remote: non-positive length %d", length)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("remote: build range request: %w", err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote: range request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusPartialContent || resp.StatusCode == http.StatusOK:
		data, err := io.ReadAll(io.LimitReader(resp.Body, length))
		if err != nil {
			return nil, fmt.Errorf("remote: read range body: %w", err)
		}
		return data, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, fmt.Errorf("remote: %s: %w", url, ErrNotFound)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("remote: range request failed (%s): %s", resp.Status, strings.TrimSpace(string(body)))
	}
}
