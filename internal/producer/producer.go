package producer

import (
	"context"

	"lightbox/internal/thumbcache"
)

// Progress reports one extracted frame during generation.
type Progress struct {
	// Index is the zero-based position of the finished thumbnail.
	Index int
	// Total is the number of thumbnails the request will produce.
	Total int
	// Timestamp is the presentation time of the extracted frame in seconds.
	Timestamp float64
}

// Request describes one video's thumbnail generation.
type Request struct {
	// Path is the source video on the local filesystem.
	Path string
	// Width is the target thumbnail width in pixels; height follows the
	// source aspect ratio.
	Width int
	// Count is the number of thumbnails to sample across the duration.
	Count int
	// OnProgress, when non-nil, receives zero or more progress updates
	// from the producer's goroutine before the terminal completion.
	OnProgress func(Progress)
}

// Completion is the terminal result of a generation request. A nil Err
// means Thumbnails holds the full set in timestamp order.
type Completion struct {
	Thumbnails []thumbcache.Thumbnail
	Err        error
}

// Producer generates thumbnails for a single video. Generate returns
// immediately; the channel delivers exactly one Completion when the work
// finishes or fails. Implementations must honor ctx cancellation by
// completing with the context's error rather than blocking.
type Producer interface {
	Generate(ctx context.Context, req Request) <-chan Completion
}
