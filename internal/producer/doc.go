// Package producer generates thumbnail sets by decoding frames from source
// videos.
//
// It exposes a Producer interface whose Generate call is asynchronous at the
// boundary: the caller receives a channel that delivers exactly one terminal
// Completion, with optional Progress callbacks along the way. The FFmpeg
// implementation probes the source duration with ffprobe, samples evenly
// spaced midpoint timestamps across it, and extracts one scaled frame per
// timestamp. Tests can swap in fakes to exercise orchestration behaviour
// without executing the real tools.
package producer
