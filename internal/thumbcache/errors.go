package thumbcache

import "errors"

var (
	// ErrCreate indicates a record file could not be created or committed.
	ErrCreate = errors.New("thumbcache: create record failed")
	// ErrOpen indicates a record file is absent or unreadable.
	ErrOpen = errors.New("thumbcache: open record failed")
	// ErrMetadata indicates source file attributes are unavailable.
	ErrMetadata = errors.New("thumbcache: source metadata unavailable")
	// ErrEncode indicates a thumbnail image could not be re-encoded.
	ErrEncode = errors.New("thumbcache: encode thumbnail failed")
	// ErrCorrupt indicates a structural violation in a stored record. The
	// offending record is deleted before this error is returned.
	ErrCorrupt = errors.New("thumbcache: corrupt record")
)
