// Package thumbcache persists per-video thumbnail sets as single record
// files keyed by content fingerprint.
//
// A record holds a fixed header (format version plus the source's size and
// modification time at caching time) followed by zero or more blocks, one
// per thumbnail, each carrying its presentation timestamp and a JPEG
// payload. All integers and the timestamp float are little-endian. A record
// is wholly valid or treated as corrupt in full: any structural violation
// discovered during a read deletes the record so the next access
// regenerates it instead of hitting a permanently poisoned file.
//
// Writes go through a uniquely named temp file and an atomic rename, so a
// half-written record is never visible under its final key. Space
// accounting and eviction belong to the injected Quota collaborator; a
// zero byte budget disables caching and turns writes into silent no-ops.
//
// The store performs no internal concurrency. Distinct keys never conflict.
// Two processes writing the same key concurrently remain possible; the
// rename makes that race benign because either complete record wins.
package thumbcache
