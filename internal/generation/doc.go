// Package generation orchestrates thumbnail production for files and
// directory trees: fingerprint, skip or regenerate, produce, persist,
// catalog. Directory walks are depth-first and process one video at a
// time; in-process duplicate requests for the same cache key are
// coalesced through a singleflight group, and cross-process batch
// overlap is excluded with an advisory lock in the cache directory.
package generation
