// Package catalog maintains an advisory SQLite ledger mapping cache keys
// back to the videos they were generated from.
//
// Cache keys are one-way content hashes, so the cache directory alone cannot
// answer "which videos are cached". The catalog records the source path,
// source attributes, and record statistics for each successful generation so
// `lightbox ls` can present a readable listing.
//
// The cache directory, never the catalog, is the source of truth. Engine
// correctness does not depend on catalog contents: a missing or stale row
// only degrades the listing, and Reconcile drops rows whose record no longer
// exists on disk.
package catalog
