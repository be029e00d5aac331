package generation_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"lightbox/internal/config"
	"lightbox/internal/fingerprint"
	"lightbox/internal/generation"
	"lightbox/internal/producer"
	"lightbox/internal/quota"
	"lightbox/internal/testsupport"
	"lightbox/internal/thumbcache"
)

// fakeProducer completes every request with two solid thumbnails. A
// release channel holds generations open; a started channel announces
// each producer run as it begins.
type fakeProducer struct {
	mu       sync.Mutex
	calls    []string
	failPath string
	release  chan struct{}
	started  chan string
}

func (p *fakeProducer) Generate(ctx context.Context, req producer.Request) <-chan producer.Completion {
	done := make(chan producer.Completion, 1)
	go func() {
		if p.started != nil {
			p.started <- req.Path
		}
		if p.release != nil {
			select {
			case <-p.release:
			case <-ctx.Done():
				done <- producer.Completion{Err: ctx.Err()}
				return
			}
		}
		p.mu.Lock()
		p.calls = append(p.calls, req.Path)
		p.mu.Unlock()
		if p.failPath != "" && req.Path == p.failPath {
			done <- producer.Completion{Err: errors.New("synthetic producer failure")}
			return
		}
		if req.OnProgress != nil {
			req.OnProgress(producer.Progress{Index: 0, Total: req.Count, Timestamp: 1.5})
		}
		done <- producer.Completion{Thumbnails: testsupport.SolidThumbs(1.5, 4.5)}
	}()
	return done
}

func (p *fakeProducer) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func newGenerator(t *testing.T, cfg *config.Config, prod producer.Producer, opts ...generation.Option) (*generation.Generator, *thumbcache.Store) {
	t.Helper()
	store := thumbcache.New(cfg.Paths.CacheDir, nil, nil)
	return generation.New(cfg, store, prod, opts...), store
}

func checkSummary(t *testing.T, got, want generation.Summary) {
	t.Helper()
	if got != want {
		t.Fatalf("summary = %+v, want %+v", got, want)
	}
}

func TestPathGeneratesSingleFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	video := filepath.Join(testsupport.BaseDir(cfg), "videos", "clip.mp4")
	testsupport.WriteVideoFile(t, video, 1, 64*1024)

	cat := testsupport.MustOpenCatalog(t, cfg.Paths.CatalogPath)
	prod := &fakeProducer{}
	var progressed int
	var progressMu sync.Mutex
	gen, store := newGenerator(t, cfg, prod,
		generation.WithCatalog(cat),
		generation.WithProgress(func(string, producer.Progress) {
			progressMu.Lock()
			progressed++
			progressMu.Unlock()
		}))

	sum, err := gen.Path(context.Background(), video)
	if err != nil {
		t.Fatalf("Path failed: %v", err)
	}
	checkSummary(t, sum, generation.Summary{Scanned: 1, Generated: 1})

	key, err := fingerprint.FromFile(video)
	if err != nil {
		t.Fatalf("FromFile failed: %v", err)
	}
	if !store.Valid(key) {
		t.Fatal("expected a valid record after generation")
	}
	progressMu.Lock()
	if progressed == 0 {
		t.Fatal("expected at least one progress update")
	}
	progressMu.Unlock()

	entry, err := cat.GetByKey(context.Background(), key.String())
	if err != nil {
		t.Fatalf("GetByKey failed: %v", err)
	}
	if entry == nil {
		t.Fatal("expected a catalog entry after generation")
	}
	if entry.SourcePath != video {
		t.Fatalf("source path = %q, want %q", entry.SourcePath, video)
	}
	if entry.ThumbCount != 2 {
		t.Fatalf("thumb count = %d, want 2", entry.ThumbCount)
	}
	if entry.RecordBytes <= 0 {
		t.Fatalf("record bytes = %d, want > 0", entry.RecordBytes)
	}
}

func TestPathSkipsFreshRecord(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	video := filepath.Join(testsupport.BaseDir(cfg), "clip.mp4")
	testsupport.WriteVideoFile(t, video, 2, 64*1024)

	prod := &fakeProducer{}
	gen, _ := newGenerator(t, cfg, prod)

	if _, err := gen.Path(context.Background(), video); err != nil {
		t.Fatalf("first Path failed: %v", err)
	}
	sum, err := gen.Path(context.Background(), video)
	if err != nil {
		t.Fatalf("second Path failed: %v", err)
	}
	checkSummary(t, sum, generation.Summary{Scanned: 1, Skipped: 1})
	if prod.callCount() != 1 {
		t.Fatalf("producer ran %d times, want 1", prod.callCount())
	}
}

func TestForceRegenerates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	video := filepath.Join(testsupport.BaseDir(cfg), "clip.mp4")
	testsupport.WriteVideoFile(t, video, 3, 64*1024)

	prod := &fakeProducer{}
	gen, store := newGenerator(t, cfg, prod)
	if _, err := gen.Path(context.Background(), video); err != nil {
		t.Fatalf("first Path failed: %v", err)
	}

	forced := generation.New(cfg, store, prod, generation.WithForce(true))
	sum, err := forced.Path(context.Background(), video)
	if err != nil {
		t.Fatalf("forced Path failed: %v", err)
	}
	checkSummary(t, sum, generation.Summary{Scanned: 1, Generated: 1})
	if prod.callCount() != 2 {
		t.Fatalf("producer ran %d times, want 2", prod.callCount())
	}
}

func TestPathIgnoresNonPlayableFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	notes := filepath.Join(testsupport.BaseDir(cfg), "notes.txt")
	testsupport.WriteVideoFile(t, notes, 4, 1024)

	prod := &fakeProducer{}
	gen, _ := newGenerator(t, cfg, prod)

	sum, err := gen.Path(context.Background(), notes)
	if err != nil {
		t.Fatalf("Path failed: %v", err)
	}
	checkSummary(t, sum, generation.Summary{})
	if prod.callCount() != 0 {
		t.Fatalf("producer ran %d times, want 0", prod.callCount())
	}
}

func TestWalkCountsPerFileFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	root := filepath.Join(testsupport.BaseDir(cfg), "library")
	good := filepath.Join(root, "a.mp4")
	bad := filepath.Join(root, "nested", "b.mkv")
	testsupport.WriteVideoFile(t, good, 5, 64*1024)
	testsupport.WriteVideoFile(t, bad, 6, 64*1024)
	testsupport.WriteVideoFile(t, filepath.Join(root, "cover.jpg"), 7, 1024)

	prod := &fakeProducer{failPath: bad}
	gen, store := newGenerator(t, cfg, prod)

	sum, err := gen.Path(context.Background(), root)
	if err != nil {
		t.Fatalf("walk must not abort on per-file failures: %v", err)
	}
	checkSummary(t, sum, generation.Summary{Scanned: 2, Generated: 1, Failed: 1})

	key, err := fingerprint.FromFile(good)
	if err != nil {
		t.Fatalf("FromFile failed: %v", err)
	}
	if !store.Valid(key) {
		t.Fatal("expected the healthy video to be cached")
	}
}

func TestSingleFileFailureReturnsError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	video := filepath.Join(testsupport.BaseDir(cfg), "clip.mp4")
	testsupport.WriteVideoFile(t, video, 8, 64*1024)

	prod := &fakeProducer{failPath: video}
	gen, _ := newGenerator(t, cfg, prod)

	sum, err := gen.Path(context.Background(), video)
	if err == nil {
		t.Fatal("expected the single-file failure to propagate")
	}
	checkSummary(t, sum, generation.Summary{Scanned: 1, Failed: 1})
}

func TestVerifySourceRegeneratesTouchedFile(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithVerifySource(true))
	video := filepath.Join(testsupport.BaseDir(cfg), "clip.mp4")
	testsupport.WriteVideoFile(t, video, 9, 64*1024)

	prod := &fakeProducer{}
	gen, _ := newGenerator(t, cfg, prod)
	if _, err := gen.Path(context.Background(), video); err != nil {
		t.Fatalf("first Path failed: %v", err)
	}

	// Same content, same key; only the mod time moves.
	touched := time.Now().Add(2 * time.Hour)
	if err := os.Chtimes(video, touched, touched); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}

	sum, err := gen.Path(context.Background(), video)
	if err != nil {
		t.Fatalf("second Path failed: %v", err)
	}
	checkSummary(t, sum, generation.Summary{Scanned: 1, Generated: 1})
	if prod.callCount() != 2 {
		t.Fatalf("producer ran %d times, want 2", prod.callCount())
	}
}

func TestVerifySourceKeepsMatchingRecord(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithVerifySource(true))
	video := filepath.Join(testsupport.BaseDir(cfg), "clip.mp4")
	testsupport.WriteVideoFile(t, video, 10, 64*1024)

	prod := &fakeProducer{}
	gen, _ := newGenerator(t, cfg, prod)
	if _, err := gen.Path(context.Background(), video); err != nil {
		t.Fatalf("first Path failed: %v", err)
	}

	sum, err := gen.Path(context.Background(), video)
	if err != nil {
		t.Fatalf("second Path failed: %v", err)
	}
	checkSummary(t, sum, generation.Summary{Scanned: 1, Skipped: 1})
	if prod.callCount() != 1 {
		t.Fatalf("producer ran %d times, want 1", prod.callCount())
	}
}

func TestConcurrentSameKeyCoalesces(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	video := filepath.Join(testsupport.BaseDir(cfg), "clip.mp4")
	testsupport.WriteVideoFile(t, video, 11, 64*1024)

	prod := &fakeProducer{release: make(chan struct{}), started: make(chan string, 2)}
	gen, _ := newGenerator(t, cfg, prod)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errs[0] = gen.Path(context.Background(), video)
	}()
	<-prod.started

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errs[1] = gen.Path(context.Background(), video)
	}()
	time.Sleep(50 * time.Millisecond)
	close(prod.release)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d failed: %v", i, err)
		}
	}
	if prod.callCount() != 1 {
		t.Fatalf("producer ran %d times, want 1", prod.callCount())
	}
}

func TestPathCanceledDuringGeneration(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	video := filepath.Join(testsupport.BaseDir(cfg), "clip.mp4")
	testsupport.WriteVideoFile(t, video, 12, 64*1024)

	prod := &fakeProducer{release: make(chan struct{}), started: make(chan string, 1)}
	gen, store := newGenerator(t, cfg, prod)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		<-prod.started
		cancel()
	}()

	_, err := gen.Path(ctx, video)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	key, keyErr := fingerprint.FromFile(video)
	if keyErr != nil {
		t.Fatalf("FromFile failed: %v", keyErr)
	}
	if store.Exists(key) {
		t.Fatal("canceled generation must not leave a record")
	}
}

func TestPathMissingSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	gen, _ := newGenerator(t, cfg, &fakeProducer{})

	if _, err := gen.Path(context.Background(), filepath.Join(testsupport.BaseDir(cfg), "absent.mp4")); err == nil {
		t.Fatal("expected an error for a missing source")
	}
}

func TestDisabledCachingProducesNoRecordOrEntry(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxCacheMiB(0))
	video := filepath.Join(testsupport.BaseDir(cfg), "clip.mp4")
	testsupport.WriteVideoFile(t, video, 13, 64*1024)

	cat := testsupport.MustOpenCatalog(t, cfg.Paths.CatalogPath)
	prod := &fakeProducer{}
	store := thumbcache.New(cfg.Paths.CacheDir, quota.NewManager(cfg.Paths.CacheDir, cfg.MaxCacheBytes(), nil), nil)
	gen := generation.New(cfg, store, prod, generation.WithCatalog(cat))

	sum, err := gen.Path(context.Background(), video)
	if err != nil {
		t.Fatalf("Path failed: %v", err)
	}
	checkSummary(t, sum, generation.Summary{Scanned: 1, Generated: 1})

	key, err := fingerprint.FromFile(video)
	if err != nil {
		t.Fatalf("FromFile failed: %v", err)
	}
	if store.Exists(key) {
		t.Fatal("disabled caching must not write a record")
	}
	entry, err := cat.GetByKey(context.Background(), key.String())
	if err != nil {
		t.Fatalf("GetByKey failed: %v", err)
	}
	if entry != nil {
		t.Fatal("disabled caching must not catalog an entry")
	}
}
