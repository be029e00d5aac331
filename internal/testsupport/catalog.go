package testsupport

import (
	"testing"

	"lightbox/internal/catalog"
)

// MustOpenCatalog opens a catalog database for tests and registers cleanup.
func MustOpenCatalog(t testing.TB, path string) *catalog.Catalog {
	t.Helper()

	cat, err := catalog.Open(path)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		cat.Close()
	})
	return cat
}
