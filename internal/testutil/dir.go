package testutil

import (
	"os"
	"slices"
	"testing"
)

// ListFiles returns the names of the regular files in dir, sorted. Names in
// skip are left out.
func ListFiles(tb testing.TB, dir string, skip ...string) []string {
	tb.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		tb.Fatalf("read dir %s: %v", dir, err)
	}

	var names []string

	for _, e := range entries {
		if e.IsDir() || slices.Contains(skip, e.Name()) {
			continue
		}

		names = append(names, e.Name())
	}

	return names
}

// ReadFile returns the content of path, failing the test on error.
func ReadFile(tb testing.TB, path string) []byte {
	tb.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		tb.Fatalf("read %s: %v", path, err)
	}

	return data
}

// WriteFile writes data to path, failing the test on error.
func WriteFile(tb testing.TB, path string, data []byte) {
	tb.Helper()

	err := os.WriteFile(path, data, 0o644)
	if err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
}
