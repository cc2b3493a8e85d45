package fs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func Test_RealFS_Stat_Returns_ErrNotExist_When_Path_Missing(t *testing.T) {
	t.Parallel()

	fs := NewReal()

	_, err := fs.Stat(filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err=%v, want os.ErrNotExist", err)
	}
}

func Test_RealFS_WriteFileAtomic_Replaces_Content_And_Applies_Perm(t *testing.T) {
	t.Parallel()

	fs := NewReal()
	dir := t.TempDir()
	path := filepath.Join(dir, "entry")

	if err := fs.WriteFileAtomic(path, []byte("first"), 0o600); err != nil {
		t.Fatalf("WriteFileAtomic(first): %v", err)
	}

	if err := fs.WriteFileAtomic(path, []byte("second"), 0o640); err != nil {
		t.Fatalf("WriteFileAtomic(second): %v", err)
	}

	data, err := fs.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if got, want := string(data), "second"; got != want {
		t.Fatalf("content=%q, want=%q", got, want)
	}

	info, err := fs.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}

	if got, want := info.Mode().Perm(), os.FileMode(0o640); got != want {
		t.Fatalf("perm=%v, want=%v", got, want)
	}

	entries, err := fs.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}

	if got, want := len(entries), 1; got != want {
		t.Fatalf("entries=%d, want=%d (temp files left behind?)", got, want)
	}
}

func Test_RealFS_Access_Returns_Nil_When_Dir_Is_Readable_And_Writable(t *testing.T) {
	t.Parallel()

	fs := NewReal()
	dir := t.TempDir()

	if err := fs.Access(dir, AccessRead|AccessWrite|AccessExecute); err != nil {
		t.Fatalf("Access(%q): %v", dir, err)
	}
}

func Test_RealFS_Access_Returns_NotExist_When_Path_Is_Missing(t *testing.T) {
	t.Parallel()

	fs := NewReal()
	path := filepath.Join(t.TempDir(), "missing")

	err := fs.Access(path, AccessRead)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Access(%q): err=%v, want %v", path, err, os.ErrNotExist)
	}
}

func Test_RealFS_FreeSpace_Returns_Positive_Value_When_Dir_Exists(t *testing.T) {
	t.Parallel()

	fs := NewReal()

	free, err := fs.FreeSpace(t.TempDir())
	if err != nil {
		t.Fatalf("FreeSpace: %v", err)
	}

	if free == 0 {
		t.Fatalf("free=0, want > 0")
	}
}
