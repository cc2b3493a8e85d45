package fs

import (
	"bytes"
	"fmt"
	"os"

	"github.com/natefinch/atomic"
	"golang.org/x/sys/unix"
)

// Real implements [FS] using the real filesystem.
//
// Most methods are pure passthroughs to the [os] package with identical
// behavior and error semantics. The exceptions are [Real.WriteFileAtomic]
// which uses atomic file writes, and [Real.Access]/[Real.FreeSpace] which
// call into x/sys/unix.
type Real struct{}

// NewReal returns a new [Real] filesystem.
func NewReal() *Real {
	return &Real{}
}

// A passthrough wrapper for [os.OpenFile].
func (r *Real) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	return os.OpenFile(path, flag, perm)
}

// A passthrough wrapper for [os.ReadFile].
func (r *Real) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFileAtomic writes data to a temp file next to path and renames it over
// path. The final file is chmod'ed to perm.
func (r *Real) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	err := atomic.WriteFile(path, bytes.NewReader(data))
	if err != nil {
		return err
	}

	if perm == 0 {
		return nil
	}

	return os.Chmod(path, perm)
}

// A passthrough wrapper for [os.ReadDir].
func (r *Real) ReadDir(path string) ([]os.DirEntry, error) {
	return os.ReadDir(path)
}

// A passthrough wrapper for [os.MkdirAll].
func (r *Real) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// A passthrough wrapper for [os.Stat].
func (r *Real) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

// A passthrough wrapper for [os.Remove].
func (r *Real) Remove(path string) error {
	return os.Remove(path)
}

// Access wraps access(2). The error is an [*os.PathError] so [os.IsPermission]
// works on it.
func (r *Real) Access(path string, mode uint32) error {
	err := unix.Access(path, mode)
	if err != nil {
		return &os.PathError{Op: "access", Path: path, Err: err}
	}

	return nil
}

// FreeSpace wraps statfs(2) and returns available blocks times block size.
func (r *Real) FreeSpace(path string) (uint64, error) {
	var st unix.Statfs_t

	err := unix.Statfs(path, &st)
	if err != nil {
		return 0, &os.PathError{Op: "statfs", Path: path, Err: err}
	}

	if st.Bsize <= 0 {
		return 0, fmt.Errorf("statfs %q: invalid block size %d", path, st.Bsize)
	}

	return uint64(st.Bavail) * uint64(st.Bsize), nil
}

// Compile-time interface check.
var _ FS = (*Real)(nil)
