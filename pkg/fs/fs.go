// Package fs provides the filesystem abstraction used by filecache.
//
// The main types are:
//   - [FS]: interface for the filesystem operations the cache performs
//   - [File]: interface for open files (satisfied by [os.File])
//   - [Real]: production implementation using [os], natefinch/atomic and x/sys
//   - [Chaos]: testing implementation that injects failures
//   - [Locker]: advisory flock(2) locking on top of an [FS]
//
// Example usage:
//
//	fsys := fs.NewReal()
//	if err := fsys.WriteFileAtomic("entry", data, 0o644); err != nil {
//	    return err
//	}
package fs

import (
	"io"
	"os"
)

// Access modes for [FS.Access]. They match the unix R_OK/W_OK/X_OK bits.
const (
	AccessRead    uint32 = 0x4
	AccessWrite   uint32 = 0x2
	AccessExecute uint32 = 0x1
)

// File represents an OS-backed open file descriptor.
//
// This interface is satisfied by [os.File]. [File.Fd] must return a valid OS
// file descriptor usable with syscalls (for example [syscall.Flock]) until the
// file is closed.
type File interface {
	io.ReadWriteCloser

	// Fd returns the file descriptor. See [os.File.Fd].
	Fd() uintptr

	// Stat returns the [os.FileInfo] for this file. See [os.File.Stat].
	Stat() (os.FileInfo, error)
}

// FS defines the filesystem operations filecache needs.
//
// All methods mirror their [os] package equivalents (paths use OS semantics)
// but can be intercepted for testing with fault injection.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type FS interface {
	// OpenFile opens a file with specified flags and permissions. See [os.OpenFile].
	OpenFile(path string, flag int, perm os.FileMode) (File, error)

	// ReadFile reads an entire file into memory. See [os.ReadFile].
	ReadFile(path string) ([]byte, error)

	// WriteFileAtomic replaces path with data so that readers observe either
	// the old or the new content, never a partial write.
	WriteFileAtomic(path string, data []byte, perm os.FileMode) error

	// ReadDir reads a directory and returns its entries sorted by name. See [os.ReadDir].
	ReadDir(path string) ([]os.DirEntry, error)

	// MkdirAll creates a directory and all parents. See [os.MkdirAll].
	MkdirAll(path string, perm os.FileMode) error

	// Stat returns file info. See [os.Stat].
	Stat(path string) (os.FileInfo, error)

	// Remove deletes a file or empty directory. See [os.Remove].
	Remove(path string) error

	// Access checks the calling process's permissions for path, see access(2).
	// mode is a bitwise OR of [AccessRead], [AccessWrite] and [AccessExecute].
	Access(path string, mode uint32) error

	// FreeSpace returns the number of bytes available to unprivileged users
	// on the filesystem holding path.
	FreeSpace(path string) (uint64, error)
}

// Compile-time interface checks.
var _ File = (*os.File)(nil)
