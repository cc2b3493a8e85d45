package filecache

import (
	"errors"
	"strings"
)

var (
	// ErrConstruction is returned by [Open] when the cache directory cannot be
	// used at all: it cannot be created, is not readable and writable, the
	// snapshot cannot be read due to permissions, or free space is too low.
	ErrConstruction = errors.New("cache unusable")

	// ErrInvalidArgument is returned by [Cache.Set] for a zero [Value], a TTL
	// that cannot be normalized to non-negative seconds, or a composite value
	// holding a non-finite float. State is not mutated.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrSnapshotWrite is returned by [Cache.Flush] when the metadata snapshot
	// could not be persisted. Staged writes and deletes are kept so a later
	// Flush can retry.
	ErrSnapshotWrite = errors.New("writing metadata snapshot")

	// ErrClosed is returned by operations on a closed [Cache].
	ErrClosed = errors.New("cache is closed")

	// ErrLocked is returned by [Open] when [Config.LockDir] is set and another
	// process holds the directory lock.
	ErrLocked = errors.New("cache directory is locked by another process")
)

// Error is the structured error type returned by [Cache] operations.
//
// The underlying error message appears first, followed by context:
//
//	invalid argument: negative ttl -5 (op=set key=session:42)
//
// Use [errors.Is] to check for sentinel errors and [errors.As] to extract
// the key:
//
//	var cErr *filecache.Error
//	if errors.As(err, &cErr) {
//	    log.Printf("failed for key %s", cErr.Key)
//	}
type Error struct {
	// Op is the operation that failed: "open", "set" or "flush".
	Op string

	// Key is the caller's key, when known.
	Key string

	// File is the name of the file inside the cache directory, when the
	// failure concerns a specific file (flush).
	File string

	// Err is the underlying cause.
	Err error
}

// Error formats as "<cause> (op=X key=Y file=Z)".
func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	var parts []string

	if e.Op != "" {
		parts = append(parts, "op="+e.Op)
	}

	if e.Key != "" {
		parts = append(parts, "key="+e.Key)
	}

	if e.File != "" {
		parts = append(parts, "file="+e.File)
	}

	cause := ""
	if e.Err != nil {
		cause = e.Err.Error()
	}

	if len(parts) == 0 {
		return cause
	}

	suffix := "(" + strings.Join(parts, " ") + ")"
	if cause == "" {
		return suffix
	}

	return cause + " " + suffix
}

// Unwrap returns the underlying error for use with [errors.Is] and [errors.As].
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}
