package fs

import (
	"errors"
	"math/rand/v2"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
)

// ChaosOp names a filesystem operation [Chaos] can fail.
type ChaosOp string

// Operations recognised by [ChaosConfig.Filter].
const (
	ChaosOpOpen      ChaosOp = "open"
	ChaosOpReadFile  ChaosOp = "readfile"
	ChaosOpWrite     ChaosOp = "write"
	ChaosOpReadDir   ChaosOp = "readdir"
	ChaosOpMkdirAll  ChaosOp = "mkdirall"
	ChaosOpStat      ChaosOp = "stat"
	ChaosOpRemove    ChaosOp = "remove"
	ChaosOpAccess    ChaosOp = "access"
	ChaosOpFreeSpace ChaosOp = "freespace"
)

// ChaosConfig controls fault injection probabilities.
// Each rate is a float64 from 0.0 (never) to 1.0 (always).
//
// The zero value disables all fault injection.
type ChaosConfig struct {
	// OpenFailRate controls how often FS.OpenFile fails with EACCES, EIO or EMFILE.
	OpenFailRate float64

	// ReadFailRate controls how often FS.ReadFile fails with EACCES or EIO.
	ReadFailRate float64

	// WriteFailRate controls how often FS.WriteFileAtomic fails with EIO,
	// ENOSPC, EDQUOT or EROFS. A failed atomic write leaves the old content
	// in place.
	WriteFailRate float64

	// ReadDirFailRate controls how often FS.ReadDir fails with EACCES or EIO.
	ReadDirFailRate float64

	// MkdirAllFailRate controls how often FS.MkdirAll fails with EACCES or EROFS.
	MkdirAllFailRate float64

	// StatFailRate controls how often FS.Stat fails with EACCES or EIO.
	StatFailRate float64

	// RemoveFailRate controls how often FS.Remove fails with EACCES, EPERM or EBUSY.
	RemoveFailRate float64

	// AccessFailRate controls how often FS.Access reports EACCES.
	AccessFailRate float64

	// FreeSpaceFailRate controls how often FS.FreeSpace fails with EIO.
	FreeSpaceFailRate float64

	// Filter restricts injection to the calls it returns true for.
	// Nil injects everywhere.
	Filter func(op ChaosOp, path string) bool

	// Errno, if non-zero, replaces the randomly chosen errno of every
	// injected fault.
	Errno syscall.Errno
}

// ChaosMode controls how [Chaos] behaves.
type ChaosMode uint8

const (
	// ChaosModeActive enables fault-rate injection.
	// This is the default mode for a new [Chaos].
	ChaosModeActive ChaosMode = iota

	// ChaosModeNoOp passes every operation directly to the underlying FS.
	ChaosModeNoOp
)

// chaosError marks an error as intentionally injected by [Chaos].
//
// It wraps an [*os.PathError] carrying a real [syscall.Errno], so
// [os.IsPermission] and [errors.Is] keep working.
type chaosError struct {
	Err error
}

func (e *chaosError) Error() string {
	return "chaos: " + e.Err.Error()
}

func (e *chaosError) Unwrap() error {
	return e.Err
}

// IsChaosErr reports whether err (or any wrapped error) was injected by [Chaos].
func IsChaosErr(err error) bool {
	var injected *chaosError

	return errors.As(err, &injected)
}

// Chaos wraps an [FS] and injects failures for testing.
//
// Chaos never injects ENOENT: any os.IsNotExist result originates from the
// wrapped [FS]. Each call independently decides whether to inject; there is no
// sticky per-path fault state.
type Chaos struct {
	fs     FS
	config ChaosConfig
	mode   atomic.Uint32

	rngMu sync.Mutex
	rng   *rand.Rand

	faults atomic.Int64
}

// NewChaos creates a new [Chaos] filesystem wrapping the given [FS].
// The seed controls random fault injection for reproducibility.
// Panics if underlying is nil.
func NewChaos(underlying FS, seed int64, config ChaosConfig) *Chaos {
	if underlying == nil {
		panic("underlying fs is nil")
	}

	return &Chaos{
		fs:     underlying,
		config: config,
		rng:    rand.New(rand.NewPCG(uint64(seed), uint64(seed))),
	}
}

// SetMode updates [Chaos] behavior. Safe to call concurrently with filesystem
// operations.
func (c *Chaos) SetMode(m ChaosMode) { c.mode.Store(uint32(m)) }

// TotalFaults returns the number of injected faults so far.
func (c *Chaos) TotalFaults() int64 { return c.faults.Load() }

func (c *Chaos) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	if err := c.maybeFail(ChaosOpOpen, "open", path, c.config.OpenFailRate,
		syscall.EACCES, syscall.EIO, syscall.EMFILE); err != nil {
		return nil, err
	}

	return c.fs.OpenFile(path, flag, perm)
}

func (c *Chaos) ReadFile(path string) ([]byte, error) {
	if err := c.maybeFail(ChaosOpReadFile, "open", path, c.config.ReadFailRate,
		syscall.EACCES, syscall.EIO); err != nil {
		return nil, err
	}

	return c.fs.ReadFile(path)
}

func (c *Chaos) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := c.maybeFail(ChaosOpWrite, "write", path, c.config.WriteFailRate,
		syscall.EIO, syscall.ENOSPC, syscall.EDQUOT, syscall.EROFS); err != nil {
		return err
	}

	return c.fs.WriteFileAtomic(path, data, perm)
}

func (c *Chaos) ReadDir(path string) ([]os.DirEntry, error) {
	if err := c.maybeFail(ChaosOpReadDir, "readdirent", path, c.config.ReadDirFailRate,
		syscall.EACCES, syscall.EIO); err != nil {
		return nil, err
	}

	return c.fs.ReadDir(path)
}

func (c *Chaos) MkdirAll(path string, perm os.FileMode) error {
	if err := c.maybeFail(ChaosOpMkdirAll, "mkdir", path, c.config.MkdirAllFailRate,
		syscall.EACCES, syscall.EROFS); err != nil {
		return err
	}

	return c.fs.MkdirAll(path, perm)
}

func (c *Chaos) Stat(path string) (os.FileInfo, error) {
	if err := c.maybeFail(ChaosOpStat, "stat", path, c.config.StatFailRate,
		syscall.EACCES, syscall.EIO); err != nil {
		return nil, err
	}

	return c.fs.Stat(path)
}

func (c *Chaos) Remove(path string) error {
	if err := c.maybeFail(ChaosOpRemove, "remove", path, c.config.RemoveFailRate,
		syscall.EACCES, syscall.EPERM, syscall.EBUSY); err != nil {
		return err
	}

	return c.fs.Remove(path)
}

func (c *Chaos) Access(path string, mode uint32) error {
	if err := c.maybeFail(ChaosOpAccess, "access", path, c.config.AccessFailRate,
		syscall.EACCES); err != nil {
		return err
	}

	return c.fs.Access(path, mode)
}

func (c *Chaos) FreeSpace(path string) (uint64, error) {
	if err := c.maybeFail(ChaosOpFreeSpace, "statfs", path, c.config.FreeSpaceFailRate,
		syscall.EIO); err != nil {
		return 0, err
	}

	return c.fs.FreeSpace(path)
}

func (c *Chaos) maybeFail(op ChaosOp, pathOp, path string, rate float64, errnos ...syscall.Errno) error {
	if ChaosMode(c.mode.Load()) == ChaosModeNoOp || rate <= 0 {
		return nil
	}

	if c.config.Filter != nil && !c.config.Filter(op, path) {
		return nil
	}

	c.rngMu.Lock()
	hit := rate >= 1 || c.rng.Float64() < rate
	errno := errnos[c.rng.IntN(len(errnos))]
	c.rngMu.Unlock()

	if c.config.Errno != 0 {
		errno = c.config.Errno
	}

	if !hit {
		return nil
	}

	c.faults.Add(1)

	return &chaosError{Err: &os.PathError{Op: pathOp, Path: path, Err: errno}}
}

// Compile-time interface check.
var _ FS = (*Chaos)(nil)
