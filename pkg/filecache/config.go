package filecache

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/calvinalkan/filecache/pkg/fs"
)

// Reserved file names inside the cache directory. They are never treated as
// entries or orphans.
const (
	// SnapshotFileName holds the metadata index.
	SnapshotFileName = ".metadoc"

	// LockFileName is flocked when [Config.LockDir] is set.
	LockFileName = ".lock"
)

// Defaults applied by [Open] for zero-valued [Config] fields.
const (
	DefaultMinFreeBytes     uint64      = 8
	DefaultFlushConcurrency             = 8
	DefaultFilePerm         os.FileMode = 0o644
	DefaultDirPerm          os.FileMode = 0o755
)

// Config provides all settings for a [Cache].
type Config struct {
	// Dir is the cache directory. Created (with parents) if missing.
	// Required.
	Dir string `validate:"required"`

	//
	//
	// -----------------------------------------------
	// OPTIONAL SETTINGS (SENSIBLE DEFAULTS PROVIDED)
	// -----------------------------------------------
	//
	//

	// MinFreeBytes is the free-space safety threshold. Open fails with
	// [ErrConstruction] if the filesystem holding Dir has this many bytes
	// available or fewer.
	//
	// Default: [DefaultMinFreeBytes].
	MinFreeBytes uint64

	// FlushConcurrency bounds how many entry files Flush writes in parallel.
	//
	// Default: [DefaultFlushConcurrency].
	FlushConcurrency int `validate:"gte=0,lte=1024"`

	// FilePerm is the permission of entry and snapshot files.
	//
	// Default: [DefaultFilePerm].
	FilePerm os.FileMode

	// DirPerm is the permission used when creating Dir.
	//
	// Default: [DefaultDirPerm].
	DirPerm os.FileMode

	// LockDir takes an exclusive advisory lock on Dir for the lifetime of the
	// Cache. A second process opening the same directory then fails with
	// [ErrLocked] instead of racing on flush.
	LockDir bool

	// Now returns the current time. Expiry decisions and TTL start times use it.
	//
	// Default: [time.Now].
	Now func() time.Time `validate:"-"`

	// Logger receives consistency faults, best-effort flush failures and
	// debug summaries.
	//
	// Default: [zap.NewNop].
	Logger *zap.Logger `validate:"-"`

	// Registerer, if set, registers the cache's prometheus collectors. They
	// are unregistered by [Cache.Close].
	Registerer prometheus.Registerer `validate:"-"`

	// FS is the filesystem implementation.
	//
	// Default: [fs.NewReal].
	FS fs.FS `validate:"-"`
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// withDefaults validates cfg and fills zero-valued optional fields.
func (cfg Config) withDefaults() (Config, error) {
	err := configValidator.Struct(cfg)
	if err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	if cfg.MinFreeBytes == 0 {
		cfg.MinFreeBytes = DefaultMinFreeBytes
	}

	if cfg.FlushConcurrency == 0 {
		cfg.FlushConcurrency = DefaultFlushConcurrency
	}

	if cfg.FilePerm == 0 {
		cfg.FilePerm = DefaultFilePerm
	}

	if cfg.DirPerm == 0 {
		cfg.DirPerm = DefaultDirPerm
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	if cfg.FS == nil {
		cfg.FS = fs.NewReal()
	}

	return cfg, nil
}
