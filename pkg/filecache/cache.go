package filecache

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/calvinalkan/filecache/pkg/fs"
)

// Cache is a filesystem-backed key-value cache.
//
// Reads and writes touch only in-memory state (plus disk reads of values that
// are not staged). Bytes reach the disk in [Cache.Flush] and [Cache.Close].
//
// A Cache is safe for concurrent use. Only one Cache may use a directory at a
// time; see [Config.LockDir].
type Cache struct {
	mu sync.Mutex

	cfg     Config
	dir     string
	fs      fs.FS
	now     func() time.Time
	log     *zap.Logger
	metrics *metrics
	lock    *fs.Lock

	index   *index
	staging *staging
	loaded  map[EncodedKey]Value

	// persisted is the snapshot content currently on disk. Flush skips the
	// snapshot write when nothing changed. persistedKnown is false when the
	// snapshot could not be read, which forces the next write.
	persisted      []byte
	persistedKnown bool

	closed bool
}

// Stats is a point-in-time view of a [Cache].
type Stats struct {
	// Entries is the number of keys in the metadata index, expired ones
	// included until the next flush.
	Entries int

	// PendingWrites is the number of staged payloads not yet on disk.
	PendingWrites int

	// PendingDeletes is the number of files staged for removal.
	PendingDeletes int

	// Cached is the number of decoded values held in the read cache.
	Cached int
}

// Open opens (creating if needed) the cache directory in cfg.Dir, loads the
// metadata snapshot and drops index entries whose files are missing.
//
// Errors wrap [ErrConstruction] when the directory is unusable, [ErrLocked]
// when another process holds the directory lock, and [ErrInvalidArgument]
// for an invalid cfg.
//
// The caller must call [Cache.Close] on every exit path. Nothing is written
// to disk otherwise.
func Open(cfg Config) (*Cache, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, openErr(fmt.Errorf("%w: %w", ErrInvalidArgument, err))
	}

	dir := filepath.Clean(cfg.Dir)

	c := &Cache{
		cfg:     cfg,
		dir:     dir,
		fs:      cfg.FS,
		now:     cfg.Now,
		log:     cfg.Logger.Named("filecache").With(zap.String("dir", dir)),
		staging: newStaging(),
		loaded:  make(map[EncodedKey]Value),
	}

	err = c.prepareDir()
	if err != nil {
		return nil, err
	}

	if cfg.LockDir {
		lk, lockErr := fs.NewLocker(c.fs).TryLock(filepath.Join(dir, LockFileName))
		if lockErr != nil {
			if errors.Is(lockErr, fs.ErrWouldBlock) {
				return nil, openErr(ErrLocked)
			}

			return nil, openErr(fmt.Errorf("%w: locking directory: %w", ErrConstruction, lockErr))
		}

		c.lock = lk
	}

	err = c.load()
	if err != nil {
		_ = c.releaseLock()

		return nil, err
	}

	c.metrics = newMetrics(dir)

	err = c.metrics.register(cfg.Registerer)
	if err != nil {
		_ = c.releaseLock()

		return nil, openErr(fmt.Errorf("%w: %w", ErrConstruction, err))
	}

	c.metrics.entries.Set(float64(c.index.len()))

	c.log.Debug("cache opened", zap.Int("entries", c.index.len()))

	return c, nil
}

// prepareDir creates the directory and checks it is usable.
func (c *Cache) prepareDir() error {
	err := c.fs.MkdirAll(c.dir, c.cfg.DirPerm)
	if err != nil {
		return openErr(fmt.Errorf("%w: creating directory: %w", ErrConstruction, err))
	}

	info, err := c.fs.Stat(c.dir)
	if err != nil {
		return openErr(fmt.Errorf("%w: %w", ErrConstruction, err))
	}

	if !info.IsDir() {
		return openErr(fmt.Errorf("%w: %s is not a directory", ErrConstruction, c.dir))
	}

	err = c.fs.Access(c.dir, fs.AccessRead|fs.AccessWrite|fs.AccessExecute)
	if err != nil {
		return openErr(fmt.Errorf("%w: directory not readable and writable: %w", ErrConstruction, err))
	}

	free, err := c.fs.FreeSpace(c.dir)
	if err != nil {
		return openErr(fmt.Errorf("%w: checking free space: %w", ErrConstruction, err))
	}

	if free <= c.cfg.MinFreeBytes {
		return openErr(fmt.Errorf("%w: %d bytes free, need more than %d", ErrConstruction, free, c.cfg.MinFreeBytes))
	}

	return nil
}

// load reads the snapshot and reconciles it with the files present.
func (c *Cache) load() error {
	snapshotPath := filepath.Join(c.dir, SnapshotFileName)

	data, err := c.fs.ReadFile(snapshotPath)

	switch {
	case err == nil:
		c.persisted, c.persistedKnown = data, true
	case errors.Is(err, os.ErrNotExist):
		c.persisted, c.persistedKnown = nil, true
	case errors.Is(err, os.ErrPermission):
		return &Error{Op: "open", File: SnapshotFileName, Err: fmt.Errorf("%w: reading snapshot: %w", ErrConstruction, err)}
	default:
		c.log.Warn("metadata snapshot unreadable, starting empty", zap.Error(err))
	}

	ix, dropped, err := loadIndex(data)
	if err != nil {
		c.log.Warn("metadata snapshot corrupt, starting empty", zap.Error(err))
	}

	if dropped > 0 {
		c.log.Warn("dropped malformed snapshot entries", zap.Int("count", dropped))
	}

	entries, err := c.fs.ReadDir(c.dir)
	if err != nil {
		return openErr(fmt.Errorf("%w: listing directory: %w", ErrConstruction, err))
	}

	present := make(map[EncodedKey]struct{}, len(entries))

	for _, de := range entries {
		if de.IsDir() {
			continue
		}

		k := EncodedKey(de.Name())
		if k.Valid() {
			present[k] = struct{}{}
		}
	}

	missing := ix.reconcile(present)
	if len(missing) > 0 {
		c.log.Warn("dropped index entries without backing file", zap.Int("count", len(missing)))
	}

	c.index = ix

	return nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

// Has reports whether key has a live entry: present in the index and not
// expired. It never mutates state.
func (c *Cache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	_, ok := c.liveLocked(EncodeKey(key))

	return ok
}

// Get returns the value stored under key, or def if there is no live entry.
//
// A live entry whose payload cannot be read or decoded is logged and
// treated as a miss.
func (c *Cache) Get(key string, def Value) Value {
	v, ok := c.Lookup(key)
	if !ok {
		return def
	}

	return v
}

// Lookup is like [Cache.Get] but reports a miss with ok=false instead of
// returning a default.
func (c *Cache) Lookup(key string) (Value, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return Value{}, false
	}

	k := EncodeKey(key)

	entry, ok := c.liveLocked(k)
	if !ok {
		c.metrics.misses.Inc()

		return Value{}, false
	}

	v, ok := c.resolveLocked(k, entry)
	if !ok {
		c.metrics.misses.Inc()

		return Value{}, false
	}

	c.metrics.hits.Inc()

	return v, true
}

// liveLocked returns the entry for k unless it is missing, staged for
// deletion or expired.
func (c *Cache) liveLocked(k EncodedKey) (Entry, bool) {
	if c.staging.pendingDelete(k) {
		return Entry{}, false
	}

	entry, ok := c.index.get(k)
	if !ok {
		return Entry{}, false
	}

	if entry.Expired(c.now()) {
		c.metrics.expired.Inc()

		return Entry{}, false
	}

	return entry, true
}

// resolveLocked returns the value for a live entry from, in order, the
// staged payload, the read cache and the file on disk.
func (c *Cache) resolveLocked(k EncodedKey, entry Entry) (Value, bool) {
	data, staged := c.staging.pendingWrite(k)
	if !staged {
		if v, ok := c.loaded[k]; ok {
			return v, true
		}

		var err error

		data, err = c.fs.ReadFile(c.path(k))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				c.log.Warn("index entry without backing file", zap.String("file", string(k)))
			} else {
				c.log.Warn("reading entry file", zap.String("file", string(k)), zap.Error(err))
			}

			return Value{}, false
		}
	}

	v, err := decodePayload(entry.Type, entry.Serialized, data)
	if err != nil {
		c.log.Warn("decoding entry payload",
			zap.String("file", string(k)),
			zap.Stringer("type", entry.Type),
			zap.Error(err),
		)

		return Value{}, false
	}

	c.loaded[k] = v

	return v, true
}

// Set stages v under key. A nil ttl or one that normalizes to zero means the
// entry never expires. Nothing is written to disk before the next flush.
//
// Errors wrap [ErrInvalidArgument] (state unchanged) or [ErrClosed].
func (c *Cache) Set(key string, v Value, ttl TTL) error {
	secs, err := normalizeTTL(ttl)
	if err != nil {
		return &Error{Op: "set", Key: key, Err: err}
	}

	data, serialized, err := v.payload()
	if err != nil {
		return &Error{Op: "set", Key: key, Err: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return &Error{Op: "set", Key: key, Err: ErrClosed}
	}

	entry := Entry{Type: v.Kind(), Serialized: serialized}

	if secs > 0 {
		created := c.now().Unix()
		if secs > math.MaxInt64-created {
			return &Error{Op: "set", Key: key, Err: fmt.Errorf("%w: ttl %ds overflows expiry time", ErrInvalidArgument, secs)}
		}

		entry.TTL = &secs
		entry.Created = &created
	}

	k := EncodeKey(key)

	c.index.put(k, entry)
	c.staging.stageWrite(k, data)
	delete(c.loaded, k)

	c.metrics.sets.Inc()
	c.metrics.entries.Set(float64(c.index.len()))

	return nil
}

// Delete removes key and reports whether it had a live entry. The file is
// removed at the next flush.
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	k := EncodeKey(key)

	if _, ok := c.liveLocked(k); !ok {
		return false
	}

	c.index.remove(k)
	c.staging.stageDelete(k)
	delete(c.loaded, k)

	c.metrics.deletes.Inc()
	c.metrics.entries.Set(float64(c.index.len()))

	return true
}

// Clear removes every entry. All known files are staged for deletion so the
// next flush leaves the directory empty apart from reserved files.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	for _, k := range c.index.keys() {
		c.staging.stageDelete(k)
	}

	c.index = newIndex()
	clear(c.loaded)

	c.metrics.entries.Set(0)
}

// GetMultiple returns the value (or def) for each key. It returns nil when
// keys is empty.
func (c *Cache) GetMultiple(keys []string, def Value) map[string]Value {
	if len(keys) == 0 {
		return nil
	}

	out := make(map[string]Value, len(keys))
	for _, key := range keys {
		out[key] = c.Get(key, def)
	}

	return out
}

// SetMultiple sets every entry with the same ttl. Keys are processed in
// sorted order and succeed or fail independently; failures are joined.
func (c *Cache) SetMultiple(entries map[string]Value, ttl TTL) error {
	var errs []error

	for _, key := range slices.Sorted(maps.Keys(entries)) {
		err := c.Set(key, entries[key], ttl)
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// DeleteMultiple deletes every key and returns how many had a live entry.
func (c *Cache) DeleteMultiple(keys []string) int {
	n := 0

	for _, key := range keys {
		if c.Delete(key) {
			n++
		}
	}

	return n
}

// Stats returns counters describing the in-memory state.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Entries:        c.index.len(),
		PendingWrites:  len(c.staging.writes),
		PendingDeletes: len(c.staging.deletes),
		Cached:         len(c.loaded),
	}
}

// Entry returns the index entry for key, expired or not.
func (c *Cache) Entry(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.index.get(EncodeKey(key))
	if !ok {
		return Entry{}, false
	}

	if entry.HasExpiry() {
		ttl, created := *entry.TTL, *entry.Created
		entry.TTL, entry.Created = &ttl, &created
	}

	return entry, true
}

func (c *Cache) path(k EncodedKey) string {
	return filepath.Join(c.dir, string(k))
}

func (c *Cache) releaseLock() error {
	if c.lock == nil {
		return nil
	}

	err := c.lock.Close()
	c.lock = nil

	return err
}

func openErr(err error) error {
	return &Error{Op: "open", Err: err}
}
