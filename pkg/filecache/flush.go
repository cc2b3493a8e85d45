package filecache

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Flush reconciles the directory with the in-memory state:
//
//  1. expired entries leave the index and their files are staged for removal
//  2. the metadata snapshot is rewritten in full (skipped if unchanged)
//  3. staged payloads are written to their entry files
//  4. staged deletes are removed (a missing file is fine)
//  5. every file without an index entry is removed, reserved files excepted
//
// A snapshot write failure aborts the flush with an error wrapping
// [ErrSnapshotWrite]; nothing else is touched and a later Flush retries.
// Payload write failures leave those writes staged and are returned joined.
// Failed removals are logged and otherwise ignored.
//
// Flushing twice without changes in between does nothing the second time.
func (c *Cache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return &Error{Op: "flush", Err: ErrClosed}
	}

	return c.flushLocked()
}

// Close flushes, releases the directory lock and unregisters metrics. The
// Cache is closed even when the flush fails; the returned error then reports
// what did not reach the disk.
//
// Close is idempotent. Later calls return nil.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	flushErr := c.flushLocked()

	c.closed = true
	clear(c.loaded)

	lockErr := c.releaseLock()
	if lockErr != nil {
		lockErr = &Error{Op: "close", File: LockFileName, Err: lockErr}
	}

	metricsErr := c.metrics.unregister()

	c.log.Debug("cache closed", zap.Bool("clean", flushErr == nil))

	return errors.Join(flushErr, lockErr, metricsErr)
}

type flushReport struct {
	expired int
	written int
	removed int
	orphans int
	failed  int
}

func (c *Cache) flushLocked() error {
	var report flushReport

	for _, k := range c.index.expired(c.now()) {
		c.index.remove(k)
		c.staging.stageDelete(k)
		delete(c.loaded, k)

		report.expired++
	}

	c.metrics.entries.Set(float64(c.index.len()))

	err := c.writeSnapshotLocked()
	if err != nil {
		c.metrics.flushErrors.Inc()
		c.log.Error("flush aborted", zap.Error(err))

		return err
	}

	writeErr := c.writeStagedLocked(&report)

	c.removeStagedLocked(&report)

	sweepErr := c.sweepOrphansLocked(&report)

	c.metrics.flushErrors.Add(float64(report.failed))

	c.log.Debug("flushed",
		zap.Int("expired", report.expired),
		zap.Int("written", report.written),
		zap.Int("removed", report.removed),
		zap.Int("orphans", report.orphans),
		zap.Int("failed", report.failed),
	)

	return errors.Join(writeErr, sweepErr)
}

func (c *Cache) writeSnapshotLocked() error {
	data, err := c.index.marshal()
	if err != nil {
		return &Error{Op: "flush", File: SnapshotFileName, Err: fmt.Errorf("%w: %w", ErrSnapshotWrite, err)}
	}

	if c.persistedKnown && bytes.Equal(data, c.persisted) {
		return nil
	}

	err = c.fs.WriteFileAtomic(c.path(SnapshotFileName), data, c.cfg.FilePerm)
	if err != nil {
		return &Error{Op: "flush", File: SnapshotFileName, Err: fmt.Errorf("%w: %w", ErrSnapshotWrite, err)}
	}

	c.persisted, c.persistedKnown = data, true

	return nil
}

// writeStagedLocked writes staged payloads, at most FlushConcurrency at a
// time. Written keys leave the staging buffer; failed ones stay.
func (c *Cache) writeStagedLocked(report *flushReport) error {
	keys := c.staging.writeKeys()
	results := make([]error, len(keys))

	var g errgroup.Group

	g.SetLimit(c.cfg.FlushConcurrency)

	for i, k := range keys {
		data, _ := c.staging.pendingWrite(k)
		path := c.path(k)

		g.Go(func() error {
			results[i] = c.fs.WriteFileAtomic(path, data, c.cfg.FilePerm)

			return nil
		})
	}

	_ = g.Wait()

	var errs []error

	for i, k := range keys {
		if results[i] != nil {
			report.failed++

			c.log.Warn("writing entry file", zap.String("file", string(k)), zap.Error(results[i]))
			errs = append(errs, &Error{Op: "flush", File: string(k), Err: results[i]})

			continue
		}

		c.staging.dropWrite(k)
		report.written++
	}

	c.metrics.flushWritten.Add(float64(report.written))

	return errors.Join(errs...)
}

// removeStagedLocked removes files staged for deletion. Failures are logged;
// the orphan sweep retries them on the next flush.
func (c *Cache) removeStagedLocked(report *flushReport) {
	for _, k := range c.staging.deleteKeys() {
		err := c.fs.Remove(c.path(k))

		switch {
		case err == nil:
			report.removed++
		case errors.Is(err, os.ErrNotExist):
		default:
			report.failed++

			c.log.Warn("removing entry file", zap.String("file", string(k)), zap.Error(err))
		}
	}

	c.staging.clearDeletes()
	c.metrics.flushRemoved.Add(float64(report.removed))
}

// sweepOrphansLocked removes every regular file that is neither reserved nor
// backing an index entry.
func (c *Cache) sweepOrphansLocked(report *flushReport) error {
	entries, err := c.fs.ReadDir(c.dir)
	if err != nil {
		report.failed++

		return &Error{Op: "flush", Err: fmt.Errorf("listing directory: %w", err)}
	}

	for _, de := range entries {
		name := de.Name()

		if de.IsDir() || name == SnapshotFileName || name == LockFileName {
			continue
		}

		if _, ok := c.index.get(EncodedKey(name)); ok {
			continue
		}

		err := c.fs.Remove(c.path(EncodedKey(name)))

		switch {
		case err == nil:
			report.orphans++
		case errors.Is(err, os.ErrNotExist):
		default:
			report.failed++

			c.log.Warn("removing orphan file", zap.String("file", name), zap.Error(err))
		}
	}

	c.metrics.orphansRemoved.Add(float64(report.orphans))

	return nil
}
