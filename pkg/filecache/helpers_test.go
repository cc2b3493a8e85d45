package filecache_test

import (
	"math"
	"path/filepath"
	"slices"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/calvinalkan/filecache/internal/testutil"
	"github.com/calvinalkan/filecache/pkg/filecache"
)

// harness bundles a cache directory with the clock, log sink and registry
// every cache opened on it shares.
type harness struct {
	t     *testing.T
	dir   string
	clock *testutil.Clock
	logs  *observer.ObservedLogs
	log   *zap.Logger
	reg   *prometheus.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)

	return &harness{
		t:     t,
		dir:   filepath.Join(t.TempDir(), "cache"),
		clock: testutil.NewClock(),
		logs:  logs,
		log:   zap.New(core),
		reg:   prometheus.NewRegistry(),
	}
}

func (h *harness) config() filecache.Config {
	return filecache.Config{
		Dir:        h.dir,
		Now:        h.clock.Now,
		Logger:     h.log,
		Registerer: h.reg,
	}
}

// open opens a cache on the harness directory. Cleanup closes it.
func (h *harness) open(mods ...func(*filecache.Config)) *filecache.Cache {
	h.t.Helper()

	cfg := h.config()
	for _, mod := range mods {
		mod(&cfg)
	}

	c, err := filecache.Open(cfg)
	if err != nil {
		h.t.Fatalf("Open: %v", err)
	}

	h.t.Cleanup(func() { _ = c.Close() })

	return c
}

// reopen closes c and opens a fresh cache on the same directory.
func (h *harness) reopen(c *filecache.Cache) *filecache.Cache {
	h.t.Helper()

	if err := c.Close(); err != nil {
		h.t.Fatalf("Close: %v", err)
	}

	return h.open()
}

// files lists the entry files in the cache directory.
func (h *harness) files() []string {
	h.t.Helper()

	return testutil.ListFiles(h.t, h.dir, filecache.SnapshotFileName, filecache.LockFileName)
}

func (h *harness) path(key string) string {
	return filepath.Join(h.dir, string(filecache.EncodeKey(key)))
}

func mustSet(t *testing.T, c *filecache.Cache, key string, v filecache.Value, ttl filecache.TTL) {
	t.Helper()

	if err := c.Set(key, v, ttl); err != nil {
		t.Fatalf("Set(%q): %v", key, err)
	}
}

func mustFlush(t *testing.T, c *filecache.Cache) {
	t.Helper()

	if err := c.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

func encodedNames(keys ...string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(filecache.EncodeKey(k))
	}

	return out
}

func sorted(names []string) []string {
	slices.Sort(names)

	return names
}

func inf() float64 { return math.Inf(1) }
