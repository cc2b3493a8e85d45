package filecache

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the cache's prometheus collectors. Every collector carries a
// constant "dir" label so several caches can share one registry.
type metrics struct {
	hits           prometheus.Counter
	misses         prometheus.Counter
	expired        prometheus.Counter
	sets           prometheus.Counter
	deletes        prometheus.Counter
	flushWritten   prometheus.Counter
	flushRemoved   prometheus.Counter
	orphansRemoved prometheus.Counter
	flushErrors    prometheus.Counter
	entries        prometheus.Gauge

	reg prometheus.Registerer
}

func newMetrics(dir string) *metrics {
	labels := prometheus.Labels{"dir": dir}

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "filecache",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}

	return &metrics{
		hits:           counter("hits_total", "Reads that returned a cached value."),
		misses:         counter("misses_total", "Reads that returned the default."),
		expired:        counter("expired_total", "Reads that found an expired entry."),
		sets:           counter("sets_total", "Values staged by Set."),
		deletes:        counter("deletes_total", "Keys staged for deletion by Delete."),
		flushWritten:   counter("flush_written_total", "Entry files written by Flush."),
		flushRemoved:   counter("flush_removed_total", "Entry files removed by Flush for deleted or expired keys."),
		orphansRemoved: counter("orphans_removed_total", "Files without an index entry removed by Flush."),
		flushErrors:    counter("flush_errors_total", "Failed file operations during Flush."),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "filecache",
			Name:        "entries",
			Help:        "Entries in the metadata index.",
			ConstLabels: labels,
		}),
	}
}

func (m *metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.hits, m.misses, m.expired, m.sets, m.deletes,
		m.flushWritten, m.flushRemoved, m.orphansRemoved, m.flushErrors,
		m.entries,
	}
}

// register adds every collector to reg. On failure the ones already added
// are removed again.
func (m *metrics) register(reg prometheus.Registerer) error {
	if reg == nil {
		return nil
	}

	for i, c := range m.collectors() {
		err := reg.Register(c)
		if err != nil {
			for _, added := range m.collectors()[:i] {
				reg.Unregister(added)
			}

			return fmt.Errorf("registering metrics: %w", err)
		}
	}

	m.reg = reg

	return nil
}

func (m *metrics) unregister() error {
	if m.reg == nil {
		return nil
	}

	var errs []error

	for _, c := range m.collectors() {
		if !m.reg.Unregister(c) {
			errs = append(errs, errors.New("collector was not registered"))
		}
	}

	m.reg = nil

	if len(errs) > 0 {
		return fmt.Errorf("unregistering metrics: %w", errors.Join(errs...))
	}

	return nil
}
