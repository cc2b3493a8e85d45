package testutil

import "fmt"

// Op is one generated cache operation. Values are plain Go values
// (string, int64, float64, bool, []any, map[string]any) so callers convert
// them with the value constructor of the package under test.
type Op interface {
	String() string
}

// OpSet stores Value under Key. TTLSeconds of 0 means no expiry.
type OpSet struct {
	Key        string
	Value      any
	TTLSeconds int64
}

func (o OpSet) String() string {
	return fmt.Sprintf("set %s=%v ttl=%d", o.Key, o.Value, o.TTLSeconds)
}

// OpLookup reads Key.
type OpLookup struct{ Key string }

func (o OpLookup) String() string { return "lookup " + o.Key }

// OpHas checks Key for presence.
type OpHas struct{ Key string }

func (o OpHas) String() string { return "has " + o.Key }

// OpDelete deletes Key.
type OpDelete struct{ Key string }

func (o OpDelete) String() string { return "delete " + o.Key }

// OpClear deletes every entry.
type OpClear struct{}

func (OpClear) String() string { return "clear" }

// OpAdvance moves the clock forward.
type OpAdvance struct{ Seconds int }

func (o OpAdvance) String() string { return fmt.Sprintf("advance %ds", o.Seconds) }

// OpFlush persists pending changes.
type OpFlush struct{}

func (OpFlush) String() string { return "flush" }

// OpReopen closes the cache and opens it again on the same directory.
type OpReopen struct{}

func (OpReopen) String() string { return "reopen" }
