package filecache

import (
	"fmt"
	"math"
	"time"
)

// TTL is an entry's time-to-live. The implementations are [Seconds],
// [Interval] and [Duration]. A nil TTL, or one that normalizes to zero
// seconds, means the entry never expires.
type TTL interface {
	seconds() (int64, error)
}

// Seconds is a TTL given as a plain count of seconds, stored verbatim.
// Negative values are rejected with [ErrInvalidArgument].
type Seconds int64

func (s Seconds) seconds() (int64, error) {
	if s < 0 {
		return 0, fmt.Errorf("%w: negative ttl %d", ErrInvalidArgument, int64(s))
	}

	return int64(s), nil
}

// Interval is a structured TTL. It normalizes to
// |Days|*86400 + |Hours|*3600 + |Minutes|*60 + |Seconds| seconds, so the
// sign of a component never shortens the window.
type Interval struct {
	Days    int64
	Hours   int64
	Minutes int64
	Seconds int64
}

func (iv Interval) seconds() (int64, error) {
	var total int64

	parts := [...]struct {
		n    int64
		unit int64
	}{
		{iv.Days, 86400},
		{iv.Hours, 3600},
		{iv.Minutes, 60},
		{iv.Seconds, 1},
	}

	for _, p := range parts {
		n := p.n
		if n == math.MinInt64 {
			return 0, fmt.Errorf("%w: interval %+v overflows", ErrInvalidArgument, iv)
		}

		if n < 0 {
			n = -n
		}

		if n > (math.MaxInt64-total)/p.unit {
			return 0, fmt.Errorf("%w: interval %+v overflows", ErrInvalidArgument, iv)
		}

		total += n * p.unit
	}

	return total, nil
}

// Duration is a TTL given as a [time.Duration]. It is rounded up to whole
// seconds, so a positive duration never becomes "no expiry". The window
// starts at the Unix second Set ran in, truncated, so the entry can expire
// up to one second before the exact duration has passed.
// Negative durations are rejected with [ErrInvalidArgument].
type Duration time.Duration

func (d Duration) seconds() (int64, error) {
	if d < 0 {
		return 0, fmt.Errorf("%w: negative ttl %s", ErrInvalidArgument, time.Duration(d))
	}

	secs := int64(time.Duration(d) / time.Second)
	if time.Duration(d)%time.Second != 0 {
		secs++
	}

	return secs, nil
}

// normalizeTTL returns the TTL in seconds; 0 means no expiry.
func normalizeTTL(ttl TTL) (int64, error) {
	if ttl == nil {
		return 0, nil
	}

	return ttl.seconds()
}
