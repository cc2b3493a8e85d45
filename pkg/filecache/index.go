package filecache

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"time"

	"github.com/bytedance/sonic"
)

// Entry describes one cached key: the type of the stored value, whether the
// payload is serialized, and the optional TTL window.
//
// TTL and Created are either both set or both nil.
type Entry struct {
	Type       Kind
	Serialized bool

	// TTL is the time-to-live in seconds.
	TTL *int64

	// Created is the Unix time (seconds) when the TTL window started.
	Created *int64
}

// HasExpiry reports whether the entry carries a TTL window.
func (e Entry) HasExpiry() bool {
	return e.TTL != nil && e.Created != nil
}

// ExpiresAt returns the first instant at which the entry counts as expired.
func (e Entry) ExpiresAt() (time.Time, bool) {
	if !e.HasExpiry() {
		return time.Time{}, false
	}

	return time.Unix(e.expiresUnix(), 0), true
}

// Expired reports whether now >= created + ttl. Entries without a TTL
// window never expire.
func (e Entry) Expired(now time.Time) bool {
	if !e.HasExpiry() {
		return false
	}

	return now.Unix() >= e.expiresUnix()
}

// expiresUnix is created + ttl, saturated at math.MaxInt64.
func (e Entry) expiresUnix() int64 {
	created, ttl := *e.Created, *e.TTL
	if ttl > 0 && created > math.MaxInt64-ttl {
		return math.MaxInt64
	}

	return created + ttl
}

// snapshotEntry is the persisted shape of an Entry.
type snapshotEntry struct {
	Type       string `json:"type"`
	Serialized bool   `json:"serialized,omitempty"`
	TTL        *int64 `json:"ttl,omitempty"`
	Created    *int64 `json:"created,omitempty"`
}

// index maps encoded keys to entries. It is owned by one Cache and guarded
// by the Cache mutex.
type index struct {
	entries map[EncodedKey]Entry
}

func newIndex() *index {
	return &index{entries: make(map[EncodedKey]Entry)}
}

// loadIndex decodes a snapshot. An empty snapshot is an empty index. On a
// decode error the returned index is empty and the error describes why.
// Individual malformed entries are skipped and counted in dropped.
func loadIndex(data []byte) (ix *index, dropped int, err error) {
	ix = newIndex()

	if len(data) == 0 {
		return ix, 0, nil
	}

	var raw map[string]snapshotEntry

	err = sonic.ConfigStd.Unmarshal(data, &raw)
	if err != nil {
		return newIndex(), 0, fmt.Errorf("decoding metadata snapshot: %w", err)
	}

	for name, se := range raw {
		key := EncodedKey(name)
		if !key.Valid() {
			dropped++
			continue
		}

		kind, kindErr := ParseKind(se.Type)
		if kindErr != nil {
			dropped++
			continue
		}

		entry := Entry{Type: kind, Serialized: se.Serialized}

		// Keep the TTL pair only when it is complete and sane.
		if se.TTL != nil && se.Created != nil && *se.TTL >= 0 && *se.Created <= math.MaxInt64-*se.TTL {
			ttl, created := *se.TTL, *se.Created
			entry.TTL = &ttl
			entry.Created = &created
		}

		ix.entries[key] = entry
	}

	return ix, dropped, nil
}

func (ix *index) get(k EncodedKey) (Entry, bool) {
	e, ok := ix.entries[k]
	return e, ok
}

func (ix *index) put(k EncodedKey, e Entry) {
	ix.entries[k] = e
}

func (ix *index) remove(k EncodedKey) {
	delete(ix.entries, k)
}

func (ix *index) len() int {
	return len(ix.entries)
}

// keys returns the encoded keys in sorted order.
func (ix *index) keys() []EncodedKey {
	return slices.Sorted(maps.Keys(ix.entries))
}

// reconcile drops every entry whose file is not in present and returns the
// dropped keys in sorted order.
func (ix *index) reconcile(present map[EncodedKey]struct{}) []EncodedKey {
	var dropped []EncodedKey

	for _, k := range ix.keys() {
		if _, ok := present[k]; !ok {
			delete(ix.entries, k)
			dropped = append(dropped, k)
		}
	}

	return dropped
}

// expired returns the keys of entries expired at now, in sorted order.
func (ix *index) expired(now time.Time) []EncodedKey {
	var out []EncodedKey

	for _, k := range ix.keys() {
		if ix.entries[k].Expired(now) {
			out = append(out, k)
		}
	}

	return out
}

// marshal encodes the index for the snapshot file. An empty index encodes
// to zero bytes, not "{}", so "no entries" and "no snapshot" read the same.
func (ix *index) marshal() ([]byte, error) {
	if len(ix.entries) == 0 {
		return []byte{}, nil
	}

	raw := make(map[string]snapshotEntry, len(ix.entries))
	for k, e := range ix.entries {
		raw[string(k)] = snapshotEntry{
			Type:       e.Type.String(),
			Serialized: e.Serialized,
			TTL:        e.TTL,
			Created:    e.Created,
		}
	}

	data, err := sonic.ConfigStd.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encoding metadata snapshot: %w", err)
	}

	return data, nil
}
