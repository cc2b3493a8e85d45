package filecache

import (
	"maps"
	"slices"
)

// staging holds writes and deletes that have not reached the disk yet.
// A key is never in both sets.
type staging struct {
	writes  map[EncodedKey][]byte
	deletes map[EncodedKey]struct{}
}

func newStaging() *staging {
	return &staging{
		writes:  make(map[EncodedKey][]byte),
		deletes: make(map[EncodedKey]struct{}),
	}
}

// stageWrite records data for k and cancels a pending delete.
func (s *staging) stageWrite(k EncodedKey, data []byte) {
	delete(s.deletes, k)
	s.writes[k] = data
}

// stageDelete records a delete for k and drops a pending write.
func (s *staging) stageDelete(k EncodedKey) {
	delete(s.writes, k)
	s.deletes[k] = struct{}{}
}

func (s *staging) pendingWrite(k EncodedKey) ([]byte, bool) {
	data, ok := s.writes[k]
	return data, ok
}

func (s *staging) pendingDelete(k EncodedKey) bool {
	_, ok := s.deletes[k]
	return ok
}

func (s *staging) dropWrite(k EncodedKey) {
	delete(s.writes, k)
}

func (s *staging) writeKeys() []EncodedKey {
	return slices.Sorted(maps.Keys(s.writes))
}

func (s *staging) deleteKeys() []EncodedKey {
	return slices.Sorted(maps.Keys(s.deletes))
}

func (s *staging) clearDeletes() {
	clear(s.deletes)
}
