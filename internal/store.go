package internal

import (
	"slices"
	"strings"

	"github.com/dmitrymomot/conduit/pkg/codec"
)

// Store is the per-request key/value area shared by middleware, gates and
// handlers. Keys are trimmed and lowercased. Values are kept as MessagePack
// blobs. A value reads back into any type that can hold every field of the
// stored value; a struct with other fields does not match.
//
// A Store belongs to a single request and is not safe for concurrent use.
type Store struct {
	values map[string][]byte
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{values: make(map[string][]byte)}
}

func storeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Set encodes v and stores it under key, replacing any previous value.
func (s *Store) Set(key string, v any) error {
	data, err := codec.MsgPack.Marshal(v)
	if err != nil {
		return err
	}
	s.values[storeKey(key)] = data
	return nil
}

// Get decodes the value stored under key into dst, which must be a pointer.
// It returns false if the key is absent or the value does not fit dst.
func (s *Store) Get(key string, dst any) bool {
	data, ok := s.values[storeKey(key)]
	if !ok {
		return false
	}
	return codec.UnmarshalMsgPackStrict(data, dst) == nil
}

// Remove deletes key.
func (s *Store) Remove(key string) {
	delete(s.values, storeKey(key))
}

// Has reports whether key is present.
func (s *Store) Has(key string) bool {
	_, ok := s.values[storeKey(key)]
	return ok
}

// Clear removes every entry.
func (s *Store) Clear() {
	clear(s.values)
}

func (s *Store) Len() int {
	return len(s.values)
}

func (s *Store) IsEmpty() bool {
	return len(s.values) == 0
}

// Keys returns the normalized keys in sorted order.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// StoreValue reads key from the store as a V.
func StoreValue[V any](s *Store, key string) (V, bool) {
	var v V
	if !s.Get(key, &v) {
		var zero V
		return zero, false
	}
	return v, true
}
