package storage

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// KVStore layers RLP encoding over a raw Database so module code can persist
// typed records without caring about the byte representation. It is the
// concrete implementation behind the sale engine's Storage interface.
type KVStore struct {
	db Database
}

// NewKVStore wraps the provided database.
func NewKVStore(db Database) *KVStore {
	return &KVStore{db: db}
}

// KVGet decodes the value stored under key into out. The first return value
// reports whether the key existed.
func (s *KVStore) KVGet(key []byte, out interface{}) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("kv store not initialised")
	}
	raw, err := s.db.Get(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, fmt.Errorf("kv store: decode %q: %w", key, err)
	}
	return true, nil
}

// KVPut encodes value with RLP and stores it under key.
func (s *KVStore) KVPut(key []byte, value interface{}) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("kv store not initialised")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("kv store: encode %q: %w", key, err)
	}
	return s.db.Put(key, encoded)
}

// KVDelete removes the value stored under key, if any.
func (s *KVStore) KVDelete(key []byte) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("kv store not initialised")
	}
	return s.db.Delete(key)
}
