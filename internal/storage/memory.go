// Package storage provides the contract stores handed to executions through
// host hooks: an in-memory store and a SQLite-backed store.
package storage

import (
	"encoding/hex"
	"sync"

	"github.com/Myriagram/nvm/internal/core"
)

// MemoryStorage keeps entries in a sync.Map keyed by the hex form of the key.
type MemoryStorage struct {
	data *sync.Map
}

var _ core.Storage = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: new(sync.Map)}
}

// Get returns the value stored under key.
func (db *MemoryStorage) Get(key string) (string, bool, error) {
	if entry, ok := db.data.Load(hex.EncodeToString([]byte(key))); ok {
		return entry.(string), true, nil
	}
	return "", false, nil
}

// Put stores value under key.
func (db *MemoryStorage) Put(key, value string) error {
	db.data.Store(hex.EncodeToString([]byte(key)), value)
	return nil
}

// Del removes key. Removing a missing key is not an error.
func (db *MemoryStorage) Del(key string) error {
	db.data.Delete(hex.EncodeToString([]byte(key)))
	return nil
}

// Len returns the number of entries.
func (db *MemoryStorage) Len() int {
	n := 0
	db.data.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// NewBatch returns a batch of writes applied to db by Write.
func (db *MemoryStorage) NewBatch() *MemoryBatch {
	return &MemoryBatch{db: db}
}

type entry struct {
	key, value string
	del        bool
}

// MemoryBatch buffers writes until Write.
type MemoryBatch struct {
	db      *MemoryStorage
	entries []entry
}

// Put queues a write.
func (b *MemoryBatch) Put(key, value string) error {
	b.entries = append(b.entries, entry{key: key, value: value})
	return nil
}

// Del queues a removal.
func (b *MemoryBatch) Del(key string) error {
	b.entries = append(b.entries, entry{key: key, del: true})
	return nil
}

// Write applies the queued entries in order.
func (b *MemoryBatch) Write() error {
	for _, e := range b.entries {
		if e.del {
			_ = b.db.Del(e.key)
			continue
		}
		_ = b.db.Put(e.key, e.value)
	}
	return nil
}

// Reset drops the queued entries.
func (b *MemoryBatch) Reset() {
	b.entries = b.entries[:0]
}
