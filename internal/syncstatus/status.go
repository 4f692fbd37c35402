// Package syncstatus supplements spec.md's Job Runtime progress reporting
// with the backing store the `sync status` CLI command reads from,
// grounded on the original Python service's Redis-backed
// SyncStatusManager and on ghostviper-tet-data-service's
// internal/redis/client.go key-namespacing pattern (SetEX with a fixed
// TTL, JSON-encoded value). Falls back to an in-memory store when no
// Redis address is configured, so the CLI stays usable without a Redis
// dependency in dev/test.
package syncstatus

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Snapshot is what `sync status` reports for one task.
type Snapshot struct {
	TaskName    string    `json:"task_name"`
	LastRunAt   time.Time `json:"last_run_at"`
	LastSuccess time.Time `json:"last_success"`
	NextRunAt   time.Time `json:"next_run_at"`
	Progress    int       `json:"progress"`
	LastError   string    `json:"last_error"`
}

// Store is the contract both backends satisfy.
type Store interface {
	Set(ctx context.Context, s Snapshot) error
	Get(ctx context.Context, taskName string) (Snapshot, bool, error)
	All(ctx context.Context) ([]Snapshot, error)
}

const keyPrefix = "leeksaver:sync:status:"
const ttl = 7 * 24 * time.Hour

// RedisStore persists snapshots under "leeksaver:sync:status:{task_name}",
// matching the key the original Python SyncStatusManager used.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(addr, password string, db int) *RedisStore {
	return &RedisStore{rdb: redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})}
}

func key(taskName string) string { return keyPrefix + taskName }

func (s *RedisStore) Set(ctx context.Context, snap Snapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key(snap.TaskName), b, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, taskName string) (Snapshot, bool, error) {
	b, err := s.rdb.Get(ctx, key(taskName)).Bytes()
	if err == redis.Nil {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}
	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return Snapshot{}, false, err
	}
	return snap, true, nil
}

func (s *RedisStore) All(ctx context.Context) ([]Snapshot, error) {
	var out []Snapshot
	iter := s.rdb.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		b, err := s.rdb.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}
		var snap Snapshot
		if err := json.Unmarshal(b, &snap); err == nil {
			out = append(out, snap)
		}
	}
	return out, iter.Err()
}

// MemStore is the in-memory fallback used when REDIS_ADDR is unset.
type MemStore struct {
	mu   sync.RWMutex
	data map[string]Snapshot
}

func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string]Snapshot)}
}

func (s *MemStore) Set(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[snap.TaskName] = snap
	return nil
}

func (s *MemStore) Get(_ context.Context, taskName string) (Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.data[taskName]
	return snap, ok, nil
}

func (s *MemStore) All(_ context.Context) ([]Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Snapshot, 0, len(s.data))
	for _, v := range s.data {
		out = append(out, v)
	}
	return out, nil
}

// New picks RedisStore when addr is non-empty, otherwise MemStore.
func New(addr, password string, db int) Store {
	if addr == "" {
		return NewMemStore()
	}
	return NewRedisStore(addr, password, db)
}
