// Package kvstore is the durable key/value persistence the migration engine keeps its job record
// and credentials in.  Values are JSON documents; there is no querying beyond a single key.
package kvstore

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/juju/errors"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("confluence-migrate.kvstore")

// Store gets, sets and deletes JSON values by key.  Get reports a missing key with an error
// satisfying errors.Is(err, errors.NotFound); Delete of a missing key succeeds.
type Store interface {
	Get(ctx context.Context, key string, out interface{}) error
	Set(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, key string) error
}

// Memory is a Store that lives as long as the process.  Values are kept encoded, so callers
// never share structure with what is stored.
type Memory struct {
	mu     sync.Mutex
	values map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key string, out interface{}) error {
	m.mu.Lock()
	raw, ok := m.values[key]
	m.mu.Unlock()
	if !ok {
		return errors.NotFoundf("key %q", key)
	}
	return errors.Annotatef(json.Unmarshal(raw, out), "decoding %q", key)
}

func (m *Memory) Set(_ context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Annotatef(err, "encoding %q", key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = raw
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// Keys lists what is stored, for tests and debugging.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	return keys
}
