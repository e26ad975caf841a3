package storage

import (
	"context"
	"sync"

	"github.com/postpilotapp/postpilot/internal/apperr"
)

// Memory is an in-process backend with an optional byte quota. It backs
// tests and local development.
type Memory struct {
	mu    sync.RWMutex
	data  map[string][]byte
	quota int64
}

// NewMemory creates a backend limited to quota bytes of stored values.
// A quota of 0 means unlimited.
func NewMemory(quota int64) *Memory {
	return &Memory{data: make(map[string][]byte), quota: quota}
}

func (m *Memory) Get(ctx context.Context, keys ...string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string][]byte, len(keys))
	for _, key := range keys {
		if v, ok := m.data[key]; ok {
			cp := make([]byte, len(v))
			copy(cp, v)
			result[key] = cp
		}
	}
	return result, nil
}

func (m *Memory) Set(ctx context.Context, entries map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.quota > 0 {
		var total int64
		for key, v := range m.data {
			if _, replaced := entries[key]; replaced {
				continue
			}
			total += int64(len(v))
		}
		for _, v := range entries {
			total += int64(len(v))
		}
		if total > m.quota {
			return apperr.New(apperr.Quota, "storage quota exceeded")
		}
	}

	for key, v := range entries {
		cp := make([]byte, len(v))
		copy(cp, v)
		m.data[key] = cp
	}
	return nil
}

func (m *Memory) Remove(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *Memory) BytesInUse(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total int64
	for _, v := range m.data {
		total += int64(len(v))
	}
	return total, nil
}
