package predictor

import (
	"context"
	"sort"
	"sync"

	"github.com/dreamup/ui-locator/internal/frame"
)

type sampleKey struct {
	elementType string
	res         frame.Resolution
}

// MemoryStore keeps the training log in process memory
type MemoryStore struct {
	mu      sync.RWMutex
	samples []Sample
	index   map[sampleKey][]int
}

// NewMemoryStore creates an empty in-memory log
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{index: make(map[sampleKey][]int)}
}

// Append adds s to the log
func (m *MemoryStore) Append(ctx context.Context, s Sample) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	k := sampleKey{elementType: s.ElementType, res: s.Resolution}
	m.index[k] = append(m.index[k], len(m.samples))
	m.samples = append(m.samples, s)
	return nil
}

// Recent returns up to limit samples for the key, newest first
func (m *MemoryStore) Recent(ctx context.Context, elementType string, res frame.Resolution, limit int) ([]Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx := m.index[sampleKey{elementType: elementType, res: res}]
	out := make([]Sample, 0, min(limit, len(idx)))
	for i := len(idx) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.samples[idx[i]])
	}
	return out, nil
}

// Stats summarises the log per key, ordered by element type then resolution
func (m *MemoryStore) Stats(ctx context.Context) ([]KeyStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make([]KeyStats, 0, len(m.index))
	for k, idx := range m.index {
		stats = append(stats, KeyStats{ElementType: k.elementType, Resolution: k.res, Samples: len(idx)})
	}
	sort.Slice(stats, func(i, j int) bool {
		a, b := stats[i], stats[j]
		if a.ElementType != b.ElementType {
			return a.ElementType < b.ElementType
		}
		if a.Resolution.Width != b.Resolution.Width {
			return a.Resolution.Width < b.Resolution.Width
		}
		return a.Resolution.Height < b.Resolution.Height
	})
	return stats, nil
}
