package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory implementation of Store.
//
// It is intended for tests, the CLI's scratch mode and single-process
// editors where persistence across restarts is not required. Versions are
// deep-copied through their JSON form on the way in and out so callers
// cannot mutate stored graphs.
type MemStore struct {
	mu       sync.RWMutex
	closed   bool
	versions map[string]map[string]memRecord // appID -> id -> record
	seq      uint64
	now      func() time.Time
}

type memRecord struct {
	version Version
	graph   string
	seq     uint64
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		versions: make(map[string]map[string]memRecord),
		now:      time.Now,
	}
}

// SaveVersion implements Store.
func (m *MemStore) SaveVersion(_ context.Context, v Version) (Version, error) {
	v, err := prepare(v, m.now)
	if err != nil {
		return Version{}, err
	}
	data, err := encodeGraph(v.Graph)
	if err != nil {
		return Version{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Version{}, ErrClosed
	}

	app, ok := m.versions[v.AppID]
	if !ok {
		app = make(map[string]memRecord)
		m.versions[v.AppID] = app
	}
	m.seq++
	app[v.ID] = memRecord{version: v, graph: data, seq: m.seq}
	return m.materialize(app[v.ID])
}

// LoadVersion implements Store.
func (m *MemStore) LoadVersion(_ context.Context, appID, id string) (Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return Version{}, ErrClosed
	}

	rec, ok := m.versions[appID][id]
	if !ok {
		return Version{}, ErrNotFound
	}
	return m.materialize(rec)
}

// LatestVersion implements Store.
func (m *MemStore) LatestVersion(ctx context.Context, appID string) (Version, error) {
	list, err := m.ListVersions(ctx, appID, 1)
	if err != nil {
		return Version{}, err
	}
	if len(list) == 0 {
		return Version{}, ErrNotFound
	}
	return list[0], nil
}

// ListVersions implements Store.
func (m *MemStore) ListVersions(_ context.Context, appID string, limit int) ([]Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	recs := make([]memRecord, 0, len(m.versions[appID]))
	for _, rec := range m.versions[appID] {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i].version.CreatedAt, recs[j].version.CreatedAt
		if !a.Equal(b) {
			return a.After(b)
		}
		return recs[i].seq > recs[j].seq
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}

	out := make([]Version, 0, len(recs))
	for _, rec := range recs {
		v, err := m.materialize(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// DeleteVersion implements Store.
func (m *MemStore) DeleteVersion(_ context.Context, appID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	if _, ok := m.versions[appID][id]; !ok {
		return ErrNotFound
	}
	delete(m.versions[appID], id)
	if len(m.versions[appID]) == 0 {
		delete(m.versions, appID)
	}
	return nil
}

// Close marks the store closed. Double-close is a no-op.
func (m *MemStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MemStore) materialize(rec memRecord) (Version, error) {
	g, err := decodeGraph(rec.graph)
	if err != nil {
		return Version{}, err
	}
	v := rec.version
	v.Graph = g
	return v, nil
}
