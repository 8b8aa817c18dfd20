package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/juju/clock"

	"StoryStream/internal/domain"
	"StoryStream/internal/ports"
)

// MemoryRepository keeps records in process memory. It backs the "memory"
// store backend and tests.
type MemoryRepository struct {
	clock clock.Clock

	mu         sync.RWMutex
	records    []domain.Record
	identities domain.IdentitySet
	nextID     int64
	closed     bool
}

var _ ports.RecordStore = (*MemoryRepository)(nil)

// NewMemoryRepository builds an empty store. A nil clock means wall time.
func NewMemoryRepository(clk clock.Clock) *MemoryRepository {
	if clk == nil {
		clk = clock.WallClock
	}
	return &MemoryRepository{clock: clk, identities: domain.IdentitySet{}}
}

// Ensure reports ErrStorage once the repository has been closed.
func (m *MemoryRepository) Ensure(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return fmt.Errorf("%w: memory repository closed", domain.ErrStorage)
	}
	return nil
}

// LoadKnownIdentities returns a copy of the stored identity set.
func (m *MemoryRepository) LoadKnownIdentities(context.Context) (domain.IdentitySet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, fmt.Errorf("%w: memory repository closed", domain.ErrStorage)
	}

	out := make(domain.IdentitySet, len(m.identities))
	for id := range m.identities {
		out.Add(id)
	}
	return out, nil
}

// InsertNew stores every record or none of them. A record whose identity is
// already stored (or repeated in the batch) rejects the whole call.
func (m *MemoryRepository) InsertNew(_ context.Context, records []domain.Record) ([]domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("%w: memory repository closed", domain.ErrStorage)
	}

	batch := make(domain.IdentitySet, len(records))
	for _, rec := range records {
		id := rec.Identity()
		if m.identities.Has(id) || batch.Has(id) {
			return nil, fmt.Errorf("%w: duplicate identity %q %q", domain.ErrStorage, id.Title, id.Link)
		}
		batch.Add(id)
	}

	inserted := make([]domain.Record, len(records))
	for i, rec := range records {
		m.nextID++
		rec.ID = m.nextID
		inserted[i] = rec
	}
	for id := range batch {
		m.identities.Add(id)
	}
	m.records = append(m.records, inserted...)

	return inserted, nil
}

// QueryRecent counts records created after now-window.
func (m *MemoryRepository) QueryRecent(_ context.Context, window time.Duration) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, fmt.Errorf("%w: memory repository closed", domain.ErrStorage)
	}

	cutoff := m.clock.Now().Add(-window)
	count := 0
	for _, rec := range m.records {
		if rec.CreatedAt.After(cutoff) {
			count++
		}
	}
	return count, nil
}

// ListRecent returns all records, most recent first.
func (m *MemoryRepository) ListRecent(context.Context) ([]domain.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, fmt.Errorf("%w: memory repository closed", domain.ErrStorage)
	}

	out := make([]domain.Record, len(m.records))
	copy(out, m.records)
	sortNewestFirst(out)
	return out, nil
}

// Close marks the repository unusable.
func (m *MemoryRepository) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// sortNewestFirst orders by createdAt descending, ties broken by id descending.
func sortNewestFirst(records []domain.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID > records[j].ID
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
}
