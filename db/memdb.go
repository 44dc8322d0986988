package db

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/swapflow-hq/swapflow/api/models"
)

// MemDB is a map-backed Database used in tests and local development.
// It applies the same forward-cursor and not-found semantics as PostgresDB.
type MemDB struct {
	mu      sync.RWMutex
	intents map[string]*models.Intent
	cursors map[uint64]uint64
}

// NewMemDB creates an empty in-memory database.
func NewMemDB() *MemDB {
	return &MemDB{
		intents: make(map[string]*models.Intent),
		cursors: make(map[uint64]uint64),
	}
}

func (m *MemDB) Close() error { return nil }
func (m *MemDB) Ping() error  { return nil }

func (m *MemDB) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, nil
}

func (m *MemDB) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return nil
}

func (m *MemDB) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return nil, nil
}

func (m *MemDB) CreateIntent(ctx context.Context, intent *models.Intent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.intents[intent.ID]; ok {
		return errors.Errorf("intent already exists: %s", intent.ID)
	}

	now := time.Now()
	if intent.CreatedAt.IsZero() {
		intent.CreatedAt = now
	}
	if intent.UpdatedAt.IsZero() {
		intent.UpdatedAt = now
	}

	clone := *intent
	m.intents[intent.ID] = &clone
	return nil
}

func (m *MemDB) GetIntent(ctx context.Context, id string) (*models.Intent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	intent, ok := m.intents[id]
	if !ok {
		return nil, errors.Wrapf(ErrIntentNotFound, "id %s", id)
	}

	clone := *intent
	return &clone, nil
}

func (m *MemDB) GetIntentByOnchainID(ctx context.Context, onchainID uint64) (*models.Intent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, intent := range m.intents {
		if intent.OnchainID == onchainID {
			clone := *intent
			return &clone, nil
		}
	}

	return nil, errors.Wrapf(ErrIntentNotFound, "onchain id %d", onchainID)
}

func (m *MemDB) ListIntents(ctx context.Context, page, limit int) ([]*models.Intent, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]*models.Intent, 0, len(m.intents))
	for _, intent := range m.intents {
		clone := *intent
		all = append(all, &clone)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	offset := (page - 1) * limit
	if offset >= len(all) {
		return nil, len(all), nil
	}

	end := offset + limit
	if end > len(all) {
		end = len(all)
	}

	return all[offset:end], len(all), nil
}

func (m *MemDB) UpdateIntentStatus(ctx context.Context, id string, status models.IntentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	intent, ok := m.intents[id]
	if !ok {
		return errors.Wrapf(ErrIntentNotFound, "id %s", id)
	}

	intent.Status = status
	intent.UpdatedAt = time.Now()
	return nil
}

func (m *MemDB) SetIntentOnchainID(ctx context.Context, id string, onchainID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	intent, ok := m.intents[id]
	if !ok {
		return errors.Wrapf(ErrIntentNotFound, "id %s", id)
	}

	intent.OnchainID = onchainID
	intent.UpdatedAt = time.Now()
	return nil
}

func (m *MemDB) ListStaleIntents(ctx context.Context, olderThan time.Time, limit int) ([]*models.Intent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stale []*models.Intent
	for _, intent := range m.intents {
		if intent.Status.Terminal() || !intent.UpdatedAt.Before(olderThan) {
			continue
		}
		clone := *intent
		stale = append(stale, &clone)
	}

	sort.Slice(stale, func(i, j int) bool {
		return stale[i].UpdatedAt.Before(stale[j].UpdatedAt)
	})

	if len(stale) > limit {
		stale = stale[:limit]
	}

	return stale, nil
}

func (m *MemDB) GetLastProcessedBlock(ctx context.Context, chainID uint64) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cursors[chainID], nil
}

func (m *MemDB) UpdateLastProcessedBlock(ctx context.Context, chainID uint64, blockNumber uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cursors[chainID] < blockNumber {
		m.cursors[chainID] = blockNumber
	}
	return nil
}

func (m *MemDB) InitDB(ctx context.Context) error { return nil }
