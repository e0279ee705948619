package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"tablequeue/internal/database"
	"tablequeue/internal/domain"
	"tablequeue/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock(t time.Time) *fixedClock {
	return &fixedClock{now: t}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fixedClock) StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Publish(ctx context.Context, channel, eventType string, payload any) error {
	args := m.Called(ctx, channel, eventType, payload)
	return args.Error(0)
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedTableType(t *testing.T, db *database.DB, id, shopID string, capacity int) {
	t.Helper()
	require.NoError(t, db.CreateTableType(context.Background(), &models.TableType{
		ID:        id,
		ShopID:    shopID,
		Type:      "type-" + id,
		Capacity:  capacity,
		CreatedAt: time.Now(),
	}))
}

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

// hookedStore wraps a SQLite store so tests can act at fixed points of a
// unit of work.
type hookedStore struct {
	*database.DB

	mu sync.Mutex
	// afterGet runs once, right after the next GetQueue returns.
	afterGet func()
	// failUpdate may reject an UpdateQueue made inside a unit of work.
	failUpdate func(q *models.Queue) error
}

func (s *hookedStore) takeAfterGet() func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.afterGet
	s.afterGet = nil
	return f
}

func (s *hookedStore) setAfterGet(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.afterGet = f
}

func (s *hookedStore) GetQueue(ctx context.Context, id string) (*models.Queue, error) {
	q, err := s.DB.GetQueue(ctx, id)
	if f := s.takeAfterGet(); f != nil {
		f()
	}
	return q, err
}

func (s *hookedStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.QueueRepository) error) error {
	return s.DB.WithinTx(ctx, func(ctx context.Context, tx domain.QueueRepository) error {
		return fn(ctx, &hookedTx{QueueRepository: tx, store: s})
	})
}

type hookedTx struct {
	domain.QueueRepository
	store *hookedStore
}

func (t *hookedTx) GetQueue(ctx context.Context, id string) (*models.Queue, error) {
	q, err := t.QueueRepository.GetQueue(ctx, id)
	if f := t.store.takeAfterGet(); f != nil {
		f()
	}
	return q, err
}

func (t *hookedTx) UpdateQueue(ctx context.Context, q *models.Queue) error {
	if t.store.failUpdate != nil {
		if err := t.store.failUpdate(q); err != nil {
			return err
		}
	}
	return t.QueueRepository.UpdateQueue(ctx, q)
}
