package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"listings-api/domain"
	"listings-api/migrations"
	"listings-api/normalize"
	"listings-api/repositories"
	"listings-api/storage"
)

// memoryStore es un storage.ImageStore en memoria
type memoryStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
	next  int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{blobs: make(map[string][]byte)}
}

func (m *memoryStore) Save(_ context.Context, name string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	key := fmt.Sprintf("blob-%d", m.next)
	m.blobs[key] = data
	return key, nil
}

func (m *memoryStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

func (m *memoryStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}

// recordingPublisher guarda los eventos publicados
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.ListingEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event domain.ListingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) actions() []domain.EventAction {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventAction, len(p.events))
	for i, e := range p.events {
		out[i] = e.Action
	}
	return out
}

type testEnv struct {
	db        *gorm.DB
	repos     repositories.Repositories
	cache     repositories.CacheRepository
	store     *memoryStore
	publisher *recordingPublisher
	notifier  *ChangeNotifier
	n         *normalize.Normalizer
	logger    *zap.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	_, err = migrations.NewMigrator(db).Up()
	require.NoError(t, err)

	env := &testEnv{
		db:        db,
		repos:     repositories.NewRepositories(db),
		cache:     repositories.NewCacheRepository(repositories.CacheOptions{}, zap.NewNop()),
		store:     newMemoryStore(),
		publisher: &recordingPublisher{},
		n:         normalize.Default(),
		logger:    zap.NewNop(),
	}
	env.notifier = NewChangeNotifier(env.cache, env.publisher, env.logger)
	return env
}

func (e *testEnv) listingService() ListingService {
	return NewListingService(e.repos, e.cache, e.store, e.notifier, e.n, e.logger)
}

func (e *testEnv) importService() ImportService {
	return NewImportService(e.repos, e.store, e.notifier, e.n, e.logger)
}

func (e *testEnv) memoService() MemoService {
	return NewMemoService(e.repos.Listings, e.notifier, e.n, e.logger)
}

func (e *testEnv) imageService() ImageService {
	return NewImageService(e.repos, e.store, e.notifier, e.n, e.logger)
}

func (e *testEnv) collectionService() CollectionService {
	return NewCollectionService(e.repos, e.notifier, e.logger)
}

// addListing guarda un aviso con el nombre y el texto de precio (alquiler o venta) indicados
func (e *testEnv) addListing(t *testing.T, name, price string, area float64) *domain.Listing {
	l := &domain.Listing{ExclusiveArea: area, Status: domain.StatusAvailable, Source: domain.SourceManual, PropertyType: "사무실"}
	normalize.ApplyName(l, e.n.CleanBuildingName(name))
	p, err := normalize.ParsePrice(price)
	require.NoError(t, err)
	p.Apply(l)
	require.NoError(t, e.repos.Listings.Create(context.Background(), l))
	return l
}
