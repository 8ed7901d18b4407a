package services_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/meditrace/ccam-assist/internal/domain/entities"
	"github.com/meditrace/ccam-assist/internal/domain/providers"
)

type MockActeRepository struct{ mock.Mock }

func (m *MockActeRepository) Create(ctx context.Context, acte *entities.Acte) (int64, error) {
	args := m.Called(ctx, acte)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockActeRepository) GetByID(ctx context.Context, id int64) (*entities.Acte, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Acte), args.Error(1)
}

func (m *MockActeRepository) GetByNumero(ctx context.Context, numero string) (*entities.Acte, error) {
	args := m.Called(ctx, numero)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Acte), args.Error(1)
}

func (m *MockActeRepository) Update(ctx context.Context, acte *entities.Acte) error {
	args := m.Called(ctx, acte)
	return args.Error(0)
}

func (m *MockActeRepository) ListFinalizedSince(ctx context.Context, sinceID int64, limit int) ([]*entities.Acte, error) {
	args := m.Called(ctx, sinceID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Acte), args.Error(1)
}

type MockAuditRepository struct{ mock.Mock }

func (m *MockAuditRepository) Append(ctx context.Context, entry *entities.AuditEntry) (int64, error) {
	args := m.Called(ctx, entry)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAuditRepository) GetByID(ctx context.Context, id int64) (*entities.AuditEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.AuditEntry), args.Error(1)
}

func (m *MockAuditRepository) ListByActe(ctx context.Context, acteID int64, filter entities.AuditTrailFilter) ([]*entities.AuditEntry, int, error) {
	args := m.Called(ctx, acteID, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*entities.AuditEntry), args.Int(1), args.Error(2)
}

func (m *MockAuditRepository) SetAnchored(ctx context.Context, id int64, transactionHash string) error {
	args := m.Called(ctx, id, transactionHash)
	return args.Error(0)
}

func (m *MockAuditRepository) MarkAbandoned(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockAuditRepository) IncrementAnchorAttempts(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockAuditRepository) ListUnanchored(ctx context.Context, limit int) ([]*entities.AuditEntry, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.AuditEntry), args.Error(1)
}

type MockOverrideRepository struct{ mock.Mock }

func (m *MockOverrideRepository) Create(ctx context.Context, override *entities.Override) (int64, error) {
	args := m.Called(ctx, override)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOverrideRepository) GetByID(ctx context.Context, id int64) (*entities.Override, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Override), args.Error(1)
}

func (m *MockOverrideRepository) ListByActe(ctx context.Context, acteID int64) ([]*entities.Override, error) {
	args := m.Called(ctx, acteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Override), args.Error(1)
}

func (m *MockOverrideRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOverrideRepository) SetTransactionHash(ctx context.Context, id int64, transactionHash string) error {
	args := m.Called(ctx, id, transactionHash)
	return args.Error(0)
}

func (m *MockOverrideRepository) Approve(ctx context.Context, id int64, approverID int64) error {
	args := m.Called(ctx, id, approverID)
	return args.Error(0)
}

func (m *MockOverrideRepository) Summary(ctx context.Context, from, to *time.Time) (*entities.OverrideSummary, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.OverrideSummary), args.Error(1)
}

type MockCatalogRepository struct{ mock.Mock }

func (m *MockCatalogRepository) GetByCode(ctx context.Context, code string) (*entities.CodeCCAM, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.CodeCCAM), args.Error(1)
}

func (m *MockCatalogRepository) ListActive(ctx context.Context) ([]*entities.CodeCCAM, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.CodeCCAM), args.Error(1)
}

type MockLedgerProvider struct{ mock.Mock }

func (m *MockLedgerProvider) Submit(ctx context.Context, payload *entities.AnchorPayload) (string, error) {
	args := m.Called(ctx, payload)
	return args.String(0), args.Error(1)
}

func (m *MockLedgerProvider) Query(ctx context.Context, transactionRef string) (*entities.AnchorPayload, error) {
	args := m.Called(ctx, transactionRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.AnchorPayload), args.Error(1)
}

func (m *MockLedgerProvider) ListForEntity(ctx context.Context, entityID int64) ([]string, error) {
	args := m.Called(ctx, entityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockEventBus struct{ mock.Mock }

func (m *MockEventBus) Publish(ctx context.Context, channel string, event *entities.AuditEvent) error {
	args := m.Called(ctx, channel, event)
	return args.Error(0)
}

func (m *MockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.AuditEvent, error) {
	args := m.Called(ctx, channel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan *entities.AuditEvent), args.Error(1)
}

func (m *MockEventBus) Close() error {
	args := m.Called()
	return args.Error(0)
}

// fakeCache is an in-memory CacheProvider for tests that exercise real
// cache interaction (hits, misses, single flight).
type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.data[key]
	if !ok {
		return nil, fmt.Errorf("key not found: %s", key)
	}
	return value, nil
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte, _ int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *fakeCache) SetNX(_ context.Context, key string, value []byte, _ int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.data[key]; exists {
		return false, nil
	}
	c.data[key] = value
	return true, nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *fakeCache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok, nil
}

// memActeRepo is an in-memory ActeRepository for tests that race real
// goroutines against each other. Reads return copies, the way a row
// scan does, so every caller mutates its own snapshot.
type memActeRepo struct {
	mu    sync.Mutex
	actes map[int64]*entities.Acte
}

func newMemActeRepo(actes ...*entities.Acte) *memActeRepo {
	repo := &memActeRepo{actes: make(map[int64]*entities.Acte)}
	for _, acte := range actes {
		stored := *acte
		repo.actes[acte.ID] = &stored
	}
	return repo
}

func (r *memActeRepo) Create(_ context.Context, acte *entities.Acte) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	acte.ID = int64(len(r.actes) + 1)
	stored := *acte
	r.actes[acte.ID] = &stored
	return acte.ID, nil
}

func (r *memActeRepo) GetByID(_ context.Context, id int64) (*entities.Acte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	acte, ok := r.actes[id]
	if !ok {
		return nil, fmt.Errorf("acte %d not found", id)
	}
	snapshot := *acte
	return &snapshot, nil
}

func (r *memActeRepo) GetByNumero(_ context.Context, numero string) (*entities.Acte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, acte := range r.actes {
		if acte.NumeroActe == numero {
			snapshot := *acte
			return &snapshot, nil
		}
	}
	return nil, fmt.Errorf("acte %s not found", numero)
}

func (r *memActeRepo) Update(_ context.Context, acte *entities.Acte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *acte
	r.actes[acte.ID] = &stored
	return nil
}

func (r *memActeRepo) ListFinalizedSince(_ context.Context, _ int64, _ int) ([]*entities.Acte, error) {
	return nil, nil
}

// fakeCompletion returns a scripted response and counts calls.
type fakeCompletion struct {
	response string
	err      error
	delay    time.Duration
	calls    atomic.Int64
}

func (f *fakeCompletion) Complete(ctx context.Context, _ providers.CompletionRequest) (string, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}
