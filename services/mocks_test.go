package services_test

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NewtonMutugi/ict-innovations-africa-backend/models"
	"github.com/NewtonMutugi/ict-innovations-africa-backend/providers"
	"github.com/NewtonMutugi/ict-innovations-africa-backend/repository"
	"github.com/NewtonMutugi/ict-innovations-africa-backend/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// ---- in-memory payment repository ----

type memRepo struct {
	mu          sync.Mutex
	rows        map[string]models.Payment
	nextID      uint
	creates     int
	writes      int
	createErr   error
	findErr     error
	applyErr    error
	allErr      error
	staleResult []models.Payment
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[string]models.Payment)}
}

func (m *memRepo) Create(_ context.Context, p *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.rows[p.Reference]; ok {
		return repository.ErrDuplicateReference
	}
	m.nextID++
	p.ID = m.nextID
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	m.rows[p.Reference] = *p
	m.creates++
	return nil
}

func (m *memRepo) FindByReference(_ context.Context, reference string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	p, ok := m.rows[reference]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (m *memRepo) ApplyTransition(_ context.Context, t repository.Transition) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applyErr != nil {
		return false, m.applyErr
	}
	p, ok := m.rows[t.Reference]
	if !ok || p.Status != t.From {
		return false, nil
	}
	p.Status = t.To
	p.UpdatedAt = t.At
	p.GatewayPayload = t.Payload
	if t.To == models.StatusSuccess {
		at := t.At
		p.PaidAt = &at
	}
	m.rows[t.Reference] = p
	m.writes++
	return true, nil
}

func (m *memRepo) FindAll(_ context.Context, page, limit int) ([]models.Payment, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.allErr != nil {
		return nil, 0, m.allErr
	}
	all := make([]models.Payment, 0, len(m.rows))
	for _, p := range m.rows {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	start := (page - 1) * limit
	if start > len(all) {
		start = len(all)
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], int64(len(all)), nil
}

func (m *memRepo) FindStalePending(_ context.Context, _ time.Time, limit int) ([]models.Payment, error) {
	if len(m.staleResult) > limit {
		return m.staleResult[:limit], nil
	}
	return m.staleResult, nil
}

func (m *memRepo) get(reference string) (models.Payment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[reference]
	return p, ok
}

func (m *memRepo) counts() (creates, writes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creates, m.writes
}

// ---- fake gateway ----

type fakeGateway struct {
	mu          sync.Mutex
	initResult  *providers.InitializeResult
	initErr     error
	lastInit    providers.InitializeRequest
	initCalls   int
	statuses    map[string]string
	verifyErr   error
	verifyCalls int32
}

func newFakeGateway(reference string) *fakeGateway {
	return &fakeGateway{
		initResult: &providers.InitializeResult{
			Reference:        reference,
			AuthorizationURL: "https://checkout.paystack.com/" + reference,
			AccessCode:       "ac_" + reference,
		},
		statuses: make(map[string]string),
	}
}

func (g *fakeGateway) Initialize(_ context.Context, req providers.InitializeRequest) (*providers.InitializeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initCalls++
	g.lastInit = req
	if g.initErr != nil {
		return nil, g.initErr
	}
	res := *g.initResult
	return &res, nil
}

func (g *fakeGateway) Verify(_ context.Context, reference string) (*providers.VerifyResult, error) {
	atomic.AddInt32(&g.verifyCalls, 1)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	status, ok := g.statuses[reference]
	if !ok {
		status = "ongoing"
	}
	return &providers.VerifyResult{
		Reference: reference,
		Status:    status,
		Amount:    decimal.NewFromInt(5000),
		Currency:  "KES",
		Raw:       []byte(`{"reference":"` + reference + `","status":"` + status + `"}`),
	}, nil
}

func (g *fakeGateway) setStatus(reference, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[reference] = status
}

// ---- plan repository ----

type fakePlans struct {
	plans map[uint]models.HostingPlan
	err   error
}

func (f *fakePlans) FindByID(_ context.Context, id uint) (*models.HostingPlan, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.plans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

// ---- verification cache ----

type mapCache struct {
	mu   sync.Mutex
	data map[string]providers.VerifyResult
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string]providers.VerifyResult)}
}

func (c *mapCache) Get(_ context.Context, reference string) (*providers.VerifyResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.data[reference]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (c *mapCache) Set(_ context.Context, r *providers.VerifyResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[r.Reference] = *r
	return nil
}

// ---- event publisher ----

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, event models.PaymentEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *mockPublisher) Close() error { return nil }

// ---- callbacker ----

type fakeCallbacker struct {
	mu      sync.Mutex
	results map[string]error
	changed map[string]bool
	calls   []string
}

func (f *fakeCallbacker) Callback(_ context.Context, reference string) (*services.CallbackResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, reference)
	if err := f.results[reference]; err != nil {
		return nil, err
	}
	return &services.CallbackResult{
		Record:  &models.Payment{Reference: reference, Status: models.StatusSuccess},
		Changed: f.changed[reference],
	}, nil
}
