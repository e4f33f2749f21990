package packages

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type MemoryRepo struct {
	mu       sync.Mutex
	nextID   int64
	packages map[int64]*Package
	payments map[string]*Payment
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		packages: make(map[int64]*Package),
		payments: make(map[string]*Payment),
	}
}

func (m *MemoryRepo) Create(_ context.Context, pkg *Package) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	pkg.ID = m.nextID
	pkg.CreatedAt = time.Now()
	c := *pkg
	m.packages[pkg.ID] = &c
	return nil
}

func (m *MemoryRepo) Update(_ context.Context, pkg *Package) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.packages[pkg.ID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrPackageNotFound, pkg.ID)
	}
	c := *pkg
	c.CreatedAt = cur.CreatedAt
	m.packages[pkg.ID] = &c
	return nil
}

func (m *MemoryRepo) GetByID(_ context.Context, id int64) (*Package, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pkg, ok := m.packages[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrPackageNotFound, id)
	}
	c := *pkg
	return &c, nil
}

func (m *MemoryRepo) List(_ context.Context, onlyActive bool) ([]*Package, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Package
	for _, pkg := range m.packages {
		if onlyActive && !pkg.Active {
			continue
		}
		c := *pkg
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Credits < out[j].Credits })
	return out, nil
}

func (m *MemoryRepo) SavePayment(_ context.Context, p *Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p.CreatedAt = time.Now()
	c := *p
	m.payments[p.ID] = &c
	return nil
}

func (m *MemoryRepo) GetPayment(_ context.Context, id string) (*Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payments[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPaymentNotFound, id)
	}
	c := *p
	return &c, nil
}

func (m *MemoryRepo) MarkPayment(_ context.Context, id, status string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payments[id]
	if !ok || p.Status != PaymentPending {
		return false, nil
	}
	p.Status = status
	if status == PaymentSucceeded {
		now := time.Now()
		p.PaidAt = &now
	}
	return true, nil
}
