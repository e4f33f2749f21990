package user

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryInfra хранит пользователей в памяти, для тестов и локального запуска.
type MemoryInfra struct {
	mu    sync.Mutex
	users map[int64]*User
}

func NewMemoryInfra() *MemoryInfra {
	return &MemoryInfra{users: make(map[int64]*User)}
}

func (m *MemoryInfra) Upsert(_ context.Context, id int64, username string) (*User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		c := *u
		return &c, false, nil
	}
	u := &User{TelegramID: id, Username: username, CreatedAt: time.Now(), IsActive: true}
	m.users[id] = u
	c := *u
	return &c, true, nil
}

func (m *MemoryInfra) Get(_ context.Context, id int64) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUserNotFound, id)
	}
	c := *u
	return &c, nil
}

func (m *MemoryInfra) SetActive(_ context.Context, id int64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUserNotFound, id)
	}
	u.IsActive = active
	return nil
}
