package jokes

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

type MemoryRepo struct {
	mu     sync.Mutex
	jokes  []Joke
	nextID int64
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{}
}

func (m *MemoryRepo) Add(_ context.Context, j *Joke) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	j.ID = m.nextID
	j.CreatedAt = time.Now()
	m.jokes = append(m.jokes, *j)
	return nil
}

func (m *MemoryRepo) Random(_ context.Context, category string) (*Joke, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pool []Joke
	for _, j := range m.jokes {
		if category == "" || j.Category == category {
			pool = append(pool, j)
		}
	}
	if len(pool) == 0 {
		return nil, ErrNoJokes
	}
	j := pool[rand.IntN(len(pool))]
	return &j, nil
}
