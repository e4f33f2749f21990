package audit

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

type repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) Repo {
	return &repo{db: db}
}

func (r *repo) Insert(ctx context.Context, rec *Record) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO logs (user_id, action, details)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, rec.UserID, rec.Action, rec.Details).Scan(&rec.ID, &rec.CreatedAt)
}

func (r *repo) ListByUser(ctx context.Context, userID int64, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, action, details, created_at
		FROM logs
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Action, &rec.Details, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

type MemoryRepo struct {
	mu      sync.Mutex
	records []*Record
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{}
}

func (m *MemoryRepo) Insert(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec.ID = int64(len(m.records) + 1)
	rec.CreatedAt = time.Now()
	c := *rec
	m.records = append(m.records, &c)
	return nil
}

func (m *MemoryRepo) ListByUser(_ context.Context, userID int64, limit int) ([]*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Record
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].UserID == userID {
			c := *m.records[i]
			out = append(out, &c)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// Actions возвращает действия всех записей в порядке записи.
func (m *MemoryRepo) Actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r.Action)
	}
	return out
}
