package billing

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Vovarama1992/speech_billing/internal/ledger"
	"github.com/Vovarama1992/speech_billing/internal/tasks"
)

type unbilledRepo struct {
	db *sql.DB
}

func NewUnbilledRepo(db *sql.DB) Unbilled {
	return &unbilledRepo{db: db}
}

func (r *unbilledRepo) ListUncharged(ctx context.Context, finishedBefore time.Time, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.id
		FROM tasks t
		WHERE t.status = $1
		  AND t.cost IS NOT NULL
		  AND t.finished_at < $2
		  AND NOT EXISTS (SELECT 1 FROM ledger_entries e WHERE e.task_id = t.id)
		ORDER BY t.finished_at
		LIMIT $3
	`, tasks.StatusCompleted, finishedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("list uncharged tasks: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MemoryUnbilled работает поверх репозиториев в памяти.
type MemoryUnbilled struct {
	tasks  *tasks.MemoryRepo
	ledger *ledger.MemoryRepo
}

func NewMemoryUnbilled(taskRepo *tasks.MemoryRepo, ledgerRepo *ledger.MemoryRepo) *MemoryUnbilled {
	return &MemoryUnbilled{tasks: taskRepo, ledger: ledgerRepo}
}

func (m *MemoryUnbilled) ListUncharged(_ context.Context, finishedBefore time.Time, limit int) ([]string, error) {
	var ids []string
	for _, t := range m.tasks.Completed(finishedBefore) {
		if t.Cost == nil || m.ledger.HasEntry(t.ID) {
			continue
		}
		ids = append(ids, t.ID)
		if limit > 0 && len(ids) == limit {
			break
		}
	}
	return ids, nil
}
