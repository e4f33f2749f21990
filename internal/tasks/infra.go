package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Vovarama1992/speech_billing/internal/infra"
)

type repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) Repo {
	return &repo{db: db}
}

const taskColumns = `id, user_id, kind, payload, status, result, cost, created_at, finished_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*Task, error) {
	var (
		t          Task
		result     sql.NullString
		cost       sql.NullInt64
		finishedAt sql.NullTime
	)
	if err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Kind,
		&t.Payload,
		&t.Status,
		&result,
		&cost,
		&t.CreatedAt,
		&finishedAt,
	); err != nil {
		return nil, err
	}

	if result.Valid {
		t.Result = &result.String
	}
	if cost.Valid {
		t.Cost = &cost.Int64
	}
	if finishedAt.Valid {
		t.FinishedAt = &finishedAt.Time
	}
	return &t, nil
}

func (r *repo) Create(ctx context.Context, t *Task) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO tasks (id, user_id, kind, payload, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, t.ID, t.UserID, t.Kind, t.Payload, StatusCreated).Scan(&t.CreatedAt)
	if err != nil {
		if infra.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrTaskExists, t.ID)
		}
		return fmt.Errorf("insert task: %w", err)
	}

	t.Status = StatusCreated
	return nil
}

func (r *repo) Get(ctx context.Context, id string) (*Task, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)

	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (r *repo) Update(ctx context.Context, id string, u Update) (*Task, error) {
	if err := u.validate(); err != nil {
		return nil, err
	}

	// finished_at ставится только при переходе в терминальный статус;
	// result/cost пишутся через COALESCE, поэтому повторно не перетираются.
	row := r.db.QueryRowContext(ctx, `
		UPDATE tasks
		SET status = $3,
		    result = COALESCE(result, $4),
		    cost = COALESCE(cost, $5),
		    finished_at = CASE WHEN $6 THEN now() ELSE finished_at END
		WHERE id = $1 AND status = $2
		RETURNING `+taskColumns,
		id, u.From, u.To, u.Result, u.Cost, u.To.IsTerminal(),
	)

	t, err := scanTask(row)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update task: %w", err)
	}

	current, getErr := r.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return current, fmt.Errorf("%w: %s is %s, expected %s", ErrInvalidTransition, id, current.Status, u.From)
}

func (r *repo) ListByUser(ctx context.Context, userID int64, limit int) ([]*Task, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *repo) DeleteFinishedBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM tasks
		WHERE finished_at IS NOT NULL AND finished_at < $1
	`, before)
	if err != nil {
		return 0, fmt.Errorf("delete finished tasks: %w", err)
	}
	return res.RowsAffected()
}
