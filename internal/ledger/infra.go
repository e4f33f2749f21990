package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Vovarama1992/speech_billing/internal/infra"
)

type repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) Repo {
	return &repo{db: db}
}

func (r *repo) Get(ctx context.Context, userID int64) (*Balance, error) {
	var b Balance
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, balance, updated_at
		FROM balances
		WHERE user_id = $1
	`, userID).Scan(&b.UserID, &b.Balance, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user=%d", ErrBalanceNotFound, userID)
		}
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return &b, nil
}

func (r *repo) Open(ctx context.Context, userID, initial int64) (*Balance, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO balances (user_id, balance)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, initial)
	if err != nil {
		return nil, fmt.Errorf("open balance: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 1 && initial != 0 {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ledger_entries (user_id, amount, reason)
			VALUES ($1, $2, 'start balance')
		`, userID, initial); err != nil {
			return nil, fmt.Errorf("open balance entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return r.Get(ctx, userID)
}

// ApplyDelta меняет баланс одним UPDATE ... RETURNING и пишет проводку в той же
// транзакции. Неотрицательность баланса здесь не проверяется.
func (r *repo) ApplyDelta(ctx context.Context, d Delta) (*Balance, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var b Balance
	err = tx.QueryRowContext(ctx, `
		UPDATE balances
		SET balance = balance + $2,
		    updated_at = now()
		WHERE user_id = $1
		RETURNING user_id, balance, updated_at
	`, d.UserID, d.Amount).Scan(&b.UserID, &b.Balance, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user=%d", ErrBalanceNotFound, d.UserID)
		}
		return nil, fmt.Errorf("update balance: %w", err)
	}

	var taskID sql.NullString
	if d.TaskID != "" {
		taskID = sql.NullString{String: d.TaskID, Valid: true}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (user_id, amount, reason, task_id)
		VALUES ($1, $2, $3, $4)
	`, d.UserID, d.Amount, d.Reason, taskID); err != nil {
		if infra.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: task=%s", ErrDuplicateEntry, d.TaskID)
		}
		return nil, fmt.Errorf("insert ledger entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *repo) History(ctx context.Context, userID int64, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, amount, reason, task_id, created_at
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger history: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var (
			e      Entry
			taskID sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.Reason, &taskID, &e.CreatedAt); err != nil {
			return nil, err
		}
		if taskID.Valid {
			e.TaskID = &taskID.String
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
