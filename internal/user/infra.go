package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type infra struct {
	db *sql.DB
}

func NewInfra(db *sql.DB) Infra {
	return &infra{db: db}
}

func (i *infra) Upsert(ctx context.Context, telegramID int64, username string) (*User, bool, error) {
	var u User
	err := i.db.QueryRowContext(ctx, `
		INSERT INTO users (telegram_id, username)
		VALUES ($1, $2)
		ON CONFLICT (telegram_id) DO NOTHING
		RETURNING telegram_id, username, created_at, is_active
	`, telegramID, username).Scan(&u.TelegramID, &u.Username, &u.CreatedAt, &u.IsActive)
	if err == nil {
		return &u, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("insert user: %w", err)
	}

	existing, err := i.Get(ctx, telegramID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (i *infra) Get(ctx context.Context, telegramID int64) (*User, error) {
	var (
		u        User
		username sql.NullString
	)
	err := i.db.QueryRowContext(ctx, `
		SELECT telegram_id, username, created_at, is_active
		FROM users
		WHERE telegram_id = $1
	`, telegramID).Scan(&u.TelegramID, &username, &u.CreatedAt, &u.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrUserNotFound, telegramID)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.Username = username.String
	return &u, nil
}

func (i *infra) SetActive(ctx context.Context, telegramID int64, active bool) error {
	res, err := i.db.ExecContext(ctx, `
		UPDATE users SET is_active = $2 WHERE telegram_id = $1
	`, telegramID, active)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ErrUserNotFound, telegramID)
	}
	return nil
}
