package infra

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping failed: %w", err)
	}
	return db, nil
}

// IsUniqueViolation распознаёт нарушение UNIQUE/PRIMARY KEY.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		telegram_id BIGINT PRIMARY KEY,
		username    TEXT,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		is_active   BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS balances (
		user_id    BIGINT PRIMARY KEY REFERENCES users(telegram_id),
		balance    BIGINT NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id         BIGSERIAL PRIMARY KEY,
		user_id    BIGINT NOT NULL REFERENCES users(telegram_id),
		amount     BIGINT NOT NULL,
		reason     TEXT NOT NULL DEFAULT '',
		task_id    TEXT UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id          TEXT PRIMARY KEY,
		user_id     BIGINT NOT NULL,
		kind        TEXT NOT NULL,
		payload     TEXT NOT NULL,
		status      TEXT NOT NULL,
		result      TEXT,
		cost        BIGINT,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		finished_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS tasks_user_idx ON tasks (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS logs (
		id         BIGSERIAL PRIMARY KEY,
		user_id    BIGINT NOT NULL,
		action     TEXT NOT NULL,
		details    TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS credit_packages (
		id         BIGSERIAL PRIMARY KEY,
		name       TEXT NOT NULL,
		credits    BIGINT NOT NULL,
		price      NUMERIC(10,2) NOT NULL,
		active     BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS jokes (
		id         BIGSERIAL PRIMARY KEY,
		text       TEXT NOT NULL,
		category   VARCHAR(50),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id         TEXT PRIMARY KEY,
		user_id    BIGINT NOT NULL REFERENCES users(telegram_id),
		package_id BIGINT NOT NULL REFERENCES credit_packages(id),
		credits    BIGINT NOT NULL,
		status     TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		paid_at    TIMESTAMPTZ
	)`,
}

// EnsureSchema создаёт таблицы, если их ещё нет.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
