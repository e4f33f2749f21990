package user

import (
	"context"
	"errors"
	"time"

	"github.com/Vovarama1992/speech_billing/internal/ledger"
)

// SystemUserID владеет записями, у которых нет конечного пользователя.
const SystemUserID int64 = -1

var ErrUserNotFound = errors.New("user not found")

type User struct {
	TelegramID int64     `json:"telegram_id"`
	Username   string    `json:"username"`
	CreatedAt  time.Time `json:"created_at"`
	IsActive   bool      `json:"is_active"`
}

// Infra хранит пользователей.
type Infra interface {
	// Upsert создаёт пользователя; created=false, если он уже был.
	Upsert(ctx context.Context, telegramID int64, username string) (u *User, created bool, err error)
	Get(ctx context.Context, telegramID int64) (*User, error)
	SetActive(ctx context.Context, telegramID int64, active bool) error
}

// Service регистрирует пользователей и открывает им баланс.
type Service interface {
	Register(ctx context.Context, telegramID int64, username string) (*User, *ledger.Balance, error)
	EnsureSystemUser(ctx context.Context) error
	Get(ctx context.Context, telegramID int64) (*User, error)
	SetActive(ctx context.Context, telegramID int64, active bool) error
}
