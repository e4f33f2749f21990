package packages

import (
	"context"
	"errors"
	"time"

	"github.com/Vovarama1992/speech_billing/internal/ledger"
)

var (
	ErrPackageNotFound     = errors.New("credit package not found")
	ErrPackageInactive     = errors.New("credit package is inactive")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrPaymentNotSucceeded = errors.New("payment has not succeeded")
)

const (
	PaymentPending   = "pending"
	PaymentSucceeded = "succeeded"
	PaymentCanceled  = "canceled"
)

// Package это пакет кредитов, который пользователь покупает за деньги.
type Package struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Credits   int64     `json:"credits"`
	Price     float64   `json:"price"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type Payment struct {
	ID        string     `json:"id"`
	UserID    int64      `json:"user_id"`
	PackageID int64      `json:"package_id"`
	Credits   int64      `json:"credits"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
}

type Repo interface {
	Create(ctx context.Context, pkg *Package) error
	Update(ctx context.Context, pkg *Package) error
	GetByID(ctx context.Context, id int64) (*Package, error)
	List(ctx context.Context, onlyActive bool) ([]*Package, error)

	SavePayment(ctx context.Context, p *Payment) error
	GetPayment(ctx context.Context, id string) (*Payment, error)
	// MarkPayment переводит платёж из pending; false, если он уже не pending.
	MarkPayment(ctx context.Context, id, status string) (bool, error)
}

// Provider это платёжная система.
type Provider interface {
	// CreatePayment возвращает ссылку на оплату и id платежа у провайдера.
	CreatePayment(ctx context.Context, userID int64, pkg *Package) (payURL, paymentID string, err error)
	// PaymentStatus спрашивает актуальный статус у провайдера.
	PaymentStatus(ctx context.Context, paymentID string) (string, error)
}

type Service interface {
	List(ctx context.Context, onlyActive bool) ([]*Package, error)
	Create(ctx context.Context, pkg *Package) error
	Update(ctx context.Context, pkg *Package) error

	// покупка пакета (создание оплаты)
	CreatePayment(ctx context.Context, userID, packageID int64) (string, error)
	// ConfirmPayment зачисляет кредиты один раз на платёж.
	ConfirmPayment(ctx context.Context, paymentID string) (*Payment, *ledger.Balance, error)
}
