package user

import (
	"context"
	"fmt"
	"log"

	"github.com/Vovarama1992/speech_billing/internal/ledger"
)

type service struct {
	infra        Infra
	ledger       ledger.Repo
	startBalance int64
}

func NewService(infra Infra, ledgerRepo ledger.Repo, startBalance int64) Service {
	return &service{
		infra:        infra,
		ledger:       ledgerRepo,
		startBalance: startBalance,
	}
}

// Register идемпотентен: повторный вызов возвращает того же пользователя и
// текущий баланс. Open тоже идемпотентен, поэтому недооткрытый баланс
// досоздаётся при следующем обращении.
func (s *service) Register(ctx context.Context, telegramID int64, username string) (*User, *ledger.Balance, error) {
	u, created, err := s.infra.Upsert(ctx, telegramID, username)
	if err != nil {
		return nil, nil, err
	}

	b, err := s.ledger.Open(ctx, telegramID, s.startBalance)
	if err != nil {
		return nil, nil, fmt.Errorf("open balance for %d: %w", telegramID, err)
	}

	if created {
		log.Printf("[user] registered tgID=%d username=%s balance=%d", telegramID, username, b.Balance)
	}
	return u, b, nil
}

func (s *service) EnsureSystemUser(ctx context.Context) error {
	_, _, err := s.infra.Upsert(ctx, SystemUserID, "system")
	return err
}

func (s *service) Get(ctx context.Context, telegramID int64) (*User, error) {
	return s.infra.Get(ctx, telegramID)
}

func (s *service) SetActive(ctx context.Context, telegramID int64, active bool) error {
	return s.infra.SetActive(ctx, telegramID, active)
}
