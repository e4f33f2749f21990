package notificator

import (
	"context"
	"log"
)

// Service не даёт сбою уведомления сломать основной поток.
type Service struct {
	infra Notificator
}

func NewService(infra Notificator) *Service {
	return &Service{infra: infra}
}

func (s *Service) Notify(ctx context.Context, err error, details string) error {
	if nErr := s.infra.Notify(ctx, err, details); nErr != nil {
		log.Printf("[notificator] notify failed: %v (original: %v)", nErr, err)
	}
	return nil
}

func (s *Service) UserNotify(ctx context.Context, chatID int64, text string) error {
	return s.infra.UserNotify(ctx, chatID, text)
}
