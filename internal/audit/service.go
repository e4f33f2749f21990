package audit

import (
	"context"

	"github.com/Vovarama1992/speech_billing/internal/user"
	"go.uber.org/zap"
)

type Service struct {
	repo Repo
	log  *zap.SugaredLogger
}

func NewService(repo Repo, log *zap.SugaredLogger) *Service {
	return &Service{repo: repo, log: log}
}

// Log пишет запись в таблицу logs и дублирует её в zap. userID == 0
// означает системное событие.
func (s *Service) Log(ctx context.Context, userID int64, action, details string) {
	if userID == 0 {
		userID = user.SystemUserID
	}

	s.log.Infow("[audit] "+action, "user_id", userID, "details", details)

	if err := s.repo.Insert(ctx, &Record{UserID: userID, Action: action, Details: details}); err != nil {
		s.log.Errorw("[audit] insert failed", "action", action, "user_id", userID, "err", err)
	}
}

func (s *Service) History(ctx context.Context, userID int64, limit int) ([]*Record, error) {
	return s.repo.ListByUser(ctx, userID, limit)
}
