package packages

import (
	"context"
	"errors"
	"fmt"

	"github.com/Vovarama1992/speech_billing/internal/audit"
	"github.com/Vovarama1992/speech_billing/internal/ledger"
	"go.uber.org/zap"
)

// paymentKey делает зачисление по платежу единственным в журнале.
func paymentKey(paymentID string) string {
	return "payment:" + paymentID
}

type service struct {
	repo     Repo
	provider Provider
	ledger   ledger.Repo
	audit    audit.Logger
	log      *zap.SugaredLogger
}

func NewService(
	repo Repo,
	provider Provider,
	ledgerRepo ledger.Repo,
	auditLog audit.Logger,
	log *zap.SugaredLogger,
) Service {
	return &service{
		repo:     repo,
		provider: provider,
		ledger:   ledgerRepo,
		audit:    auditLog,
		log:      log,
	}
}

// ---------------------------
// CRUD
// ---------------------------
func (s *service) List(ctx context.Context, onlyActive bool) ([]*Package, error) {
	return s.repo.List(ctx, onlyActive)
}

func (s *service) Create(ctx context.Context, pkg *Package) error {
	if err := validatePackage(pkg); err != nil {
		return err
	}
	return s.repo.Create(ctx, pkg)
}

func (s *service) Update(ctx context.Context, pkg *Package) error {
	if err := validatePackage(pkg); err != nil {
		return err
	}
	return s.repo.Update(ctx, pkg)
}

func validatePackage(pkg *Package) error {
	if pkg.Name == "" {
		return fmt.Errorf("package name is required")
	}
	if pkg.Credits <= 0 {
		return fmt.Errorf("package credits must be positive, got %d", pkg.Credits)
	}
	if pkg.Price <= 0 {
		return fmt.Errorf("package price must be positive, got %.2f", pkg.Price)
	}
	return nil
}

func (s *service) CreatePayment(ctx context.Context, userID, packageID int64) (string, error) {
	pkg, err := s.repo.GetByID(ctx, packageID)
	if err != nil {
		return "", fmt.Errorf("load credit package: %w", err)
	}
	if !pkg.Active {
		return "", fmt.Errorf("%w: %d", ErrPackageInactive, packageID)
	}

	s.log.Infow("[pay] start", "user_id", userID, "package_id", pkg.ID, "price", pkg.Price)

	payURL, payID, err := s.provider.CreatePayment(ctx, userID, pkg)
	if err != nil {
		s.log.Errorw("[pay] provider error", "user_id", userID, "err", err)
		return "", err
	}

	if err := s.repo.SavePayment(ctx, &Payment{
		ID:        payID,
		UserID:    userID,
		PackageID: pkg.ID,
		Credits:   pkg.Credits,
		Status:    PaymentPending,
	}); err != nil {
		return "", fmt.Errorf("save payment: %w", err)
	}

	s.log.Infow("[pay] created", "payment_id", payID, "url", payURL)
	return payURL, nil
}

// ConfirmPayment сверяет статус с провайдером и зачисляет кредиты.
// Повторное подтверждение того же платежа возвращает текущий баланс.
func (s *service) ConfirmPayment(ctx context.Context, paymentID string) (*Payment, *ledger.Balance, error) {
	p, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, nil, err
	}

	status, err := s.provider.PaymentStatus(ctx, paymentID)
	if err != nil {
		return p, nil, fmt.Errorf("payment status: %w", err)
	}

	switch status {
	case PaymentSucceeded:
	case PaymentCanceled:
		if _, err := s.repo.MarkPayment(ctx, paymentID, PaymentCanceled); err != nil {
			return p, nil, err
		}
		p.Status = PaymentCanceled
		return p, nil, fmt.Errorf("%w: %s is %s", ErrPaymentNotSucceeded, paymentID, status)
	default:
		return p, nil, fmt.Errorf("%w: %s is %s", ErrPaymentNotSucceeded, paymentID, status)
	}

	b, err := s.ledger.ApplyDelta(ctx, ledger.Delta{
		UserID: p.UserID,
		Amount: p.Credits,
		Reason: fmt.Sprintf("package %d", p.PackageID),
		TaskID: paymentKey(p.ID),
	})
	if errors.Is(err, ledger.ErrDuplicateEntry) {
		// кредиты уже зачислены, дочиняем статус, если он отстал
		if _, err := s.repo.MarkPayment(ctx, paymentID, PaymentSucceeded); err != nil {
			s.log.Errorw("[pay] mark succeeded failed", "payment_id", paymentID, "err", err)
		}
		b, err = s.ledger.Get(ctx, p.UserID)
		if err != nil {
			return p, nil, err
		}
		p.Status = PaymentSucceeded
		return p, b, nil
	}
	if err != nil {
		return p, nil, fmt.Errorf("credit payment: %w", err)
	}

	if _, err := s.repo.MarkPayment(ctx, paymentID, PaymentSucceeded); err != nil {
		s.log.Errorw("[pay] mark succeeded failed", "payment_id", paymentID, "err", err)
	}
	p.Status = PaymentSucceeded

	s.audit.Log(ctx, p.UserID, audit.ActionBalanceTopUp,
		fmt.Sprintf("payment=%s credits=%d balance=%d", p.ID, p.Credits, b.Balance))
	return p, b, nil
}
