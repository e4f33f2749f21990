package packages

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Vovarama1992/speech_billing/internal/audit"
	"github.com/Vovarama1992/speech_billing/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeProvider struct {
	mu      sync.Mutex
	status  map[string]string
	created int
	err     error
}

func (f *fakeProvider) CreatePayment(_ context.Context, userID int64, pkg *Package) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", "", f.err
	}
	f.created++
	id := "pay-" + pkg.Name
	f.status[id] = PaymentPending
	return "https://pay.example/" + id, id, nil
}

func (f *fakeProvider) PaymentStatus(_ context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status[id], nil
}

func (f *fakeProvider) set(id, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status[id] = status
}

type fixture struct {
	svc      Service
	repo     *MemoryRepo
	provider *fakeProvider
	ledger   *ledger.MemoryRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zaptest.NewLogger(t).Sugar()
	f := &fixture{
		repo:     NewMemoryRepo(),
		provider: &fakeProvider{status: make(map[string]string)},
		ledger:   ledger.NewMemoryRepo(),
	}
	f.svc = NewService(f.repo, f.provider, f.ledger, audit.NewService(audit.NewMemoryRepo(), log), log)

	_, err := f.ledger.Open(context.Background(), 7, 20)
	require.NoError(t, err)
	return f
}

func (f *fixture) pkg(t *testing.T, name string, credits int64, active bool) *Package {
	t.Helper()
	p := &Package{Name: name, Credits: credits, Price: 99, Active: active}
	require.NoError(t, f.svc.Create(context.Background(), p))
	return p
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Error(t, f.svc.Create(ctx, &Package{Name: "", Credits: 1, Price: 1}))
	assert.Error(t, f.svc.Create(ctx, &Package{Name: "x", Credits: 0, Price: 1}))
	assert.Error(t, f.svc.Create(ctx, &Package{Name: "x", Credits: 1, Price: 0}))
}

func TestList_OnlyActiveSortedByCredits(t *testing.T) {
	f := newFixture(t)
	f.pkg(t, "big", 100, true)
	f.pkg(t, "small", 10, true)
	f.pkg(t, "old", 50, false)

	active, err := f.svc.List(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "small", active[0].Name)
	assert.Equal(t, "big", active[1].Name)

	all, err := f.svc.List(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestCreatePayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.pkg(t, "basic", 50, true)

	url, err := f.svc.CreatePayment(ctx, 7, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/pay-basic", url)

	pay, err := f.repo.GetPayment(ctx, "pay-basic")
	require.NoError(t, err)
	assert.Equal(t, PaymentPending, pay.Status)
	assert.Equal(t, int64(50), pay.Credits)
}

func TestCreatePayment_Rejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inactive := f.pkg(t, "old", 50, false)

	_, err := f.svc.CreatePayment(ctx, 7, inactive.ID)
	assert.ErrorIs(t, err, ErrPackageInactive)

	_, err = f.svc.CreatePayment(ctx, 7, 999)
	assert.ErrorIs(t, err, ErrPackageNotFound)

	active := f.pkg(t, "basic", 50, true)
	f.provider.err = errors.New("provider down")
	_, err = f.svc.CreatePayment(ctx, 7, active.ID)
	assert.Error(t, err)
}

func TestConfirmPayment_CreditsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.pkg(t, "basic", 50, true)

	_, err := f.svc.CreatePayment(ctx, 7, p.ID)
	require.NoError(t, err)

	_, _, err = f.svc.ConfirmPayment(ctx, "pay-basic")
	require.ErrorIs(t, err, ErrPaymentNotSucceeded)

	f.provider.set("pay-basic", PaymentSucceeded)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, b, err := f.svc.ConfirmPayment(ctx, "pay-basic")
			assert.NoError(t, err)
			assert.Equal(t, int64(70), b.Balance)
		}()
	}
	wg.Wait()

	b, err := f.ledger.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(70), b.Balance)

	pay, err := f.repo.GetPayment(ctx, "pay-basic")
	require.NoError(t, err)
	assert.Equal(t, PaymentSucceeded, pay.Status)
	assert.NotNil(t, pay.PaidAt)
}

func TestConfirmPayment_Canceled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.pkg(t, "basic", 50, true)

	_, err := f.svc.CreatePayment(ctx, 7, p.ID)
	require.NoError(t, err)
	f.provider.set("pay-basic", PaymentCanceled)

	pay, _, err := f.svc.ConfirmPayment(ctx, "pay-basic")
	require.ErrorIs(t, err, ErrPaymentNotSucceeded)
	assert.Equal(t, PaymentCanceled, pay.Status)

	b, err := f.ledger.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(20), b.Balance)
}

func TestConfirmPayment_Unknown(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.ConfirmPayment(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}
