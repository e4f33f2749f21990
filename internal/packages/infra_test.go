package packages

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepo_GetByIDMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM credit_packages")).
		WithArgs(int64(5)).
		WillReturnError(sql.ErrNoRows)

	_, err = NewRepo(db).GetByID(context.Background(), 5)
	assert.ErrorIs(t, err, ErrPackageNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_MarkPaymentOnlyFromPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments")).
		WithArgs("pay-1", PaymentSucceeded).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments")).
		WithArgs("pay-1", PaymentSucceeded).
		WillReturnResult(sqlmock.NewResult(0, 0))

	r := NewRepo(db)
	ok, err := r.MarkPayment(context.Background(), "pay-1", PaymentSucceeded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.MarkPayment(context.Background(), "pay-1", PaymentSucceeded)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_UpdateMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE credit_packages")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewRepo(db).Update(context.Background(), &Package{ID: 9, Name: "x", Credits: 1, Price: 1})
	assert.ErrorIs(t, err, ErrPackageNotFound)
}
