package user

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfra_UpsertExisting(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs(int64(5), "eve").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users")).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"telegram_id", "username", "created_at", "is_active"}).
			AddRow(int64(5), "eve", now, true))

	u, created, err := NewInfra(db).Upsert(context.Background(), 5, "eve")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(5), u.TelegramID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInfra_SetActiveMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users")).
		WithArgs(int64(9), false).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewInfra(db).SetActive(context.Background(), 9, false)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
