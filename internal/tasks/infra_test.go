package tasks

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cols = []string{"id", "user_id", "kind", "payload", "status", "result", "cost", "created_at", "finished_at"}

func newMockRepo(t *testing.T) (Repo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepo(db), mock
}

func TestRepo_Create(t *testing.T) {
	r, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO tasks")).
		WithArgs("t1", int64(42), KindTextToSpeech, "hello", StatusCreated).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	task := newTask("t1")
	require.NoError(t, r.Create(context.Background(), task))
	assert.Equal(t, StatusCreated, task.Status)
	assert.Equal(t, now, task.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_CreateDuplicate(t *testing.T) {
	r, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO tasks")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := r.Create(context.Background(), newTask("t1"))
	assert.ErrorIs(t, err, ErrTaskExists)
}

func TestRepo_GetNotFound(t *testing.T) {
	r, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM tasks WHERE id = $1")).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err := r.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestRepo_GetNullables(t *testing.T) {
	r, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM tasks WHERE id = $1")).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("t1", int64(42), "SPEECH_TO_TEXT", "in.ogg", "COMPLETED", "hello", int64(4), now, now))

	got, err := r.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, KindSpeechToText, got.Kind)
	assert.Equal(t, StatusCompleted, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, "hello", *got.Result)
	require.NotNil(t, got.Cost)
	assert.Equal(t, int64(4), *got.Cost)
	require.NotNil(t, got.FinishedAt)
}

func TestRepo_UpdateCAS(t *testing.T) {
	r, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE tasks")).
		WithArgs("t1", StatusProcessing, StatusCompleted, "out.mp3", int64(5), true).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("t1", int64(42), "TEXT_TO_SPEECH", "hello", "COMPLETED", "out.mp3", int64(5), now, now))

	got, err := r.Update(context.Background(), "t1", Update{
		From:   StatusProcessing,
		To:     StatusCompleted,
		Result: strPtr("out.mp3"),
		Cost:   intPtr(5),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_UpdateLostRace(t *testing.T) {
	r, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE tasks")).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("FROM tasks WHERE id = $1")).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("t1", int64(42), "TEXT_TO_SPEECH", "hello", "ERROR", "boom", nil, now, now))

	current, err := r.Update(context.Background(), "t1", Update{From: StatusCreated, To: StatusProcessing})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	require.NotNil(t, current)
	assert.Equal(t, StatusError, current.Status)
	assert.Nil(t, current.Cost)
}

func TestRepo_UpdateRejectsIllegal(t *testing.T) {
	r, mock := newMockRepo(t)

	_, err := r.Update(context.Background(), "t1", Update{From: StatusCreated, To: StatusCompleted})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_DeleteFinishedBefore(t *testing.T) {
	r, mock := newMockRepo(t)
	before := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tasks")).
		WithArgs(before).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := r.DeleteFinishedBefore(context.Background(), before)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
