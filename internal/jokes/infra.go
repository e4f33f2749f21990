package jokes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) Repo {
	return &repo{db: db}
}

func (r *repo) Add(ctx context.Context, j *Joke) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO jokes (text, category)
		VALUES ($1, NULLIF($2, ''))
		RETURNING id, created_at
	`, j.Text, j.Category).Scan(&j.ID, &j.CreatedAt)
}

func (r *repo) Random(ctx context.Context, category string) (*Joke, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, text, COALESCE(category, ''), created_at
		FROM jokes
		WHERE $1 = '' OR category = $1
		ORDER BY random()
		LIMIT 1
	`, category)

	var j Joke
	if err := row.Scan(&j.ID, &j.Text, &j.Category, &j.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoJokes
		}
		return nil, fmt.Errorf("random joke: %w", err)
	}
	return &j, nil
}
