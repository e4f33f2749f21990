package jokes

import (
	"context"
	"errors"
	"time"
)

// TextPrice: стоимость текстового анекдота в кредитах.
const TextPrice int64 = 1

var (
	ErrNoJokes   = errors.New("no jokes")
	ErrEmptyJoke = errors.New("joke text is empty")
)

type Joke struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Category  string    `json:"category,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Repo interface {
	Add(ctx context.Context, j *Joke) error
	// Random отдаёт случайный анекдот; пустая категория означает любую.
	Random(ctx context.Context, category string) (*Joke, error)
}

type Service interface {
	Add(ctx context.Context, text, category string) (*Joke, error)
	Random(ctx context.Context, category string) (*Joke, error)
}
