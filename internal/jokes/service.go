package jokes

import (
	"context"
	"strings"
)

type service struct {
	repo Repo
}

func NewService(repo Repo) Service {
	return &service{repo: repo}
}

func (s *service) Add(ctx context.Context, text, category string) (*Joke, error) {
	j := &Joke{Text: strings.TrimSpace(text), Category: strings.TrimSpace(category)}
	if j.Text == "" {
		return nil, ErrEmptyJoke
	}
	if err := s.repo.Add(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}

func (s *service) Random(ctx context.Context, category string) (*Joke, error) {
	return s.repo.Random(ctx, strings.TrimSpace(category))
}
