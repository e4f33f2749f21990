package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/Vovarama1992/speech_billing/internal/infra"
)

type S3Store struct {
	client ObjectClient
}

func NewS3Store(client ObjectClient) *S3Store {
	return &S3Store{client: client}
}

func (s *S3Store) Save(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := s.client.PutObject(ctx, key, data, contentType); err != nil {
		return "", err
	}
	return key, nil
}

func (s *S3Store) Load(ctx context.Context, ref string) ([]byte, error) {
	data, err := s.client.GetObject(ctx, ref)
	if err != nil {
		if errors.Is(err, infra.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, err
	}
	return data, nil
}
