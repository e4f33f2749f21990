package storage

import (
	"context"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("audio not found")

type Direction string

const (
	In  Direction = "in"
	Out Direction = "out"
)

// Store хранит аудио. Ссылка, возвращённая Save, передаётся в задачах как payload.
type Store interface {
	Save(ctx context.Context, key string, data []byte, contentType string) (ref string, err error)
	Load(ctx context.Context, ref string) ([]byte, error)
}

// ObjectClient это низкоуровневый клиент к S3.
type ObjectClient interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// Key строит путь к файлу: audio/in_42_<task>.ogg
func Key(dir Direction, userID int64, taskID, ext string) string {
	return fmt.Sprintf("audio/%s_%d_%s.%s", dir, userID, taskID, ext)
}
