package storage

import (
	"context"
	"fmt"

	"github.com/Vovarama1992/speech_billing/internal/infra"
)

// Open выбирает хранилище по STORAGE. Шлюз и воркер должны видеть одно
// и то же хранилище: общий каталог или общий бакет.
func Open(ctx context.Context, kind, dir string, s3 infra.S3Options) (Store, error) {
	switch kind {
	case "local":
		return NewLocalStore(dir)
	case "s3":
		client, err := infra.NewS3Client(ctx, s3)
		if err != nil {
			return nil, err
		}
		return NewS3Store(client), nil
	}
	return nil, fmt.Errorf("unknown storage %q", kind)
}
