package infra

import (
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
)

func TestMapS3Error(t *testing.T) {
	err := mapS3Error("audio/in_1.ogg", minio.ErrorResponse{Code: "NoSuchKey", Message: "gone"})
	assert.ErrorIs(t, err, ErrObjectNotFound)

	err = mapS3Error("audio/in_1.ogg", errors.New("connection reset"))
	assert.NotErrorIs(t, err, ErrObjectNotFound)
	assert.ErrorContains(t, err, "connection reset")
}

func TestPublicURL(t *testing.T) {
	c := &S3Client{bucket: "voices", host: "https://s3.example.com"}
	assert.Equal(t, "https://s3.example.com/voices/audio%2Fout_1_t.mp3", c.PublicURL("audio/out_1_t.mp3"))
}
