package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Vovarama1992/speech_billing/internal/infra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "audio/in_42_t1.ogg", Key(In, 42, "t1", "ogg"))
	assert.Equal(t, "audio/out_42_t1.mp3", Key(Out, 42, "t1", "mp3"))
}

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	ref, err := s.Save(ctx, Key(In, 1, "t1", "ogg"), []byte("OggS"), "audio/ogg")
	require.NoError(t, err)

	data, err := s.Load(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("OggS"), data)

	_, err = s.Load(ctx, "audio/missing.ogg")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Load(ctx, "../../etc/passwd")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Save(ctx, "/abs/path", []byte("x"), "")
	assert.Error(t, err)
}

type fakeObjects struct {
	data map[string][]byte
	err  error
}

func (f *fakeObjects) PutObject(_ context.Context, key string, data []byte, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.data[key] = data
	return nil
}

func (f *fakeObjects) GetObject(_ context.Context, key string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	d, ok := f.data[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", infra.ErrObjectNotFound, key)
	}
	return d, nil
}

func TestS3Store(t *testing.T) {
	ctx := context.Background()
	s := NewS3Store(&fakeObjects{data: map[string][]byte{}})

	ref, err := s.Save(ctx, "audio/out_1_t.mp3", []byte("ID3"), "audio/mpeg")
	require.NoError(t, err)
	assert.Equal(t, "audio/out_1_t.mp3", ref)

	data, err := s.Load(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3"), data)

	_, err = s.Load(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	broken := NewS3Store(&fakeObjects{err: errors.New("timeout")})
	_, err = broken.Load(ctx, "x")
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, "local", t.TempDir(), infra.S3Options{})
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, s)

	_, err = Open(ctx, "s3", "", infra.S3Options{})
	assert.Error(t, err)

	_, err = Open(ctx, "ftp", "", infra.S3Options{})
	assert.Error(t, err)
}
