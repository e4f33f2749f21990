package speech

import (
	"context"
	"fmt"
)

// Audio это результат синтеза.
type Audio struct {
	Data        []byte
	Ext         string
	ContentType string
}

type STTClient interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

type TTSClient interface {
	Synthesize(ctx context.Context, text string) (*Audio, error)
}

// ProviderError возвращается, когда внешний провайдер отказал.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: status=%d body=%s", e.Provider, e.StatusCode, e.Body)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
