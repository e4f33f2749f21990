package speech

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

type OpenAIClient struct {
	client *openai.Client
	voice  openai.SpeechVoice
}

func NewOpenAIClient(apiKey string) *OpenAIClient {
	return NewOpenAIClientWithConfig(openai.DefaultConfig(apiKey))
}

func NewOpenAIClientWithConfig(cfg openai.ClientConfig) *OpenAIClient {
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		voice:  openai.VoiceAlloy,
	}
}

// голос -> текст (Whisper)
func (c *OpenAIClient) Transcribe(ctx context.Context, audio []byte) (string, error) {
	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		Reader:   bytes.NewReader(audio),
		FilePath: "voice.ogg",
	})
	if err != nil {
		return "", openAIError(err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", &ProviderError{Provider: "openai", Err: errors.New("empty transcript")}
	}
	return text, nil
}

// текст -> голос (opus в ogg-контейнере)
func (c *OpenAIClient) Synthesize(ctx context.Context, text string) (*Audio, error) {
	resp, err := c.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          text,
		Voice:          c.voice,
		ResponseFormat: openai.SpeechResponseFormatOpus,
	})
	if err != nil {
		return nil, openAIError(err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, &ProviderError{Provider: "openai", Err: err}
	}

	return &Audio{Data: data, Ext: "ogg", ContentType: "audio/ogg"}, nil
}

func openAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{Provider: "openai", StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &ProviderError{Provider: "openai", StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	return &ProviderError{Provider: "openai", Err: err}
}
