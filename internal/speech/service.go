package speech

import (
	"context"
	"fmt"

	"github.com/Vovarama1992/speech_billing/internal/storage"
)

// Service объединяет STT и TTS и кладёт синтезированное аудио в хранилище.
type Service struct {
	stt   STTClient
	tts   TTSClient
	store storage.Store
}

func NewService(stt STTClient, tts TTSClient, store storage.Store) *Service {
	return &Service{
		stt:   stt,
		tts:   tts,
		store: store,
	}
}

// ToSpeech синтезирует речь и возвращает ссылку на сохранённый файл.
func (s *Service) ToSpeech(ctx context.Context, userID int64, taskID, text string) (string, error) {
	audio, err := s.tts.Synthesize(ctx, text)
	if err != nil {
		return "", err
	}
	if len(audio.Data) == 0 {
		return "", &ProviderError{Provider: "tts", Err: fmt.Errorf("empty audio")}
	}

	ref, err := s.store.Save(ctx, storage.Key(storage.Out, userID, taskID, audio.Ext), audio.Data, audio.ContentType)
	if err != nil {
		return "", fmt.Errorf("store synthesized audio: %w", err)
	}
	return ref, nil
}

func (s *Service) ToText(ctx context.Context, audio []byte) (string, error) {
	return s.stt.Transcribe(ctx, audio)
}

type Keys struct {
	OpenAI          string
	ElevenLabs      string
	ElevenLabsVoice string
	Deepgram        string
}

func NewSTT(provider string, k Keys) (STTClient, error) {
	switch provider {
	case "openai":
		if k.OpenAI == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY not set")
		}
		return NewOpenAIClient(k.OpenAI), nil
	case "deepgram":
		if k.Deepgram == "" {
			return nil, fmt.Errorf("DEEPGRAM_API_KEY not set")
		}
		return NewDeepgramClient(k.Deepgram), nil
	}
	return nil, fmt.Errorf("unknown STT provider %q", provider)
}

func NewTTS(provider string, k Keys) (TTSClient, error) {
	switch provider {
	case "openai":
		if k.OpenAI == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY not set")
		}
		return NewOpenAIClient(k.OpenAI), nil
	case "elevenlabs":
		if k.ElevenLabs == "" {
			return nil, fmt.Errorf("ELEVENLABS_API_KEY not set")
		}
		return NewElevenLabsClient(k.ElevenLabs, k.ElevenLabsVoice), nil
	}
	return nil, fmt.Errorf("unknown TTS provider %q", provider)
}
