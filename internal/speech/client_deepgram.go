package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
)

const deepgramURL = "https://api.deepgram.com"

type DeepgramClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewDeepgramClient(apiKey string) *DeepgramClient {
	return &DeepgramClient{
		apiKey:  apiKey,
		baseURL: deepgramURL,
		client:  &http.Client{},
	}
}

func (c *DeepgramClient) Transcribe(ctx context.Context, audio []byte) (string, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/v1/listen?model=nova-2&smart_format=true&language=ru",
		bytes.NewReader(audio),
	)
	if err != nil {
		return "", err
	}

	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Content-Type", "audio/ogg")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &ProviderError{Provider: "deepgram", Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", &ProviderError{Provider: "deepgram", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed struct {
		Results struct {
			Channels []struct {
				Alternatives []struct {
					Transcript string `json:"transcript"`
				} `json:"alternatives"`
			} `json:"channels"`
		} `json:"results"`
	}

	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &ProviderError{Provider: "deepgram", Err: fmt.Errorf("decode deepgram: %w", err)}
	}

	if len(parsed.Results.Channels) == 0 ||
		len(parsed.Results.Channels[0].Alternatives) == 0 ||
		parsed.Results.Channels[0].Alternatives[0].Transcript == "" {
		return "", &ProviderError{Provider: "deepgram", Err: errors.New("empty transcript")}
	}

	return parsed.Results.Channels[0].Alternatives[0].Transcript, nil
}
