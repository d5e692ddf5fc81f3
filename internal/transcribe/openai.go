package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ambientworks/golisten/internal/audio"
)

// OpenAI transcribes phrases through the OpenAI audio transcription API.
// Phrases are uploaded as in-memory WAV files.
type OpenAI struct {
	client   *openai.Client
	language string
}

// NewOpenAI creates the OpenAI Whisper API backend.
func NewOpenAI(apiKey, language string) *OpenAI {
	return &OpenAI{
		client:   openai.NewClient(apiKey),
		language: language,
	}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Close() error { return nil }

func (o *OpenAI) Transcribe(ctx context.Context, p audio.Phrase) (string, error) {
	data, err := audio.EncodeWAV(p)
	if err != nil {
		return "", fmt.Errorf("transcribe: encode phrase: %w", err)
	}

	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: "phrase.wav",
		Reader:   bytes.NewReader(data),
		Language: baseLang(o.language),
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", &ServiceError{
				Backend: "openai",
				Detail:  fmt.Sprintf("http %d: %s", apiErr.HTTPStatusCode, apiErr.Message),
			}
		}
		return "", &ServiceError{Backend: "openai", Detail: "request failed", Err: err}
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrNoSpeech
	}
	return text, nil
}
