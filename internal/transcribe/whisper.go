package transcribe

import (
	"context"
	"fmt"
	"io"
	"strings"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/ambientworks/golisten/internal/audio"
)

// Whisper transcribes phrases offline via whisper.cpp. The model is loaded
// once at construction and reused for every phrase.
type Whisper struct {
	model    whisper.Model
	language string
}

// NewWhisper loads a whisper model from the given path.
// The caller must call Close() when done.
func NewWhisper(modelPath, language string) (*Whisper, error) {
	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("transcribe: load model %q: %w", modelPath, err)
	}
	return &Whisper{model: model, language: language}, nil
}

func (w *Whisper) Name() string { return "whisper" }

// Close releases the whisper model resources.
func (w *Whisper) Close() error {
	if w.model != nil {
		return w.model.Close()
	}
	return nil
}

func (w *Whisper) Transcribe(ctx context.Context, p audio.Phrase) (string, error) {
	wctx, err := w.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("transcribe: create context: %w", err)
	}

	if lang := baseLang(w.language); lang != "" && lang != "auto" {
		if err := wctx.SetLanguage(lang); err != nil {
			// English-only models reject everything but "en".
			return "", &UnsupportedError{Backend: "whisper", Language: w.language}
		}
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := wctx.Process(p.Samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("transcribe: process: %w", err)
	}

	var segments []string
	for {
		seg, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("transcribe: next segment: %w", err)
		}
		segments = append(segments, seg.Text)
	}

	text := strings.TrimSpace(strings.Join(segments, " "))
	if text == "" {
		return "", ErrNoSpeech
	}
	return text, nil
}
