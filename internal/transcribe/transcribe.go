// Package transcribe provides pluggable speech-to-text backends.
//
// Supported backends:
//   - google: Google Web Speech API (online, no model download)
//   - openai: OpenAI Whisper API (online, requires api_key)
//   - whisper: whisper.cpp via Go bindings (offline, requires model file)
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ambientworks/golisten/internal/audio"
	"github.com/ambientworks/golisten/internal/config"
)

// Transcriber converts one captured phrase to text.
type Transcriber interface {
	// Name returns the backend identifier.
	Name() string
	// Transcribe converts a phrase to text. An ErrNoSpeech result means the
	// audio decoded but carried no recognizable speech; a *ServiceError
	// means the backend itself failed and a retry may succeed.
	Transcribe(ctx context.Context, p audio.Phrase) (string, error)
	// Close releases backend resources.
	Close() error
}

// ErrNoSpeech reports audio that decoded cleanly but contained no
// recognizable speech. Distinct from *ServiceError because retrying the
// same phrase will not help.
var ErrNoSpeech = errors.New("transcribe: no recognizable speech")

// ServiceError reports a network, auth, or service fault from an online
// backend. Retrying the same phrase may succeed.
type ServiceError struct {
	Backend string
	Detail  string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transcribe: %s service: %s: %v", e.Backend, e.Detail, e.Err)
	}
	return fmt.Sprintf("transcribe: %s service: %s", e.Backend, e.Detail)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// UnsupportedError reports a backend, or a backend/language combination,
// that is not implemented.
type UnsupportedError struct {
	Backend  string
	Language string
}

func (e *UnsupportedError) Error() string {
	if e.Language != "" {
		return fmt.Sprintf("transcribe: backend %q does not support language %q", e.Backend, e.Language)
	}
	return fmt.Sprintf("transcribe: backend %q not implemented", e.Backend)
}

// New creates a Transcriber based on the config backend setting.
func New(cfg *config.TranscribeConfig) (Transcriber, error) {
	switch cfg.Backend {
	case "google", "":
		return NewGoogle(cfg.APIKey, cfg.Language), nil
	case "openai":
		return NewOpenAI(cfg.APIKey, cfg.Language), nil
	case "whisper":
		return NewWhisper(cfg.ModelPath, cfg.Language)
	default:
		return nil, &UnsupportedError{Backend: cfg.Backend}
	}
}

// baseLang reduces a BCP-47 tag to its primary subtag: "en-US" -> "en".
func baseLang(tag string) string {
	base, _, _ := strings.Cut(tag, "-")
	return strings.ToLower(base)
}
