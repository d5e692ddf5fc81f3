package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ambientworks/golisten/internal/audio"
	"github.com/ambientworks/golisten/internal/transcribe"
)

// worker drains the phrase queue and feeds the transcript. It processes one
// phrase fully before popping the next, so segments land in capture order
// regardless of per-phrase transcription latency. The worker's lifetime is
// bounded by its context; pause state is its own flag, so a worker from a
// stopped session can never latch onto a successor session.
type worker struct {
	ctx        context.Context
	queue      *audio.PhraseQueue
	port       transcribe.Transcriber
	transcript *Transcript
	errs       *ErrorLog

	paused atomic.Bool

	popTimeout time.Duration
	pausePoll  time.Duration

	done chan struct{}
}

func newWorker(ctx context.Context, queue *audio.PhraseQueue, port transcribe.Transcriber,
	transcript *Transcript, errs *ErrorLog, popTimeout, pausePoll time.Duration) *worker {
	if popTimeout <= 0 {
		popTimeout = 500 * time.Millisecond
	}
	if pausePoll <= 0 {
		pausePoll = 200 * time.Millisecond
	}
	return &worker{
		ctx:        ctx,
		queue:      queue,
		port:       port,
		transcript: transcript,
		errs:       errs,
		popTimeout: popTimeout,
		pausePoll:  pausePoll,
		done:       make(chan struct{}),
	}
}

func (w *worker) run() {
	defer close(w.done)

	for {
		if w.ctx.Err() != nil {
			// Stopped: remaining queued phrases are discarded.
			return
		}
		if w.paused.Load() {
			// Leave queued phrases alone so nothing is lost; just wait.
			time.Sleep(w.pausePoll)
			continue
		}

		p, ok := w.queue.Pop(w.popTimeout)
		if !ok {
			continue
		}

		text, err := w.port.Transcribe(w.ctx, p)
		if err != nil {
			if w.ctx.Err() != nil {
				return
			}
			// One bad phrase never stops the loop.
			w.errs.Set(errorMessage(w.port.Name(), err))
			slog.Warn("transcription failed", "seq", p.Seq, "error", err)
			continue
		}

		if w.ctx.Err() != nil {
			// Stopped while transcribing; drop the result.
			return
		}

		w.transcript.Append(p.Seq, text)
		slog.Debug("transcribed", "seq", p.Seq, "chars", len(text))
	}
}

// errorMessage renders a transcription failure for the display layer.
func errorMessage(backend string, err error) string {
	var svc *transcribe.ServiceError
	var uns *transcribe.UnsupportedError
	switch {
	case errors.Is(err, transcribe.ErrNoSpeech):
		return "Speech was unintelligible. Try speaking more clearly or increasing microphone volume."
	case errors.As(err, &svc):
		return fmt.Sprintf("Could not contact the recognition service (%s). Technical detail: %s", backend, svc.Detail)
	case errors.As(err, &uns):
		if uns.Language != "" {
			return fmt.Sprintf("Backend %q does not support language %q.", uns.Backend, uns.Language)
		}
		return fmt.Sprintf("Backend %q is not implemented.", uns.Backend)
	default:
		return fmt.Sprintf("Unexpected error during transcription: %v", err)
	}
}
