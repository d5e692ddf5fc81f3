package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ambientworks/golisten/internal/audio"
	"github.com/ambientworks/golisten/internal/config"
	"github.com/ambientworks/golisten/internal/transcribe"
)

// ErrAlreadyListening is returned by Start while a session is running.
var ErrAlreadyListening = errors.New("session: already listening")

// Controller owns all session-scoped state: the lifecycle state machine, the
// capture session, the worker, the transcript, and the error log. All state
// transitions are serialized through its mutex, so concurrent duplicate
// control calls cannot spawn duplicate capture or worker instances.
type Controller struct {
	cfg    *config.Config
	opener audio.Opener
	port   transcribe.Transcriber

	mu      sync.Mutex
	state   State
	capture *audio.Capture
	queue   *audio.PhraseQueue
	worker  *worker
	cancel  context.CancelFunc

	transcript *Transcript
	errs       *ErrorLog
}

// New creates an idle controller. The opener and port are reused across
// sessions; everything else is rebuilt per Start.
func New(cfg *config.Config, opener audio.Opener, port transcribe.Transcriber) *Controller {
	return &Controller{
		cfg:        cfg,
		opener:     opener,
		port:       port,
		state:      Idle,
		transcript: NewTranscript(),
		errs:       NewErrorLog(),
	}
}

// Start begins a new listening session: it clears the transcript and error
// log, calibrates and starts capture, and launches the transcription worker.
// Valid only from Idle or Stopped; while a session runs it returns
// ErrAlreadyListening without side effects. A capture failure surfaces to
// the error log and leaves the session Stopped with no worker running.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Listening || c.state == Paused {
		return ErrAlreadyListening
	}

	// Join any leftovers from the previous session so at most one capture
	// and one worker ever run.
	if c.capture != nil {
		c.capture.Stop(true)
	}
	if c.worker != nil {
		<-c.worker.done
	}

	c.transcript.Reset()
	c.errs.Clear()

	queue := audio.NewPhraseQueue(c.cfg.Queue.Size)
	capture := audio.NewCapture(c.opener, queue, c.captureConfig())

	if err := capture.Start(ctx); err != nil {
		c.state = Stopped
		c.errs.Set(fmt.Sprintf("Failed to start listening: %v", err))
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	w := newWorker(runCtx, queue, c.port, c.transcript, c.errs,
		c.cfg.Worker.PopTimeout(), c.cfg.Worker.PausePoll())

	c.capture = capture
	c.queue = queue
	c.worker = w
	c.cancel = cancel
	c.state = Listening

	go w.run()

	slog.Info("session started", "backend", c.port.Name(), "language", c.cfg.Transcribe.Language)
	return nil
}

// Pause suspends transcription. Captured phrases keep accumulating in the
// queue. No-op unless currently Listening.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Listening {
		return
	}
	c.state = Paused
	c.worker.paused.Store(true)
	slog.Info("session paused")
}

// Resume continues transcription after Pause. No-op unless currently Paused.
func (c *Controller) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Paused {
		return
	}
	c.state = Listening
	c.worker.paused.Store(false)
	slog.Info("session resumed")
}

// Stop ends the session. Capture winds down without waiting and the worker
// exits within one poll interval; phrases still queued are discarded.
// Safe to call repeatedly.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state != Listening && c.state != Paused {
		c.mu.Unlock()
		return
	}
	c.state = Stopped
	capture := c.capture
	cancel := c.cancel
	c.mu.Unlock()

	capture.Stop(false)
	if cancel != nil {
		cancel()
	}
	slog.Info("session stopped")
}

// StopWait stops the session and blocks until both the capture loop and the
// worker have exited.
func (c *Controller) StopWait() {
	c.mu.Lock()
	capture := c.capture
	w := c.worker
	c.mu.Unlock()

	c.Stop()

	if capture != nil {
		capture.Stop(true)
	}
	if w != nil {
		<-w.done
	}
}

// SingleShot records one bounded phrase synchronously, transcribes it
// inline, and appends the result to the transcript. It shares the
// transcription port but not the queue or worker, so it neither requires
// nor disturbs a background session.
func (c *Controller) SingleShot(ctx context.Context) (string, error) {
	p, err := audio.RecordOnce(ctx, c.opener, c.captureConfig(), c.cfg.Capture.SingleShotMax())
	if err != nil {
		c.errs.Set(fmt.Sprintf("Microphone record failed: %v", err))
		return "", err
	}

	text, err := c.port.Transcribe(ctx, p)
	if err != nil {
		c.errs.Set(errorMessage(c.port.Name(), err))
		return "", err
	}

	seq := c.transcript.AppendNext(text)
	slog.Info("single-shot transcribed", "seq", seq, "chars", len(text))
	return text, nil
}

// State returns the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Text returns the accumulated transcription.
func (c *Controller) Text() string {
	return c.transcript.Text()
}

// LastError returns the most recent user-visible error message, or "".
func (c *Controller) LastError() string {
	return c.errs.Last()
}

func (c *Controller) captureConfig() audio.CaptureConfig {
	return audio.CaptureConfig{
		Device: audio.DeviceConfig{
			SampleRate: c.cfg.Audio.SampleRate,
			Channels:   c.cfg.Audio.Channels,
		},
		Calibration:   c.cfg.Capture.Calibration(),
		SilenceWindow: c.cfg.Capture.Silence(),
		MaxPhrase:     c.cfg.Capture.MaxPhrase(),
		MinPhrase:     c.cfg.Capture.MinPhrase(),
	}
}
