package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

// CaptureState tracks the capture lifecycle.
type CaptureState int32

const (
	StateCreated CaptureState = iota
	StateCalibrating
	StateActive
	StateStopped
)

func (s CaptureState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateCalibrating:
		return "calibrating"
	case StateActive:
		return "active"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// ErrAlreadyListening is returned by Start when capture is already running.
var ErrAlreadyListening = errors.New("audio: already listening")

// CaptureError reports a device, permission, or calibration failure.
// These are fatal to the session: there is no audio source to continue with.
type CaptureError struct {
	Op  string
	Err error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("audio: %s: %v", e.Op, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// CaptureConfig holds the knobs of the capture session.
type CaptureConfig struct {
	Device        DeviceConfig
	Calibration   time.Duration // ambient noise sampling window
	SilenceWindow time.Duration // trailing silence that ends a phrase
	MaxPhrase     time.Duration // hard cap on phrase length
	MinPhrase     time.Duration // shorter phrases are discarded as blips
}

func (c CaptureConfig) withDefaults() CaptureConfig {
	if c.Device.SampleRate == 0 {
		c.Device.SampleRate = 16000
	}
	if c.Device.Channels == 0 {
		c.Device.Channels = 1
	}
	if c.Calibration <= 0 {
		c.Calibration = time.Second
	}
	if c.SilenceWindow <= 0 {
		c.SilenceWindow = 700 * time.Millisecond
	}
	if c.MaxPhrase <= 0 {
		c.MaxPhrase = 15 * time.Second
	}
	if c.MinPhrase <= 0 {
		c.MinPhrase = 300 * time.Millisecond
	}
	return c
}

// Capture owns one microphone session: it calibrates against ambient noise,
// segments the continuous sample stream into phrases, and pushes each phrase
// to the handoff queue with a monotonically increasing sequence number.
type Capture struct {
	opener Opener
	queue  *PhraseQueue
	cfg    CaptureConfig

	mu       sync.Mutex
	state    CaptureState
	chunks   chan []float32
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewCapture creates a capture session feeding the given queue.
func NewCapture(opener Opener, queue *PhraseQueue, cfg CaptureConfig) *Capture {
	return &Capture{
		opener: opener,
		queue:  queue,
		cfg:    cfg.withDefaults(),
	}
}

// State returns the current capture state.
func (c *Capture) State() CaptureState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start opens the microphone, calibrates the energy threshold against
// ambient noise, and launches the segmentation loop. It returns once the
// session is active. Calling Start while already running returns
// ErrAlreadyListening; any failure leaves the session Stopped.
func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateCalibrating || c.state == StateActive {
		c.mu.Unlock()
		return ErrAlreadyListening
	}
	c.state = StateCalibrating
	c.chunks = make(chan []float32, 64)
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	c.stopOnce = sync.Once{}
	chunks := c.chunks
	c.mu.Unlock()

	dev, err := c.opener.Open(c.cfg.Device, func(samples []float32) {
		// Device callback must never block; overflow is handled by the
		// bounded phrase queue downstream, not here.
		select {
		case chunks <- samples:
		default:
		}
	})
	if err != nil {
		c.fail()
		return &CaptureError{Op: "open capture device", Err: err}
	}

	threshold, err := calibrateThreshold(ctx, chunks, c.stop, c.cfg.Calibration, c.cfg.Device.SampleRate)
	if err != nil {
		dev.Close()
		c.fail()
		return err
	}

	c.mu.Lock()
	c.state = StateActive
	c.mu.Unlock()

	slog.Info("capture active", "threshold", fmt.Sprintf("%.4f", threshold),
		"sample_rate", c.cfg.Device.SampleRate)

	go c.run(dev, threshold)
	return nil
}

// Stop signals the capture loop to exit. When wait is true it blocks until
// the loop acknowledges; otherwise capture winds down asynchronously and an
// in-flight phrase may be lost. Stop on a session that is not running is a
// no-op.
func (c *Capture) Stop(wait bool) {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		// Never started.
		return
	}

	c.stopOnce.Do(func() { close(c.stop) })
	if wait {
		<-done
	}
}

// fail marks the session Stopped after a start-up error and releases waiters.
func (c *Capture) fail() {
	c.mu.Lock()
	c.state = StateStopped
	done := c.done
	c.mu.Unlock()
	close(done)
}

func (c *Capture) run(dev Device, threshold float64) {
	defer close(c.done)

	rate := c.cfg.Device.SampleRate
	seg := newSegmenter(threshold, rate, c.cfg.SilenceWindow, c.cfg.MaxPhrase, c.cfg.MinPhrase)
	var seq uint64

	for {
		select {
		case <-c.stop:
			dev.Close()
			c.mu.Lock()
			c.state = StateStopped
			c.mu.Unlock()
			slog.Info("capture stopped", "phrases", seq)
			return
		case chunk := <-c.chunks:
			samples, ok := seg.feed(chunk)
			if !ok {
				continue
			}
			seq++
			p := Phrase{
				Samples:    samples,
				SampleRate: rate,
				Seq:        seq,
				CapturedAt: time.Now(),
			}
			c.queue.Push(p)
			slog.Debug("phrase captured", "seq", seq, "duration", p.Duration().Round(time.Millisecond))
		}
	}
}

// calibrateThreshold measures ambient noise for the given window and derives
// the speech energy threshold. A stalled device fails the calibration rather
// than hanging the session.
func calibrateThreshold(ctx context.Context, chunks <-chan []float32, stop <-chan struct{}, window time.Duration, sampleRate uint32) (float64, error) {
	need := int(window.Seconds() * float64(sampleRate))
	if need <= 0 {
		need = 1
	}

	guard := time.NewTimer(3*window + 2*time.Second)
	defer guard.Stop()

	var sumsq float64
	var n int
	for n < need {
		select {
		case <-ctx.Done():
			return 0, &CaptureError{Op: "calibration", Err: ctx.Err()}
		case <-stop:
			return 0, &CaptureError{Op: "calibration", Err: errors.New("stopped")}
		case <-guard.C:
			return 0, &CaptureError{Op: "calibration", Err: errors.New("no audio from capture device")}
		case chunk := <-chunks:
			for _, s := range chunk {
				sumsq += float64(s) * float64(s)
			}
			n += len(chunk)
		}
	}

	ambient := math.Sqrt(sumsq / float64(n))
	return energyThreshold(ambient), nil
}

// RecordOnce captures a single phrase synchronously: calibrate, wait up to
// maxDur for speech to start, then record until trailing silence or maxDur.
// It does not touch any queue or background session.
func RecordOnce(ctx context.Context, opener Opener, cfg CaptureConfig, maxDur time.Duration) (Phrase, error) {
	cfg = cfg.withDefaults()
	if maxDur <= 0 {
		maxDur = 10 * time.Second
	}

	chunks := make(chan []float32, 64)
	dev, err := opener.Open(cfg.Device, func(samples []float32) {
		select {
		case chunks <- samples:
		default:
		}
	})
	if err != nil {
		return Phrase{}, &CaptureError{Op: "open capture device", Err: err}
	}
	defer dev.Close()

	rate := cfg.Device.SampleRate
	threshold, err := calibrateThreshold(ctx, chunks, nil, cfg.Calibration, rate)
	if err != nil {
		return Phrase{}, err
	}

	seg := newSegmenter(threshold, rate, cfg.SilenceWindow, maxDur, cfg.MinPhrase)
	timer := time.NewTimer(maxDur)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return Phrase{}, &CaptureError{Op: "record", Err: ctx.Err()}
		case <-timer.C:
			if samples, ok := seg.flush(); ok {
				return onePhrase(samples, rate), nil
			}
			return Phrase{}, &CaptureError{Op: "record", Err: errors.New("no speech detected")}
		case chunk := <-chunks:
			started := seg.inPhrase
			if samples, ok := seg.feed(chunk); ok {
				return onePhrase(samples, rate), nil
			}
			if !started && seg.inPhrase {
				// Speech began; allow a full phrase length from here.
				timer.Reset(maxDur)
			}
		}
	}
}

func onePhrase(samples []float32, rate uint32) Phrase {
	return Phrase{
		Samples:    samples,
		SampleRate: rate,
		Seq:        1,
		CapturedAt: time.Now(),
	}
}
