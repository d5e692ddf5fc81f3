package audio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeOpener hands chunks straight to the capture callback, standing in for
// the malgo device.
type fakeOpener struct {
	mu      sync.Mutex
	onChunk func([]float32)
	openErr error
	opened  int
	device  *fakeDevice
}

func (f *fakeOpener) Open(cfg DeviceConfig, onChunk func([]float32)) (Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.onChunk = onChunk
	f.opened++
	f.device = &fakeDevice{}
	return f.device, nil
}

func (f *fakeOpener) feed(samples []float32) {
	f.mu.Lock()
	cb := f.onChunk
	f.mu.Unlock()
	if cb != nil {
		cb(samples)
	}
}

// feedEvery pushes the same chunk repeatedly until the returned stop func is
// called. Used to satisfy calibration, which needs a fixed number of samples.
func (f *fakeOpener) feedEvery(interval time.Duration, samples []float32) func() {
	stop := make(chan struct{})
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				f.feed(samples)
			}
		}
	}()
	return func() { close(stop) }
}

type fakeDevice struct {
	mu     sync.Mutex
	closed bool
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDevice) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// testCaptureConfig uses a 1kHz rate so sample counts read as milliseconds,
// and a short calibration window to keep tests fast.
func testCaptureConfig() CaptureConfig {
	return CaptureConfig{
		Device:        DeviceConfig{SampleRate: 1000, Channels: 1},
		Calibration:   10 * time.Millisecond,
		SilenceWindow: 50 * time.Millisecond,
		MaxPhrase:     500 * time.Millisecond,
		MinPhrase:     20 * time.Millisecond,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func startCapture(t *testing.T, f *fakeOpener, q *PhraseQueue) *Capture {
	t.Helper()
	c := NewCapture(f, q, testCaptureConfig())

	stopFeed := f.feedEvery(time.Millisecond, constChunk(0, 20))
	defer stopFeed()

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return c
}

func TestCaptureEmitsPhrasesInOrder(t *testing.T) {
	f := &fakeOpener{}
	q := NewPhraseQueue(8)
	c := startCapture(t, f, q)
	defer c.Stop(true)

	if c.State() != StateActive {
		t.Fatalf("State() = %v after Start, want active", c.State())
	}

	// Two phrases, each speech followed by enough silence to close it.
	f.feed(constChunk(0.5, 100))
	f.feed(constChunk(0, 60))
	f.feed(constChunk(0.5, 80))
	f.feed(constChunk(0, 60))

	waitFor(t, time.Second, func() bool { return q.Len() == 2 }, "expected 2 phrases in queue")

	p1, _ := q.Pop(10 * time.Millisecond)
	p2, _ := q.Pop(10 * time.Millisecond)
	if p1.Seq != 1 || p2.Seq != 2 {
		t.Errorf("phrase seqs = %d, %d; want 1, 2", p1.Seq, p2.Seq)
	}
	if p1.SampleRate != 1000 {
		t.Errorf("SampleRate = %d, want 1000", p1.SampleRate)
	}
	if p1.Duration() <= 0 {
		t.Error("phrase duration should be positive")
	}
}

func TestCaptureStartWhileActive(t *testing.T) {
	f := &fakeOpener{}
	c := startCapture(t, f, NewPhraseQueue(8))
	defer c.Stop(true)

	if err := c.Start(context.Background()); err != ErrAlreadyListening {
		t.Errorf("second Start() error = %v, want ErrAlreadyListening", err)
	}
	if f.opened != 1 {
		t.Errorf("device opened %d times, want 1", f.opened)
	}
}

func TestCaptureStopClosesDevice(t *testing.T) {
	f := &fakeOpener{}
	c := startCapture(t, f, NewPhraseQueue(8))

	c.Stop(true)

	if c.State() != StateStopped {
		t.Errorf("State() = %v after Stop, want stopped", c.State())
	}
	if !f.device.isClosed() {
		t.Error("device should be closed after Stop(true)")
	}

	// Repeated stop is a no-op.
	c.Stop(true)
	c.Stop(false)
}

func TestCaptureStopBeforeStart(t *testing.T) {
	c := NewCapture(&fakeOpener{}, NewPhraseQueue(8), testCaptureConfig())
	c.Stop(false)
	c.Stop(true)
	if c.State() != StateCreated {
		t.Errorf("State() = %v, want created", c.State())
	}
}

func TestCaptureOpenFailure(t *testing.T) {
	f := &fakeOpener{openErr: errors.New("permission denied")}
	c := NewCapture(f, NewPhraseQueue(8), testCaptureConfig())

	err := c.Start(context.Background())
	if err == nil {
		t.Fatal("Start() should fail when the device cannot be opened")
	}
	var capErr *CaptureError
	if !errors.As(err, &capErr) {
		t.Errorf("Start() error = %T, want *CaptureError", err)
	}
	if c.State() != StateStopped {
		t.Errorf("State() = %v after failed Start, want stopped", c.State())
	}

	// Stop after a failed start must not hang even with wait set.
	c.Stop(true)
}

func TestCaptureCalibrationCancelled(t *testing.T) {
	f := &fakeOpener{}
	c := NewCapture(f, NewPhraseQueue(8), testCaptureConfig())

	// No chunks are fed, so calibration can only end via the context.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := c.Start(ctx)
	var capErr *CaptureError
	if !errors.As(err, &capErr) {
		t.Fatalf("Start() error = %v, want *CaptureError", err)
	}
	if c.State() != StateStopped {
		t.Errorf("State() = %v, want stopped", c.State())
	}
	if !f.device.isClosed() {
		t.Error("device should be closed after failed calibration")
	}
}

func TestRecordOnce(t *testing.T) {
	f := &fakeOpener{}
	cfg := testCaptureConfig()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Silence through calibration, then one phrase.
		stopFeed := f.feedEvery(time.Millisecond, constChunk(0, 20))
		time.Sleep(30 * time.Millisecond)
		stopFeed()
		f.feed(constChunk(0.5, 100))
		f.feed(constChunk(0, 60))
	}()

	p, err := RecordOnce(context.Background(), f, cfg, 300*time.Millisecond)
	<-done
	if err != nil {
		t.Fatalf("RecordOnce() error = %v", err)
	}
	if len(p.Samples) == 0 {
		t.Error("RecordOnce() returned an empty phrase")
	}
	if !f.device.isClosed() {
		t.Error("device should be closed after RecordOnce")
	}
}

func TestRecordOnceNoSpeech(t *testing.T) {
	f := &fakeOpener{}
	stopFeed := f.feedEvery(time.Millisecond, constChunk(0, 20))
	defer stopFeed()

	_, err := RecordOnce(context.Background(), f, testCaptureConfig(), 50*time.Millisecond)
	var capErr *CaptureError
	if !errors.As(err, &capErr) {
		t.Fatalf("RecordOnce() with silence should return *CaptureError, got %v", err)
	}
}

func TestRecordOnceOpenFailure(t *testing.T) {
	f := &fakeOpener{openErr: errors.New("no device")}
	_, err := RecordOnce(context.Background(), f, testCaptureConfig(), 50*time.Millisecond)
	var capErr *CaptureError
	if !errors.As(err, &capErr) {
		t.Fatalf("RecordOnce() error = %v, want *CaptureError", err)
	}
}
