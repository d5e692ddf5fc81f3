package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ambientworks/golisten/internal/audio"
	"github.com/ambientworks/golisten/internal/config"
)

// fakeOpener stands in for the microphone. Each opened device feeds constant
// chunks every millisecond; the level function scripts speech vs. silence
// over elapsed time (nil means silence throughout).
type fakeOpener struct {
	openErr error
	level   func(elapsed time.Duration) float32

	mu     sync.Mutex
	opened int
}

func (f *fakeOpener) Open(cfg audio.DeviceConfig, onChunk func([]float32)) (audio.Device, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.mu.Lock()
	f.opened++
	f.mu.Unlock()

	d := &fakeDevice{stop: make(chan struct{})}
	level := f.level
	go func() {
		start := time.Now()
		tick := time.NewTicker(time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-d.stop:
				return
			case <-tick.C:
				var lvl float32
				if level != nil {
					lvl = level(time.Since(start))
				}
				chunk := make([]float32, 20)
				for i := range chunk {
					chunk[i] = lvl
				}
				onChunk(chunk)
			}
		}
	}()
	return d, nil
}

func (f *fakeOpener) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened
}

type fakeDevice struct {
	stop chan struct{}
	once sync.Once
}

func (d *fakeDevice) Close() error {
	d.once.Do(func() { close(d.stop) })
	return nil
}

// fakeTranscriber scripts per-phrase results keyed by sequence number.
type fakeTranscriber struct {
	fn func(p audio.Phrase) (string, error)

	mu    sync.Mutex
	calls []uint64
}

func (f *fakeTranscriber) Name() string { return "fake" }

func (f *fakeTranscriber) Close() error { return nil }

func (f *fakeTranscriber) Transcribe(_ context.Context, p audio.Phrase) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, p.Seq)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(p)
	}
	return fmt.Sprintf("seg%d", p.Seq), nil
}

func (f *fakeTranscriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// testConfig uses a 1kHz rate and short windows to keep sessions fast.
func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Audio.SampleRate = 1000
	cfg.Capture.CalibrationMS = 10
	cfg.Capture.SilenceMS = 50
	cfg.Capture.MinPhraseMS = 20
	cfg.Capture.SingleShotMaxMS = 200
	cfg.Queue.Size = 16
	cfg.Worker.PopTimeoutMS = 20
	cfg.Worker.PausePollMS = 5
	return cfg
}

func testPhrase(seq uint64) audio.Phrase {
	return audio.Phrase{
		Samples:    []float32{0.5, 0.5, 0.5},
		SampleRate: 1000,
		Seq:        seq,
		CapturedAt: time.Now(),
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
