// Package audio captures microphone input and segments it into phrases.
//
// A Capture owns the device and the segmentation loop; finished phrases are
// handed to a PhraseQueue for the transcription worker to drain. RecordOnce
// provides a synchronous single-phrase path that bypasses the queue.
package audio

import "time"

// Phrase is one silence-bounded span of captured audio, treated as a single
// transcription unit. Immutable once created.
type Phrase struct {
	Samples    []float32
	SampleRate uint32
	Seq        uint64
	CapturedAt time.Time
}

// Duration returns the play length of the phrase.
func (p Phrase) Duration() time.Duration {
	if p.SampleRate == 0 {
		return 0
	}
	return time.Duration(float64(len(p.Samples)) / float64(p.SampleRate) * float64(time.Second))
}
