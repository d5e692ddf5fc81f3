package audio

import (
	"math"
	"time"
)

const (
	// thresholdFactor scales the ambient noise level into the energy
	// threshold that marks the start of speech.
	thresholdFactor = 1.5
	// minThreshold floors the energy threshold so a dead-quiet room does
	// not trigger on numeric noise.
	minThreshold = 0.01
)

// rms returns the root-mean-square energy of a chunk of samples.
func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// energyThreshold derives the speech threshold from a measured ambient level.
func energyThreshold(ambient float64) float64 {
	t := ambient * thresholdFactor
	if t < minThreshold {
		t = minThreshold
	}
	return t
}

// segmenter turns a continuous chunk stream into silence-bounded phrases.
// A phrase opens when chunk energy crosses the threshold and closes after
// the trailing-silence window or the max phrase length, whichever first.
type segmenter struct {
	threshold  float64
	sampleRate uint32

	silenceSamples int // trailing silence that closes a phrase
	maxSamples     int // hard cap on phrase length
	minSamples     int // phrases shorter than this are discarded as blips

	buf      []float32
	inPhrase bool
	silent   int // consecutive below-threshold samples at the tail
}

func newSegmenter(threshold float64, sampleRate uint32, silence, maxLen, minLen time.Duration) *segmenter {
	toSamples := func(d time.Duration) int {
		return int(d.Seconds() * float64(sampleRate))
	}
	return &segmenter{
		threshold:      threshold,
		sampleRate:     sampleRate,
		silenceSamples: toSamples(silence),
		maxSamples:     toSamples(maxLen),
		minSamples:     toSamples(minLen),
	}
}

// feed consumes one chunk and returns a completed phrase's samples, if any.
func (s *segmenter) feed(chunk []float32) ([]float32, bool) {
	if len(chunk) == 0 {
		return nil, false
	}

	energy := rms(chunk)

	if !s.inPhrase {
		if energy < s.threshold {
			return nil, false
		}
		s.inPhrase = true
		s.silent = 0
		s.buf = s.buf[:0]
	}

	s.buf = append(s.buf, chunk...)
	if energy < s.threshold {
		s.silent += len(chunk)
	} else {
		s.silent = 0
	}

	if s.silent >= s.silenceSamples || len(s.buf) >= s.maxSamples {
		return s.close()
	}
	return nil, false
}

// flush returns the in-progress phrase, if one is long enough to keep.
func (s *segmenter) flush() ([]float32, bool) {
	if !s.inPhrase {
		return nil, false
	}
	return s.close()
}

func (s *segmenter) close() ([]float32, bool) {
	spoken := len(s.buf) - s.silent
	s.inPhrase = false
	s.silent = 0
	if spoken < s.minSamples {
		s.buf = s.buf[:0]
		return nil, false
	}
	out := make([]float32, len(s.buf))
	copy(out, s.buf)
	s.buf = s.buf[:0]
	return out, true
}
