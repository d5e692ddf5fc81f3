package session

import (
	"strings"
	"sync"
	"time"
)

// Segment is one successfully transcribed phrase.
type Segment struct {
	Seq  uint64
	Text string
	At   time.Time
}

// Transcript accumulates segments in capture order. It has a single writer
// per session (the worker, or the single-shot path) and any number of
// readers. The accumulated text only shrinks on Reset.
type Transcript struct {
	mu       sync.RWMutex
	segments []Segment
}

// NewTranscript returns an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append adds a segment with the given sequence number.
func (t *Transcript) Append(seq uint64, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.segments = append(t.segments, Segment{Seq: seq, Text: text, At: time.Now()})
}

// AppendNext adds a segment with the next sequence number after the current
// tail, keeping ordering monotonic when a single-shot result extends a
// transcript. It returns the assigned sequence number.
func (t *Transcript) AppendNext(text string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var seq uint64 = 1
	if n := len(t.segments); n > 0 {
		seq = t.segments[n-1].Seq + 1
	}
	t.segments = append(t.segments, Segment{Seq: seq, Text: text, At: time.Now()})
	return seq
}

// Text returns the accumulated transcription, segments joined by a single
// space.
func (t *Transcript) Text() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	parts := make([]string, len(t.segments))
	for i, s := range t.segments {
		parts[i] = s.Text
	}
	return strings.Join(parts, " ")
}

// Segments returns a copy of the accumulated segments.
func (t *Transcript) Segments() []Segment {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Segment, len(t.segments))
	copy(out, t.segments)
	return out
}

// Len returns the number of segments.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.segments)
}

// Reset discards all segments. Called on session (re)start.
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.segments = nil
}

// ErrorLog keeps the latest user-visible error message. Each new error
// overwrites the previous one so the display never shows stale noise.
type ErrorLog struct {
	mu  sync.RWMutex
	msg string
}

// NewErrorLog returns an empty error log.
func NewErrorLog() *ErrorLog {
	return &ErrorLog{}
}

// Set replaces the current message.
func (e *ErrorLog) Set(msg string) {
	e.mu.Lock()
	e.msg = msg
	e.mu.Unlock()
}

// Last returns the most recent message, or "".
func (e *ErrorLog) Last() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.msg
}

// Clear empties the log. Called on session (re)start.
func (e *ErrorLog) Clear() {
	e.Set("")
}
