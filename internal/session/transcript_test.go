package session

import "testing"

func TestTranscriptAccumulates(t *testing.T) {
	tr := NewTranscript()
	if tr.Text() != "" {
		t.Errorf("empty transcript Text() = %q", tr.Text())
	}

	tr.Append(1, "hello")
	tr.Append(2, "world")
	if got := tr.Text(); got != "hello world" {
		t.Errorf("Text() = %q, want %q", got, "hello world")
	}
	if tr.Len() != 2 {
		t.Errorf("Len() = %d, want 2", tr.Len())
	}

	segs := tr.Segments()
	if len(segs) != 2 || segs[0].Seq != 1 || segs[1].Text != "world" {
		t.Errorf("Segments() = %+v", segs)
	}
}

func TestTranscriptAppendNext(t *testing.T) {
	tr := NewTranscript()
	if seq := tr.AppendNext("first"); seq != 1 {
		t.Errorf("AppendNext() on empty transcript = %d, want 1", seq)
	}
	tr.Append(7, "seventh")
	if seq := tr.AppendNext("eighth"); seq != 8 {
		t.Errorf("AppendNext() after seq 7 = %d, want 8", seq)
	}
}

func TestTranscriptReset(t *testing.T) {
	tr := NewTranscript()
	tr.Append(1, "hello")
	tr.Reset()
	if tr.Len() != 0 || tr.Text() != "" {
		t.Errorf("after Reset: Len=%d Text=%q", tr.Len(), tr.Text())
	}
}

func TestErrorLogKeepsLatest(t *testing.T) {
	el := NewErrorLog()
	if el.Last() != "" {
		t.Errorf("empty log Last() = %q", el.Last())
	}
	el.Set("first failure")
	el.Set("second failure")
	if got := el.Last(); got != "second failure" {
		t.Errorf("Last() = %q, want the most recent message", got)
	}
	el.Clear()
	if el.Last() != "" {
		t.Errorf("Last() after Clear = %q", el.Last())
	}
}
