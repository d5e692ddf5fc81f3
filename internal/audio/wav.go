package audio

import (
	"encoding/binary"
	"fmt"
	"io"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// EncodeWAV renders a phrase as a 16-bit PCM mono WAV file in memory,
// the format the upload backends expect.
func EncodeWAV(p Phrase) ([]byte, error) {
	if len(p.Samples) == 0 {
		return nil, fmt.Errorf("audio: encode wav: empty phrase")
	}

	buf := &seekBuffer{}
	enc := wav.NewEncoder(buf, int(p.SampleRate), 16, 1, 1)

	ib := &gaudio.IntBuffer{
		Format: &gaudio.Format{
			NumChannels: 1,
			SampleRate:  int(p.SampleRate),
		},
		SourceBitDepth: 16,
		Data:           make([]int, len(p.Samples)),
	}
	for i, s := range p.Samples {
		ib.Data[i] = int(clampSample(s) * 32767)
	}

	if err := enc.Write(ib); err != nil {
		return nil, fmt.Errorf("audio: encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("audio: finalize wav: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodePCM16 renders a phrase as raw little-endian 16-bit PCM, used by
// backends that take headerless audio with an explicit rate parameter.
func EncodePCM16(p Phrase) []byte {
	out := make([]byte, len(p.Samples)*2)
	for i, s := range p.Samples {
		v := int16(clampSample(s) * 32767)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

func clampSample(s float32) float32 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}

// seekBuffer is an in-memory io.WriteSeeker for the wav encoder, which
// rewinds to patch chunk sizes on Close.
type seekBuffer struct {
	data []byte
	pos  int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if need := b.pos + len(p); need > len(b.data) {
		grown := make([]byte, need)
		copy(grown, b.data)
		b.data = grown
	}
	copy(b.data[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(b.pos) + offset
	case io.SeekEnd:
		abs = int64(len(b.data)) + offset
	default:
		return 0, fmt.Errorf("audio: seek: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("audio: seek: negative position")
	}
	b.pos = int(abs)
	return abs, nil
}

func (b *seekBuffer) Bytes() []byte { return b.data }
