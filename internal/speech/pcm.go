package speech

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Buffer holds decoded audio, one float slice per channel with samples in [-1, 1].
type Buffer struct {
	SampleRate int
	Channels   [][]float32
}

// Frames is the number of samples per channel.
func (b *Buffer) Frames() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// DecodePCM16 splits interleaved little-endian 16-bit samples into channels.
// A trailing partial frame is dropped.
func DecodePCM16(data []byte, sampleRate, channels int) (*Buffer, error) {
	if channels < 1 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}
	if len(data)%2 != 0 {
		data = data[:len(data)-1]
	}

	samples := len(data) / 2
	frames := samples / channels

	buf := &Buffer{
		SampleRate: sampleRate,
		Channels:   make([][]float32, channels),
	}
	for ch := range buf.Channels {
		buf.Channels[ch] = make([]float32, frames)
	}

	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			offset := (i*channels + ch) * 2
			sample := int16(binary.LittleEndian.Uint16(data[offset:]))
			buf.Channels[ch][i] = float32(sample) / 32768.0
		}
	}
	return buf, nil
}

// EncodePCM16 interleaves the buffer back into little-endian 16-bit samples,
// clamping to the representable range.
func EncodePCM16(buf *Buffer) []byte {
	channels := len(buf.Channels)
	frames := buf.Frames()
	out := make([]byte, frames*channels*2)

	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			v := float64(buf.Channels[ch][i]) * 32768.0
			v = math.Max(math.MinInt16, math.Min(math.MaxInt16, math.Round(v)))
			offset := (i*channels + ch) * 2
			binary.LittleEndian.PutUint16(out[offset:], uint16(int16(v)))
		}
	}
	return out
}
