package speech

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
)

// Sink plays a decoded buffer immediately.
type Sink interface {
	Play(ctx context.Context, buf *Buffer) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, buf *Buffer) error

func (f SinkFunc) Play(ctx context.Context, buf *Buffer) error {
	return f(ctx, buf)
}

// DiscardSink drops every buffer.
type DiscardSink struct{}

func (DiscardSink) Play(ctx context.Context, buf *Buffer) error { return nil }

// WAVSink writes each buffer as a standalone WAVE file to a writer obtained
// from Open. The writer is closed after the file is written.
type WAVSink struct {
	Open func(ctx context.Context) (io.WriteCloser, error)
}

func (s *WAVSink) Play(ctx context.Context, buf *Buffer) error {
	w, err := s.Open(ctx)
	if err != nil {
		return fmt.Errorf("failed to open audio output: %w", err)
	}

	if err := WriteWAV(w, buf); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// WriteWAV encodes buf as a 16-bit PCM RIFF/WAVE stream.
func WriteWAV(w io.Writer, buf *Buffer) error {
	data := EncodePCM16(buf)
	channels := uint16(len(buf.Channels))
	blockAlign := channels * 2
	byteRate := uint32(buf.SampleRate) * uint32(blockAlign)

	header := struct {
		RIFF          [4]byte
		ChunkSize     uint32
		WAVE          [4]byte
		Fmt           [4]byte
		FmtSize       uint32
		AudioFormat   uint16
		NumChannels   uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
		Data          [4]byte
		DataSize      uint32
	}{
		RIFF:          [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(36 + len(data)),
		WAVE:          [4]byte{'W', 'A', 'V', 'E'},
		Fmt:           [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		AudioFormat:   1,
		NumChannels:   channels,
		SampleRate:    uint32(buf.SampleRate),
		ByteRate:      byteRate,
		BlockAlign:    blockAlign,
		BitsPerSample: 16,
		Data:          [4]byte{'d', 'a', 't', 'a'},
		DataSize:      uint32(len(data)),
	}

	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("failed to write wav header: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write wav data: %w", err)
	}
	return nil
}
