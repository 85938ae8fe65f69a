package speech

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/hopeconnect/internal/gateway"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func pcm(samples ...int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func TestDecodePCM16Mono(t *testing.T) {
	buf, err := DecodePCM16(pcm(0, 16384, -32768, 32767), 24000, 1)
	require.NoError(t, err)

	assert.Equal(t, 24000, buf.SampleRate)
	require.Len(t, buf.Channels, 1)
	assert.Equal(t, []float32{0, 0.5, -1, 32767.0 / 32768.0}, buf.Channels[0])
}

func TestDecodePCM16Interleaved(t *testing.T) {
	buf, err := DecodePCM16(pcm(100, -100, 200, -200, 300), 8000, 2)
	require.NoError(t, err)

	require.Len(t, buf.Channels, 2)
	assert.Equal(t, 2, buf.Frames(), "trailing partial frame is dropped")
	assert.InDelta(t, 200.0/32768.0, buf.Channels[0][1], 1e-9)
	assert.InDelta(t, -200.0/32768.0, buf.Channels[1][1], 1e-9)
}

func TestDecodePCM16SamplesStayInRange(t *testing.T) {
	data := make([]byte, 0, 65536*2)
	for v := -32768; v <= 32767; v++ {
		data = append(data, pcm(int16(v))...)
	}
	// An odd trailing byte is ignored.
	data = append(data, 0x7f)

	buf, err := DecodePCM16(data, 24000, 1)
	require.NoError(t, err)
	for _, s := range buf.Channels[0] {
		require.True(t, s >= -1 && s <= 1, "sample %v out of range", s)
	}
}

func TestDecodePCM16RejectsZeroChannels(t *testing.T) {
	_, err := DecodePCM16(pcm(1), 24000, 0)
	assert.Error(t, err)
}

func TestEncodeRoundTripsSamples(t *testing.T) {
	original := pcm(0, 1, -1, 12345, -32768, 32767)
	buf, err := DecodePCM16(original, 24000, 1)
	require.NoError(t, err)
	assert.Equal(t, original, EncodePCM16(buf))
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func TestWAVSinkWritesHeader(t *testing.T) {
	var out bytes.Buffer
	sink := &WAVSink{Open: func(ctx context.Context) (io.WriteCloser, error) {
		return nopCloser{&out}, nil
	}}

	buf, err := DecodePCM16(pcm(1, 2, 3), 24000, 1)
	require.NoError(t, err)
	require.NoError(t, sink.Play(context.Background(), buf))

	wav := out.Bytes()
	require.Len(t, wav, 44+6)
	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, uint32(24000), binary.LittleEndian.Uint32(wav[24:28]))
	assert.Equal(t, uint32(6), binary.LittleEndian.Uint32(wav[40:44]))
	assert.Equal(t, pcm(1, 2, 3), wav[44:])
}

type fakeSynth struct {
	audio []byte
	err   error
}

func (f fakeSynth) SynthesizeSpeech(ctx context.Context, text string) ([]byte, error) {
	return f.audio, f.err
}

type recordingSink struct {
	mu      sync.Mutex
	buffers []*Buffer
	err     error
}

func (r *recordingSink) Play(ctx context.Context, buf *Buffer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buffers = append(r.buffers, buf)
	return r.err
}

func TestBridgePlaysDecodedAudio(t *testing.T) {
	sink := &recordingSink{}
	bridge := NewBridge(fakeSynth{audio: pcm(0, 16384)}, sink, zap.NewNop())

	bridge.Speak(context.Background(), "hello")

	require.Len(t, sink.buffers, 1)
	assert.Equal(t, gateway.SpeechSampleRate, sink.buffers[0].SampleRate)
	assert.Equal(t, []float32{0, 0.5}, sink.buffers[0].Channels[0])
}

func TestBridgeSwallowsAndLogsFailures(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	logger := zap.New(core)

	sink := &recordingSink{}
	NewBridge(fakeSynth{err: errors.New("quota exceeded")}, sink, logger).Speak(context.Background(), "hi")
	assert.Empty(t, sink.buffers)
	assert.Equal(t, 1, logs.FilterMessage("TTS failed").Len())

	failingSink := &recordingSink{err: errors.New("device busy")}
	NewBridge(fakeSynth{audio: pcm(1)}, failingSink, logger).Speak(context.Background(), "hi")
	assert.Equal(t, 1, logs.FilterMessage("TTS playback failed").Len())
}

func TestBridgeOverlappingCallsAllPlay(t *testing.T) {
	sink := &recordingSink{}
	bridge := NewBridge(fakeSynth{audio: pcm(1, 2)}, sink, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bridge.Speak(context.Background(), "same text")
		}()
	}
	wg.Wait()

	assert.Len(t, sink.buffers, 5)
}
