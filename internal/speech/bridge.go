package speech

import (
	"context"

	"github.com/xaenox/hopeconnect/internal/gateway"
	"go.uber.org/zap"
)

// Synthesizer is the part of the gateway the bridge needs.
type Synthesizer interface {
	SynthesizeSpeech(ctx context.Context, text string) ([]byte, error)
}

// Bridge turns reply text into audible playback. It keeps no state between
// calls; concurrent calls play concurrently.
type Bridge struct {
	synth  Synthesizer
	sink   Sink
	logger *zap.Logger
}

func NewBridge(synth Synthesizer, sink Sink, logger *zap.Logger) *Bridge {
	return &Bridge{
		synth:  synth,
		sink:   sink,
		logger: logger,
	}
}

// Speak synthesizes and plays text. Failures are logged and swallowed.
func (b *Bridge) Speak(ctx context.Context, text string) {
	pcm, err := b.synth.SynthesizeSpeech(ctx, text)
	if err != nil {
		b.logger.Error("TTS failed", zap.Error(err))
		return
	}

	buf, err := DecodePCM16(pcm, gateway.SpeechSampleRate, gateway.SpeechChannels)
	if err != nil {
		b.logger.Error("TTS decode failed", zap.Error(err))
		return
	}

	if err := b.sink.Play(ctx, buf); err != nil {
		b.logger.Error("TTS playback failed", zap.Error(err))
		return
	}

	b.logger.Debug("TTS played", zap.Int("frames", buf.Frames()))
}
