// Package gateway wraps the generative AI backend behind the four capabilities
// the companion needs: conversation, sentiment classification, grounded place
// search and speech synthesis.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/xaenox/hopeconnect/internal/models"
)

// Mode selects how a conversation is configured.
type Mode string

const (
	ModeStandard     Mode = "standard"
	ModeDeepThinking Mode = "deepThinking"
)

// Label is the user facing name of the mode.
func (m Mode) Label() string {
	if m == ModeDeepThinking {
		return "Deep Thinking"
	}
	return "Standard"
}

const (
	// SpeechSampleRate is the rate of the PCM returned by SynthesizeSpeech.
	SpeechSampleRate = 24000
	// SpeechChannels is the channel count of the PCM returned by SynthesizeSpeech.
	SpeechChannels = 1
)

// PlacesFallbackSummary is returned when a place search cannot be served.
const PlacesFallbackSummary = "I couldn't access location services right now."

var (
	ErrEmptyReply = errors.New("empty reply")
	ErrNoAudio    = errors.New("no audio in response")
)

// Error is returned by conversation turns and speech synthesis when the
// backend call fails.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Conversation is an opaque handle on one ongoing exchange with the backend.
// Turns on a conversation must not overlap.
type Conversation interface {
	ID() string
	Mode() Mode
	Send(ctx context.Context, text string) (string, error)
}

// Gateway is the AI backend as seen by the rest of the application.
type Gateway interface {
	StartConversation(ctx context.Context, mode Mode) (Conversation, error)
	// ClassifySentiment never fails; errors and answers outside the
	// enumeration yield StatusUnknown.
	ClassifySentiment(ctx context.Context, text string) models.EmotionalStatus
	// FindNearbyPlaces never fails; errors yield an empty list and
	// PlacesFallbackSummary.
	FindNearbyPlaces(ctx context.Context, query string, at *models.Coordinates) models.PlacesResult
	// SynthesizeSpeech returns little-endian 16-bit PCM at SpeechSampleRate.
	SynthesizeSpeech(ctx context.Context, text string) ([]byte, error)
}

func placesFallback() models.PlacesResult {
	return models.PlacesResult{Summary: PlacesFallbackSummary, Places: []models.PlaceResult{}}
}
