package gateway

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/xaenox/hopeconnect/internal/classifier"
	"github.com/xaenox/hopeconnect/internal/models"
)

// MockGateway is an offline backend for local development.
type MockGateway struct {
	classifier classifier.Classifier
}

func NewMockGateway() *MockGateway {
	return &MockGateway{classifier: classifier.NewSimpleClassifier()}
}

func (m *MockGateway) StartConversation(ctx context.Context, mode Mode) (Conversation, error) {
	return &mockConversation{id: uuid.New().String(), mode: mode}, nil
}

type mockConversation struct {
	id   string
	mode Mode
}

func (c *mockConversation) ID() string { return c.id }

func (c *mockConversation) Mode() Mode { return c.mode }

func (c *mockConversation) Send(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &Error{Op: "send turn", Err: err}
	}
	return fmt.Sprintf("I hear you. You said %q. Tell me a little more about how that feels.", text), nil
}

func (m *MockGateway) ClassifySentiment(ctx context.Context, text string) models.EmotionalStatus {
	return m.classifier.Classify(ctx, text)
}

func (m *MockGateway) FindNearbyPlaces(ctx context.Context, query string, at *models.Coordinates) models.PlacesResult {
	return models.PlacesResult{
		Summary: fmt.Sprintf("Offline mode: no live results for %q.", query),
		Places:  []models.PlaceResult{},
	}
}

// SynthesizeSpeech returns a short stretch of silence.
func (m *MockGateway) SynthesizeSpeech(ctx context.Context, text string) ([]byte, error) {
	samples := SpeechSampleRate / 10
	return make([]byte, samples*2*SpeechChannels), nil
}
