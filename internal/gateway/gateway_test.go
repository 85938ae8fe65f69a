package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/hopeconnect/internal/models"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

func TestChatConfigStandardSetsTemperatureOnly(t *testing.T) {
	cfg := chatConfig(ModeStandard, 0.7, 32768)

	require.NotNil(t, cfg.Temperature)
	assert.InDelta(t, 0.7, *cfg.Temperature, 1e-6)
	assert.Nil(t, cfg.ThinkingConfig)
	require.NotNil(t, cfg.SystemInstruction)
	assert.Contains(t, cfg.SystemInstruction.Parts[0].Text, "HopeConnect")
}

func TestChatConfigDeepThinkingOmitsTemperature(t *testing.T) {
	cfg := chatConfig(ModeDeepThinking, 0.7, 32768)

	assert.Nil(t, cfg.Temperature)
	require.NotNil(t, cfg.ThinkingConfig)
	require.NotNil(t, cfg.ThinkingConfig.ThinkingBudget)
	assert.Equal(t, int32(32768), *cfg.ThinkingConfig.ThinkingBudget)
}

func TestPlacesConfig(t *testing.T) {
	withoutLocation := placesConfig(nil)
	require.Len(t, withoutLocation.Tools, 1)
	assert.NotNil(t, withoutLocation.Tools[0].GoogleMaps)
	assert.Nil(t, withoutLocation.ToolConfig)

	withLocation := placesConfig(&models.Coordinates{Latitude: 40.7, Longitude: -74})
	require.NotNil(t, withLocation.ToolConfig)
	latLng := withLocation.ToolConfig.RetrievalConfig.LatLng
	assert.Equal(t, 40.7, *latLng.Latitude)
	assert.Equal(t, -74.0, *latLng.Longitude)
}

func TestPlacesFromChunksKeepsOnlyMaps(t *testing.T) {
	chunks := []*genai.GroundingChunk{
		{Web: &genai.GroundingChunkWeb{URI: "https://example.com"}},
		{Maps: &genai.GroundingChunkMaps{Title: "Calm Clinic", Text: "12 Main St", URI: "https://maps.example/1"}},
		nil,
		{Maps: &genai.GroundingChunkMaps{Title: "Open Door Counseling", URI: "https://maps.example/2"}},
	}

	places := placesFromChunks(chunks)
	require.Len(t, places, 2)
	assert.Equal(t, models.PlaceResult{Name: "Calm Clinic", Address: "12 Main St", Link: "https://maps.example/1"}, places[0])
	assert.Equal(t, "Open Door Counseling", places[1].Name)

	assert.NotNil(t, placesFromChunks(nil), "an empty result is an empty list, not nil")
}

func TestAudioFromResponse(t *testing.T) {
	pcm := []byte{0x00, 0x40, 0x00, 0xC0}
	res := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{InlineData: &genai.Blob{Data: pcm, MIMEType: "audio/pcm"}}}}},
		},
	}

	got, err := audioFromResponse(res)
	require.NoError(t, err)
	assert.Equal(t, pcm, got)

	_, err = audioFromResponse(&genai.GenerateContentResponse{})
	assert.ErrorIs(t, err, ErrNoAudio)

	_, err = audioFromResponse(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: "no audio"}}}}},
	})
	assert.ErrorIs(t, err, ErrNoAudio)
}

func TestErrorUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	var err error = &Error{Op: "send turn", Err: cause}

	var gwErr *Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, "send turn", gwErr.Op)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "gateway send turn: connection reset", err.Error())
}

func TestModeLabel(t *testing.T) {
	assert.Equal(t, "Deep Thinking", ModeDeepThinking.Label())
	assert.Equal(t, "Standard", ModeStandard.Label())
}

// fakeOpenAI records chat requests and answers with canned replies.
type fakeOpenAI struct {
	requests []openai.ChatCompletionRequest
	reply    string
	fail     bool
	speech   []byte
}

func (f *fakeOpenAI) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/chat/completions"):
			var req openai.ChatCompletionRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			f.requests = append(f.requests, req)
			if f.fail {
				http.Error(w, `{"error":{"message":"unavailable"}}`, http.StatusServiceUnavailable)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
				Choices: []openai.ChatCompletionChoice{
					{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: f.reply}},
				},
			})
		case strings.HasSuffix(r.URL.Path, "/audio/speech"):
			body, _ := io.ReadAll(r.Body)
			if !strings.Contains(string(body), `"response_format":"pcm"`) {
				http.Error(w, "expected pcm", http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "audio/pcm")
			_, _ = w.Write(f.speech)
		default:
			http.NotFound(w, r)
		}
	}
}

func newOpenAITestGateway(t *testing.T, fake *fakeOpenAI) *OpenAIGateway {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	gw, err := NewOpenAIGateway(OpenAIConfig{
		APIKey:          "test-key",
		BaseURL:         srv.URL + "/v1",
		ChatModel:       openai.GPT4oMini,
		ReasoningModel:  openai.O3Mini,
		SentimentModel:  openai.GPT4oMini,
		SpeechModel:     string(openai.TTSModel1),
		Voice:           string(openai.VoiceNova),
		Temperature:     0.7,
		MaxTokens:       512,
		ReasoningEffort: "high",
	}, zap.NewNop())
	require.NoError(t, err)
	return gw
}

func TestOpenAIConversationKeepsHistory(t *testing.T) {
	fake := &fakeOpenAI{reply: "That sounds hard."}
	gw := newOpenAITestGateway(t, fake)
	ctx := context.Background()

	conv, err := gw.StartConversation(ctx, ModeStandard)
	require.NoError(t, err)
	assert.NotEmpty(t, conv.ID())

	reply, err := conv.Send(ctx, "I had a rough day")
	require.NoError(t, err)
	assert.Equal(t, "That sounds hard.", reply)

	_, err = conv.Send(ctx, "and I can't sleep")
	require.NoError(t, err)

	require.Len(t, fake.requests, 2)
	second := fake.requests[1]
	require.Len(t, second.Messages, 4)
	assert.Equal(t, openai.ChatMessageRoleSystem, second.Messages[0].Role)
	assert.Equal(t, "I had a rough day", second.Messages[1].Content)
	assert.Equal(t, "That sounds hard.", second.Messages[2].Content)
	assert.Equal(t, "and I can't sleep", second.Messages[3].Content)
	assert.InDelta(t, 0.7, second.Temperature, 1e-6)
	assert.Empty(t, second.ReasoningEffort)
}

func TestOpenAIDeepThinkingUsesReasoningWithoutTemperature(t *testing.T) {
	fake := &fakeOpenAI{reply: "Let's think it through."}
	gw := newOpenAITestGateway(t, fake)
	ctx := context.Background()

	conv, err := gw.StartConversation(ctx, ModeDeepThinking)
	require.NoError(t, err)
	_, err = conv.Send(ctx, "help me plan my week")
	require.NoError(t, err)

	require.Len(t, fake.requests, 1)
	req := fake.requests[0]
	assert.Equal(t, openai.O3Mini, req.Model)
	assert.Equal(t, "high", req.ReasoningEffort)
	assert.Zero(t, req.Temperature)
}

func TestOpenAIFailedTurnIsGatewayErrorAndNotRemembered(t *testing.T) {
	fake := &fakeOpenAI{reply: "ok", fail: true}
	gw := newOpenAITestGateway(t, fake)
	ctx := context.Background()

	conv, err := gw.StartConversation(ctx, ModeStandard)
	require.NoError(t, err)

	_, err = conv.Send(ctx, "lost turn")
	var gwErr *Error
	require.ErrorAs(t, err, &gwErr)

	fake.fail = false
	_, err = conv.Send(ctx, "retry")
	require.NoError(t, err)

	last := fake.requests[len(fake.requests)-1]
	require.Len(t, last.Messages, 2)
	assert.Equal(t, "retry", last.Messages[1].Content)
}

func TestOpenAISpeechReturnsPCM(t *testing.T) {
	fake := &fakeOpenAI{speech: []byte{1, 0, 2, 0}}
	gw := newOpenAITestGateway(t, fake)

	pcm, err := gw.SynthesizeSpeech(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 2, 0}, pcm)
}

func TestOpenAIPlacesFallsBack(t *testing.T) {
	gw := newOpenAITestGateway(t, &fakeOpenAI{})

	res := gw.FindNearbyPlaces(context.Background(), "counselors", &models.Coordinates{Latitude: 1, Longitude: 2})
	assert.Equal(t, PlacesFallbackSummary, res.Summary)
	assert.NotNil(t, res.Places)
	assert.Empty(t, res.Places)
}

func TestMockGateway(t *testing.T) {
	gw := NewMockGateway()
	ctx := context.Background()

	conv, err := gw.StartConversation(ctx, ModeDeepThinking)
	require.NoError(t, err)
	assert.Equal(t, ModeDeepThinking, conv.Mode())

	reply, err := conv.Send(ctx, "hello")
	require.NoError(t, err)
	assert.Contains(t, reply, "hello")

	assert.Equal(t, models.StatusStruggling, gw.ClassifySentiment(ctx, "I'm so stressed"))

	pcm, err := gw.SynthesizeSpeech(ctx, "hi")
	require.NoError(t, err)
	assert.Len(t, pcm, SpeechSampleRate/10*2)
}
