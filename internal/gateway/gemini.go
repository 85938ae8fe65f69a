package gateway

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/xaenox/hopeconnect/internal/classifier"
	"github.com/xaenox/hopeconnect/internal/models"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

type GeminiConfig struct {
	APIKey         string
	ChatModel      string
	SentimentModel string
	PlacesModel    string
	SpeechModel    string
	Voice          string
	Temperature    float32
	ThinkingBudget int32
}

// GeminiGateway serves every capability from the Gemini API.
type GeminiGateway struct {
	client     *genai.Client
	cfg        GeminiConfig
	classifier classifier.Classifier
	logger     *zap.Logger
}

func NewGeminiGateway(ctx context.Context, cfg GeminiConfig, logger *zap.Logger) (*GeminiGateway, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiGateway{
		client:     client,
		cfg:        cfg,
		classifier: classifier.NewGeminiClassifier(client, cfg.SentimentModel, logger),
		logger:     logger,
	}, nil
}

// chatConfig builds the conversation config. Deep thinking carries a reasoning
// budget and no temperature; the two are never combined.
func chatConfig(mode Mode, temperature float32, thinkingBudget int32) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
	}

	if mode == ModeDeepThinking {
		config.ThinkingConfig = &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(thinkingBudget),
		}
		return config
	}

	config.Temperature = genai.Ptr(temperature)
	return config
}

func (g *GeminiGateway) StartConversation(ctx context.Context, mode Mode) (Conversation, error) {
	chat, err := g.client.Chats.Create(ctx, g.cfg.ChatModel, chatConfig(mode, g.cfg.Temperature, g.cfg.ThinkingBudget), nil)
	if err != nil {
		return nil, &Error{Op: "start conversation", Err: err}
	}

	conv := &geminiConversation{
		id:   uuid.New().String(),
		mode: mode,
		chat: chat,
	}
	g.logger.Debug("Started conversation",
		zap.String("conversation_id", conv.id),
		zap.String("mode", string(mode)))
	return conv, nil
}

type geminiConversation struct {
	id   string
	mode Mode
	chat *genai.Chat
}

func (c *geminiConversation) ID() string { return c.id }

func (c *geminiConversation) Mode() Mode { return c.mode }

func (c *geminiConversation) Send(ctx context.Context, text string) (string, error) {
	res, err := c.chat.SendMessage(ctx, genai.Part{Text: text})
	if err != nil {
		return "", &Error{Op: "send turn", Err: err}
	}

	reply := res.Text()
	if reply == "" {
		return "", &Error{Op: "send turn", Err: ErrEmptyReply}
	}
	return reply, nil
}

func (g *GeminiGateway) ClassifySentiment(ctx context.Context, text string) models.EmotionalStatus {
	return g.classifier.Classify(ctx, text)
}

func placesConfig(at *models.Coordinates) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{
			{GoogleMaps: &genai.GoogleMaps{}},
		},
	}

	if at != nil {
		config.ToolConfig = &genai.ToolConfig{
			RetrievalConfig: &genai.RetrievalConfig{
				LatLng: &genai.LatLng{
					Latitude:  genai.Ptr(at.Latitude),
					Longitude: genai.Ptr(at.Longitude),
				},
			},
		}
	}
	return config
}

func (g *GeminiGateway) FindNearbyPlaces(ctx context.Context, query string, at *models.Coordinates) models.PlacesResult {
	contents := []*genai.Content{
		genai.NewContentFromText(placesPrompt(query), genai.RoleUser),
	}

	res, err := g.client.Models.GenerateContent(ctx, g.cfg.PlacesModel, contents, placesConfig(at))
	if err != nil {
		g.logger.Error("Maps search failed", zap.Error(err))
		return placesFallback()
	}

	var chunks []*genai.GroundingChunk
	if len(res.Candidates) > 0 && res.Candidates[0].GroundingMetadata != nil {
		chunks = res.Candidates[0].GroundingMetadata.GroundingChunks
	}

	return models.PlacesResult{
		Summary: res.Text(),
		Places:  placesFromChunks(chunks),
	}
}

// placesFromChunks keeps only the maps grounding chunks.
func placesFromChunks(chunks []*genai.GroundingChunk) []models.PlaceResult {
	places := []models.PlaceResult{}
	for _, chunk := range chunks {
		if chunk == nil || chunk.Maps == nil {
			continue
		}
		places = append(places, models.PlaceResult{
			Name:    chunk.Maps.Title,
			Address: chunk.Maps.Text,
			Link:    chunk.Maps.URI,
		})
	}
	return places
}

func (g *GeminiGateway) SynthesizeSpeech(ctx context.Context, text string) ([]byte, error) {
	contents := []*genai.Content{
		{Parts: []*genai.Part{{Text: text}}},
	}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityAudio)},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: g.cfg.Voice},
			},
		},
	}

	res, err := g.client.Models.GenerateContent(ctx, g.cfg.SpeechModel, contents, config)
	if err != nil {
		return nil, &Error{Op: "synthesize speech", Err: err}
	}

	audio, err := audioFromResponse(res)
	if err != nil {
		return nil, &Error{Op: "synthesize speech", Err: err}
	}
	return audio, nil
}

func audioFromResponse(res *genai.GenerateContentResponse) ([]byte, error) {
	if res == nil || len(res.Candidates) == 0 {
		return nil, ErrNoAudio
	}
	content := res.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return nil, ErrNoAudio
	}
	part := content.Parts[0]
	if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
		return nil, ErrNoAudio
	}
	return part.InlineData.Data, nil
}
