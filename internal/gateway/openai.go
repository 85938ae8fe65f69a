package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	"github.com/xaenox/hopeconnect/internal/classifier"
	"github.com/xaenox/hopeconnect/internal/models"
	"go.uber.org/zap"
)

type OpenAIConfig struct {
	APIKey          string
	BaseURL         string
	ChatModel       string
	ReasoningModel  string
	SentimentModel  string
	SpeechModel     string
	Voice           string
	Temperature     float32
	MaxTokens       int
	ReasoningEffort string
}

var errPlacesUnsupported = errors.New("grounded place search is not supported by this backend")

// OpenAIGateway serves conversation, sentiment and speech from the OpenAI API.
// Place search is not available there and always degrades to the fallback.
type OpenAIGateway struct {
	client     *openai.Client
	cfg        OpenAIConfig
	classifier classifier.Classifier
	logger     *zap.Logger
}

func NewOpenAIGateway(cfg OpenAIConfig, logger *zap.Logger) (*OpenAIGateway, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(clientCfg)

	return &OpenAIGateway{
		client:     client,
		cfg:        cfg,
		classifier: classifier.NewGPTClassifier(client, cfg.SentimentModel, 5, logger),
		logger:     logger,
	}, nil
}

func (g *OpenAIGateway) StartConversation(ctx context.Context, mode Mode) (Conversation, error) {
	return &openAIConversation{
		id:     uuid.New().String(),
		mode:   mode,
		client: g.client,
		cfg:    g.cfg,
		history: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemInstruction},
		},
	}, nil
}

type openAIConversation struct {
	id     string
	mode   Mode
	client *openai.Client
	cfg    OpenAIConfig

	mu      sync.Mutex
	history []openai.ChatCompletionMessage
}

func (c *openAIConversation) ID() string { return c.id }

func (c *openAIConversation) Mode() Mode { return c.mode }

// request mirrors the Gemini split: reasoning effort for deep thinking,
// temperature otherwise.
func (c *openAIConversation) request(messages []openai.ChatCompletionMessage) openai.ChatCompletionRequest {
	if c.mode == ModeDeepThinking {
		return openai.ChatCompletionRequest{
			Model:               c.cfg.ReasoningModel,
			Messages:            messages,
			MaxCompletionTokens: c.cfg.MaxTokens,
			ReasoningEffort:     c.cfg.ReasoningEffort,
		}
	}
	return openai.ChatCompletionRequest{
		Model:       c.cfg.ChatModel,
		Messages:    messages,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}
}

func (c *openAIConversation) Send(ctx context.Context, text string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	userMsg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: text}
	messages := append(append([]openai.ChatCompletionMessage{}, c.history...), userMsg)

	resp, err := c.client.CreateChatCompletion(ctx, c.request(messages))
	if err != nil {
		return "", &Error{Op: "send turn", Err: err}
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &Error{Op: "send turn", Err: ErrEmptyReply}
	}

	reply := resp.Choices[0].Message.Content
	// History only grows with complete turns.
	c.history = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: reply,
	})
	return reply, nil
}

func (g *OpenAIGateway) ClassifySentiment(ctx context.Context, text string) models.EmotionalStatus {
	return g.classifier.Classify(ctx, text)
}

func (g *OpenAIGateway) FindNearbyPlaces(ctx context.Context, query string, at *models.Coordinates) models.PlacesResult {
	g.logger.Warn("Maps search failed", zap.Error(errPlacesUnsupported))
	return placesFallback()
}

func (g *OpenAIGateway) SynthesizeSpeech(ctx context.Context, text string) ([]byte, error) {
	resp, err := g.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(g.cfg.SpeechModel),
		Input:          text,
		Voice:          openai.SpeechVoice(g.cfg.Voice),
		ResponseFormat: openai.SpeechResponseFormatPcm,
	})
	if err != nil {
		return nil, &Error{Op: "synthesize speech", Err: err}
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, &Error{Op: "synthesize speech", Err: err}
	}
	if len(audio) == 0 {
		return nil, &Error{Op: "synthesize speech", Err: ErrNoAudio}
	}
	return audio, nil
}
