package classifier

import (
	"context"

	"github.com/sashabaranov/go-openai"
	"github.com/xaenox/hopeconnect/internal/models"
	"go.uber.org/zap"
)

type GPTClassifier struct {
	client    *openai.Client
	model     string
	maxTokens int
	logger    *zap.Logger
}

func NewGPTClassifier(client *openai.Client, model string, maxTokens int, logger *zap.Logger) *GPTClassifier {
	return &GPTClassifier{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

func (c *GPTClassifier) Classify(ctx context.Context, content string) models.EmotionalStatus {
	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: buildPrompt(content),
				},
			},
			MaxTokens: c.maxTokens,
		},
	)
	if err != nil {
		c.logger.Error("Sentiment analysis failed", zap.Error(err))
		return models.StatusUnknown
	}
	if len(resp.Choices) == 0 {
		c.logger.Warn("Sentiment analysis returned no choices")
		return models.StatusUnknown
	}

	answer := resp.Choices[0].Message.Content
	status := parseAnswer(answer)
	if status == models.StatusUnknown {
		c.logger.Debug("Sentiment answer outside categories", zap.String("response", answer))
	}
	return status
}
