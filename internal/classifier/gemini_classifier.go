package classifier

import (
	"context"

	"github.com/xaenox/hopeconnect/internal/models"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GeminiClassifier runs the single-word sentiment prompt against a fast
// Gemini model.
type GeminiClassifier struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

func NewGeminiClassifier(client *genai.Client, model string, logger *zap.Logger) *GeminiClassifier {
	return &GeminiClassifier{
		client: client,
		model:  model,
		logger: logger,
	}
}

func (c *GeminiClassifier) Classify(ctx context.Context, content string) models.EmotionalStatus {
	contents := []*genai.Content{
		genai.NewContentFromText(buildPrompt(content), genai.RoleUser),
	}

	res, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		c.logger.Error("Sentiment analysis failed", zap.Error(err))
		return models.StatusUnknown
	}

	answer := res.Text()
	status := parseAnswer(answer)
	if status == models.StatusUnknown {
		c.logger.Debug("Sentiment answer outside categories", zap.String("response", answer))
	}
	return status
}
