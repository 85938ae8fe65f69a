package classifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/xaenox/hopeconnect/internal/models"
)

// Classifier maps free text onto the closed EmotionalStatus enumeration.
// Implementations never fail: any error becomes StatusUnknown.
type Classifier interface {
	Classify(ctx context.Context, content string) models.EmotionalStatus
}

func buildPrompt(content string) string {
	return fmt.Sprintf(`Analyze the following user input and categorize their emotional state into exactly one of these categories: Great, Good, Okay, Struggling, Crisis.

Input: "%s"

Return ONLY the category word.`, content)
}

// parseAnswer accepts the model answer only when it is exactly one category
// word, allowing surrounding whitespace and a trailing period.
func parseAnswer(answer string) models.EmotionalStatus {
	answer = strings.TrimSpace(answer)
	answer = strings.TrimSuffix(answer, ".")
	return models.ParseStatus(answer)
}

// SimpleClassifier is a keyword based classifier used when no AI backend is
// configured.
type SimpleClassifier struct {
	rules []keywordRule
}

type keywordRule struct {
	status   models.EmotionalStatus
	keywords []string
}

func NewSimpleClassifier() *SimpleClassifier {
	// Ordered by severity so the most serious match wins.
	return &SimpleClassifier{
		rules: []keywordRule{
			{models.StatusCrisis, []string{"suicide", "kill myself", "end it all", "self-harm", "hurt myself", "can't go on"}},
			{models.StatusStruggling, []string{"anxious", "stressed", "sad", "depressed", "lonely", "overwhelmed", "struggling", "tired of"}},
			{models.StatusGreat, []string{"amazing", "fantastic", "wonderful", "great", "excited"}},
			{models.StatusGood, []string{"good", "happy", "better", "calm", "grateful"}},
			{models.StatusOkay, []string{"okay", "ok", "fine", "alright", "meh"}},
		},
	}
}

func (c *SimpleClassifier) Classify(ctx context.Context, content string) models.EmotionalStatus {
	content = strings.ToLower(content)
	words := strings.FieldsFunc(content, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r == '\'' || r == '-')
	})
	padded := " " + strings.Join(words, " ") + " "

	for _, rule := range c.rules {
		for _, keyword := range rule.keywords {
			if strings.Contains(padded, " "+keyword+" ") {
				return rule.status
			}
		}
	}
	return models.StatusUnknown
}
