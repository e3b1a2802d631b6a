package classify

import (
	"context"
	"strings"

	"github.com/spec-kit/support-chat/internal/domain"
)

// Result is the classifier output: a sentiment label with a confidence score.
type Result struct {
	Label domain.Sentiment `json:"label"`
	Score float64          `json:"score"`
}

// Func is any sentiment classifier. Implementations must be pure and
// side-effect free; they may fail or time out.
type Func func(ctx context.Context, text string) (Result, error)

var negativeWords = []string{"bad", "terrible", "angry", "upset", "hate", "awful", "worst", "frustrated"}

var positiveWords = []string{"great", "good", "thanks", "thank you", "awesome", "love", "excellent"}

// Heuristic labels text by counting hits from small positive/negative word
// lists. Blank text is neutral at half confidence.
func Heuristic(_ context.Context, text string) (Result, error) {
	lowered := strings.ToLower(text)
	if strings.TrimSpace(lowered) == "" {
		return Result{Label: domain.SentimentNeutral, Score: 0.5}, nil
	}

	negHits := countHits(lowered, negativeWords)
	posHits := countHits(lowered, positiveWords)

	if negHits > posHits && negHits > 0 {
		return Result{Label: domain.SentimentNegative, Score: 0.8}, nil
	}
	if posHits > negHits && posHits > 0 {
		return Result{Label: domain.SentimentPositive, Score: 0.8}, nil
	}
	return Result{Label: domain.SentimentNeutral, Score: 0.5}, nil
}

func countHits(lowered string, words []string) int {
	hits := 0
	for _, w := range words {
		if strings.Contains(lowered, w) {
			hits++
		}
	}
	return hits
}

// SmartReplies suggests canned agent responses matched to the tone of the
// customer's text.
func SmartReplies(text string) []string {
	lowered := strings.ToLower(text)
	if strings.TrimSpace(lowered) == "" {
		return []string{}
	}

	if countHits(lowered, negativeWords) > 0 {
		return []string{
			"I'm really sorry about this experience. Let me fix this for you right away.",
			"I understand your frustration. Could you share a bit more detail so I can help?",
			"Thank you for your patience — I'm checking this now and will update you shortly.",
		}
	}
	if countHits(lowered, positiveWords) > 0 {
		return []string{
			"Thank you for the kind words! Is there anything else I can help you with?",
			"I'm glad to hear that. I'm here if you need anything else.",
			"Really appreciate your feedback — have a great day!",
		}
	}
	return []string{
		"Thank you for reaching out. Could you please provide a bit more detail?",
		"I understand. Let me check this for you right away.",
		"I'll look into this and get back to you as soon as possible.",
	}
}
