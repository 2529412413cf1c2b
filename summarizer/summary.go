package summarizer

import (
	"context"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/convoflow/convoflow/llm"
)

// Summary is the structured summarization output.
type Summary struct {
	ConversationID string   `json:"conversation_id"`
	Summary        string   `json:"summary"`
	KeyPoints      []string `json:"key_points"`
	Risks          []string `json:"risks"`
	FollowUps      []string `json:"follow_ups"`
	Source         string   `json:"source"` // "llm" or "rule_based"
}

const (
	summarySystemPrompt = "You summarize contact center calls and return concise, factual bullets."
	summaryUserPrompt   = "Summarize the following customer support call in four bullet points. Be concise and avoid speculation.\n\n"

	// transcriptTokenBudget bounds how much transcript is sent upstream.
	transcriptTokenBudget = 6000
)

var (
	riskKeywords     = []string{"cancel", "refund", "angry", "escalate", "complaint"}
	followUpKeywords = []string{"follow", "email", "case", "ticket", "tomorrow", "next week"}
)

// summarize produces the summary for a normalized transcript. The LLM path
// is used when a completer is configured; any failure falls back to the
// deterministic rule-based summary.
func summarize(ctx context.Context, completer llm.Completer, transcript Transcript, logger *zap.Logger, onFallback func()) Summary {
	text := transcript.Text
	source := "rule_based"
	summary := ""

	if completer != nil {
		got, err := completer.Complete(ctx, summarySystemPrompt, summaryUserPrompt+truncateTokens(text, transcriptTokenBudget))
		if err != nil {
			logger.Warn("llm summary failed, using rule-based fallback", zap.Error(err))
			if onFallback != nil {
				onFallback()
			}
		} else {
			summary = got
			source = "llm"
		}
	}
	if summary == "" {
		summary = ruleBasedSummary(text)
		source = "rule_based"
	}

	return Summary{
		ConversationID: transcript.ConversationID,
		Summary:        summary,
		KeyPoints:      keyPoints(text),
		Risks:          sentencesWithKeywords(text, riskKeywords),
		FollowUps:      sentencesWithKeywords(text, followUpKeywords),
		Source:         source,
	}
}

// ruleBasedSummary is the deterministic summary used without an API key.
func ruleBasedSummary(text string) string {
	flat := strings.Join(strings.Fields(text), " ")
	if len(flat) > 400 {
		flat = strings.TrimSpace(flat[:397]) + "..."
	}
	return "Auto-generated summary (rule-based): " + flat
}

// keyPoints returns the first four sentences of the transcript.
func keyPoints(text string) []string {
	sentences := splitSentences(text)
	if len(sentences) > 4 {
		sentences = sentences[:4]
	}
	return sentences
}

// sentencesWithKeywords returns every sentence containing any keyword,
// matched case-insensitively.
func sentencesWithKeywords(text string, keywords []string) []string {
	matches := make([]string, 0)
	for _, sentence := range splitSentences(text) {
		lower := strings.ToLower(sentence)
		for _, keyword := range keywords {
			if strings.Contains(lower, keyword) {
				matches = append(matches, sentence)
				break
			}
		}
	}
	return matches
}

func splitSentences(text string) []string {
	parts := strings.Split(text, ".")
	sentences := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			sentences = append(sentences, trimmed)
		}
	}
	return sentences
}

// truncateTokens bounds text to budget tokens using the cl100k_base
// encoding, falling back to a byte bound when the encoding is unavailable
// (offline environments).
func truncateTokens(text string, budget int) string {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		limit := budget * 4 // rough bytes-per-token estimate
		if len(text) > limit {
			return text[:limit]
		}
		return text
	}
	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= budget {
		return text
	}
	return enc.Decode(tokens[:budget])
}
