package summarizer

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/convoflow/convoflow/llm"
)

// Quality is the structured QA rubric for one call. The four dimension
// scores are always in [1,5]; Overall is the rounded arithmetic mean,
// recomputed locally and never trusted from upstream.
type Quality struct {
	ConversationID  string   `json:"conversation_id"`
	Professionalism int      `json:"professionalism"`
	Empathy         int      `json:"empathy"`
	Resolution      int      `json:"resolution"`
	Compliance      int      `json:"compliance"`
	Overall         int      `json:"overall"`
	Feedback        string   `json:"feedback"`
	Risks           []string `json:"risks"`
	Source          string   `json:"source"` // "llm" or "heuristic"
}

var riskPhrases = []string{"cancel", "escalate", "sue", "violation", "refund"}

var (
	professionalismKeywords = []string{"thank", "appreciate", "help"}
	empathyKeywords         = []string{"sorry", "understand", "apologize"}
	resolutionKeywords      = []string{"resolved", "solution", "fixed", "sent"}
	complianceKeywords      = []string{"policy", "verify", "recorded", "consent"}
)

// qualityTool is the function schema the LLM must answer through.
var qualityTool = llm.ToolSchema{
	Name:        "emit_quality_score",
	Description: "Return QA rubric scores (1-5) for a customer support interaction, short feedback, and detected risks.",
	Parameters: json.RawMessage(`{
		"type": "object",
		"additionalProperties": false,
		"properties": {
			"professionalism": {"type": "integer", "minimum": 1, "maximum": 5},
			"empathy": {"type": "integer", "minimum": 1, "maximum": 5},
			"resolution": {"type": "integer", "minimum": 1, "maximum": 5},
			"compliance": {"type": "integer", "minimum": 1, "maximum": 5},
			"summary_feedback": {"type": "string"},
			"risks": {"type": "array", "items": {"type": "string"}}
		},
		"required": ["professionalism", "empathy", "resolution", "compliance", "summary_feedback", "risks"]
	}`),
}

const qualitySystemPrompt = "You are a strict QA auditor for contact center calls. " +
	"Use ONLY the provided transcript and context. Scores are integers 1-5; " +
	"if unclear, choose 3. Keep feedback short and cite brief evidence."

// scoreQuality evaluates a call. The tool-calling LLM path is preferred
// when configured; any parse or API issue falls back to the keyword
// heuristic so scoring always succeeds.
func scoreQuality(ctx context.Context, scorer llm.ToolCompleter, transcript Transcript, summary Summary, logger *zap.Logger, onFallback func()) Quality {
	if scorer != nil && strings.TrimSpace(transcript.Text) != "" {
		if q, ok := scoreWithLLM(ctx, scorer, transcript, summary, logger); ok {
			return q
		}
		if onFallback != nil {
			onFallback()
		}
	}
	return scoreHeuristic(transcript)
}

type qualityToolArgs struct {
	Professionalism *int     `json:"professionalism"`
	Empathy         *int     `json:"empathy"`
	Resolution      *int     `json:"resolution"`
	Compliance      *int     `json:"compliance"`
	SummaryFeedback string   `json:"summary_feedback"`
	Risks           []string `json:"risks"`
}

func scoreWithLLM(ctx context.Context, scorer llm.ToolCompleter, transcript Transcript, summary Summary, logger *zap.Logger) (Quality, bool) {
	var b strings.Builder
	b.WriteString("Score this call using the rubric. Return ONLY via the tool.\n\n")
	b.WriteString("Rubric:\n")
	b.WriteString("- professionalism: tone, greeting, and courtesy standards\n")
	b.WriteString("- empathy: understood and acknowledged customer sentiment\n")
	b.WriteString("- resolution: clear path to resolve the issue\n")
	b.WriteString("- compliance: adhered to disclaimers and verification\n\n")
	fmt.Fprintf(&b, "Transcript:\n%s\n", transcript.Text)
	if summary.Summary != "" {
		fmt.Fprintf(&b, "\nExisting summary (optional context):\n%s\n", summary.Summary)
	}
	if len(summary.KeyPoints) > 0 {
		b.WriteString("\nKey points (optional context):\n")
		for _, kp := range summary.KeyPoints {
			fmt.Fprintf(&b, "- %s\n", kp)
		}
	}

	args, err := scorer.CompleteTool(ctx, qualitySystemPrompt, b.String(), qualityTool)
	if err != nil {
		logger.Warn("llm quality scoring failed, using heuristic", zap.Error(err))
		return Quality{}, false
	}

	var parsed qualityToolArgs
	if err := json.Unmarshal(args, &parsed); err != nil {
		logger.Warn("llm quality payload unreadable, using heuristic", zap.Error(err))
		return Quality{}, false
	}
	if parsed.Professionalism == nil || parsed.Empathy == nil || parsed.Resolution == nil || parsed.Compliance == nil {
		logger.Warn("llm quality payload missing scores, using heuristic")
		return Quality{}, false
	}

	professionalism := clampScore(*parsed.Professionalism)
	empathy := clampScore(*parsed.Empathy)
	resolution := clampScore(*parsed.Resolution)
	compliance := clampScore(*parsed.Compliance)

	feedback := strings.TrimSpace(parsed.SummaryFeedback)
	if feedback == "" {
		feedback = "LLM QA scoring completed."
	}
	risks := make([]string, 0, len(parsed.Risks))
	for _, r := range parsed.Risks {
		if trimmed := strings.TrimSpace(r); trimmed != "" {
			risks = append(risks, trimmed)
		}
	}

	return Quality{
		ConversationID:  transcript.ConversationID,
		Professionalism: professionalism,
		Empathy:         empathy,
		Resolution:      resolution,
		Compliance:      compliance,
		Overall:         overallScore(professionalism, empathy, resolution, compliance),
		Feedback:        feedback,
		Risks:           risks,
		Source:          "llm",
	}, true
}

// scoreHeuristic scores by keyword coverage when no LLM is available.
func scoreHeuristic(transcript Transcript) Quality {
	professionalism := scorePresence(transcript.Text, professionalismKeywords)
	empathy := scorePresence(transcript.Text, empathyKeywords)
	resolution := scorePresence(transcript.Text, resolutionKeywords)
	compliance := scorePresence(transcript.Text, complianceKeywords)

	return Quality{
		ConversationID:  transcript.ConversationID,
		Professionalism: professionalism,
		Empathy:         empathy,
		Resolution:      resolution,
		Compliance:      compliance,
		Overall:         overallScore(professionalism, empathy, resolution, compliance),
		Feedback:        "Heuristic scores based on keyword coverage; connect a tool-calling LLM for production QA.",
		Risks:           collectRisks(transcript.Text),
		Source:          "heuristic",
	}
}

func scorePresence(text string, keywords []string) int {
	lower := strings.ToLower(text)
	matches := 0
	for _, keyword := range keywords {
		if strings.Contains(lower, keyword) {
			matches++
		}
	}
	return clampScore(matches)
}

func collectRisks(text string) []string {
	lower := strings.ToLower(text)
	found := make([]string, 0)
	for _, phrase := range riskPhrases {
		if strings.Contains(lower, phrase) {
			found = append(found, phrase)
		}
	}
	return found
}

func clampScore(x int) int {
	if x < 1 {
		return 1
	}
	if x > 5 {
		return 5
	}
	return x
}

// overallScore is the rounded arithmetic mean of the four dimensions,
// always computed here regardless of what upstream supplied.
func overallScore(a, b, c, d int) int {
	return clampScore(int(math.Round(float64(a+b+c+d) / 4.0)))
}
