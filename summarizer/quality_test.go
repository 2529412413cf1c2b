package summarizer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/convoflow/convoflow/llm"
)

type stubScorer struct {
	args json.RawMessage
	err  error
}

func (s *stubScorer) CompleteTool(ctx context.Context, system, user string, tool llm.ToolSchema) (json.RawMessage, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.args, nil
}

func TestOverallScoreIsRoundedMean(t *testing.T) {
	assert.Equal(t, 3, overallScore(3, 3, 3, 3))
	assert.Equal(t, 4, overallScore(3, 4, 4, 4))
	assert.Equal(t, 3, overallScore(2, 3, 3, 3)) // 2.75 rounds up to 3
	assert.Equal(t, 1, overallScore(1, 1, 1, 1))
	assert.Equal(t, 5, overallScore(5, 5, 5, 5))
}

func TestClampScoreBounds(t *testing.T) {
	assert.Equal(t, 1, clampScore(0))
	assert.Equal(t, 1, clampScore(-3))
	assert.Equal(t, 5, clampScore(9))
	assert.Equal(t, 3, clampScore(3))
}

func TestScoreHeuristicKeywordCoverage(t *testing.T) {
	transcript := Transcript{
		ConversationID: "conv-q",
		Text: "Thank you for calling, I understand the refund request. " +
			"The issue is resolved and the policy was recorded.",
	}
	q := scoreHeuristic(transcript)

	assert.Equal(t, "heuristic", q.Source)
	for _, score := range []int{q.Professionalism, q.Empathy, q.Resolution, q.Compliance, q.Overall} {
		assert.GreaterOrEqual(t, score, 1)
		assert.LessOrEqual(t, score, 5)
	}
	assert.Equal(t, overallScore(q.Professionalism, q.Empathy, q.Resolution, q.Compliance), q.Overall)
	assert.Contains(t, q.Risks, "refund")
}

func TestScoreWithLLMRecomputesOverall(t *testing.T) {
	// Upstream reports inflated values; dimensions are clamped and the
	// overall is recomputed locally.
	scorer := &stubScorer{args: json.RawMessage(`{
		"professionalism": 9,
		"empathy": 4,
		"resolution": 4,
		"compliance": 0,
		"summary_feedback": "Polite and efficient.",
		"risks": [" escalation threat ", ""]
	}`)}

	q := scoreQuality(context.Background(), scorer, Transcript{ConversationID: "conv-q", Text: "hello."}, Summary{}, zap.NewNop(), nil)

	require.Equal(t, "llm", q.Source)
	assert.Equal(t, 5, q.Professionalism)
	assert.Equal(t, 1, q.Compliance)
	assert.Equal(t, overallScore(5, 4, 4, 1), q.Overall)
	assert.Equal(t, []string{"escalation threat"}, q.Risks)
	assert.Equal(t, "Polite and efficient.", q.Feedback)
}

func TestScoreQualityFallsBackOnScorerError(t *testing.T) {
	fallbacks := 0
	q := scoreQuality(context.Background(), &stubScorer{err: errors.New("quota")},
		Transcript{Text: "thank you."}, Summary{}, zap.NewNop(), func() { fallbacks++ })

	assert.Equal(t, "heuristic", q.Source)
	assert.Equal(t, 1, fallbacks)
}

func TestScoreQualityFallsBackOnMissingScores(t *testing.T) {
	q := scoreQuality(context.Background(), &stubScorer{args: json.RawMessage(`{"professionalism": 4}`)},
		Transcript{Text: "thank you."}, Summary{}, zap.NewNop(), nil)
	assert.Equal(t, "heuristic", q.Source)
}

func TestScoreQualitySkipsLLMForEmptyTranscript(t *testing.T) {
	scorer := &stubScorer{args: json.RawMessage(`{}`)}
	q := scoreQuality(context.Background(), scorer, Transcript{Text: "   "}, Summary{}, zap.NewNop(), nil)
	assert.Equal(t, "heuristic", q.Source)
}
