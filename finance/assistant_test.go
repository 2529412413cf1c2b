package finance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/convoflow/convoflow/market"
	"github.com/convoflow/convoflow/rag"
	"github.com/convoflow/convoflow/store"
)

// stubQuotes returns canned quotes per symbol; unknown symbols fail softly
// the way a missing API key does.
type stubQuotes struct {
	quotes map[string]market.Quote
	calls  []string
}

func (s *stubQuotes) GlobalQuote(ctx context.Context, symbol string) market.Quote {
	s.calls = append(s.calls, symbol)
	if q, ok := s.quotes[symbol]; ok {
		return q
	}
	return market.Quote{Symbol: symbol, Err: "missing Alpha Vantage API key"}
}

func newTestAssistant(t *testing.T, quotes *stubQuotes) *Assistant {
	t.Helper()
	if quotes == nil {
		quotes = &stubQuotes{}
	}
	return NewAssistant(
		quotes,
		rag.NewStaticRetriever(nil),
		store.NewMemoryCheckpointStore(zap.NewNop()),
		store.NewMemoryRunStore(zap.NewNop()),
		zap.NewNop(),
	)
}

func TestRunQuoteFailureProducesDisclaimedAnswer(t *testing.T) {
	quotes := &stubQuotes{}
	a := newTestAssistant(t, quotes)

	result, err := a.Run(context.Background(), Payload{Query: "What is the stock price of IBM?"})
	require.NoError(t, err, "collaborator failures never fail the run")

	assert.Equal(t, AgentStockQuote, result.Route.AgentID)
	assert.Equal(t, "IBM", result.Route.Symbol)
	assert.Contains(t, result.Answer, "Stock quote failed for **IBM**")
	assert.Contains(t, result.Answer, Disclaimer)
	assert.Equal(t, []string{"IBM"}, quotes.calls)

	runs, err := a.GetRuns(context.Background(), result.Metadata.ConversationID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "IBM", runs[0].Symbol)
	assert.Equal(t, AgentStockQuote, runs[0].AgentID)
}

func TestRunQuoteSuccessRendersFields(t *testing.T) {
	quotes := &stubQuotes{quotes: map[string]market.Quote{
		"AAPL": {Symbol: "AAPL", Price: "230.10", Change: "1.20", ChangePercent: "0.52%"},
	}}
	a := newTestAssistant(t, quotes)

	result, err := a.Run(context.Background(), Payload{Query: "$AAPL price?"})
	require.NoError(t, err)
	assert.Contains(t, result.Answer, "**AAPL**")
	assert.Contains(t, result.Answer, "230.10")
	assert.Equal(t, "alpha_vantage", result.Market.Provider)
}

func TestRunRetrievalPathAnswersWithResources(t *testing.T) {
	a := newTestAssistant(t, nil)

	result, err := a.Run(context.Background(), Payload{Query: "Can you review my portfolio allocation?"})
	require.NoError(t, err)

	assert.Equal(t, AgentPortfolio, result.Route.AgentID)
	assert.Contains(t, result.Answer, "learning resources")
	assert.NotEmpty(t, result.Retrieval.Docs, "fallback retrieval is never empty")
}

func TestRunAssignsConversationIDWhenAbsent(t *testing.T) {
	a := newTestAssistant(t, nil)

	result, err := a.Run(context.Background(), Payload{Query: "explain diversification"})
	require.NoError(t, err)
	assert.Contains(t, result.Metadata.ConversationID, "conv-")
	assert.Len(t, result.Metadata.ConversationID, len("conv-")+8)
}

func TestRunHistoryGrowsWhileCheckpointOverwrites(t *testing.T) {
	a := newTestAssistant(t, nil)
	ctx := context.Background()

	first, err := a.Run(ctx, Payload{ConversationID: "conv-fixed", Query: "explain etfs"})
	require.NoError(t, err)
	second, err := a.Run(ctx, Payload{ConversationID: "conv-fixed", Query: "portfolio checkup"})
	require.NoError(t, err)

	runs, err := a.GetRuns(ctx, "conv-fixed")
	require.NoError(t, err)
	assert.Len(t, runs, 2, "history grows across runs")
	assert.Equal(t, first.Route.AgentID, runs[0].AgentID)
	assert.Equal(t, second.Route.AgentID, runs[1].AgentID)
	assert.True(t, !runs[1].At.Before(runs[0].At), "timestamps non-decreasing")

	latest, err := a.GetLatestResult(ctx, "conv-fixed")
	require.NoError(t, err)
	assert.Equal(t, second.Answer, latest.Answer, "checkpoint reflects only the second run")
}

func TestGetLatestResultUnknownConversation(t *testing.T) {
	a := newTestAssistant(t, nil)
	_, err := a.GetLatestResult(context.Background(), "conv-unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetRunsUnknownConversationIsEmpty(t *testing.T) {
	a := newTestAssistant(t, nil)
	runs, err := a.GetRuns(context.Background(), "conv-unknown")
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestListConversationsOrderedByRecency(t *testing.T) {
	clock := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	a := NewAssistant(
		&stubQuotes{},
		rag.NewStaticRetriever(nil),
		store.NewMemoryCheckpointStore(zap.NewNop()),
		store.NewMemoryRunStore(zap.NewNop()),
		zap.NewNop(),
		WithClock(func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		}),
	)
	ctx := context.Background()

	_, err := a.Run(ctx, Payload{ConversationID: "conv-old", Query: "explain bonds"})
	require.NoError(t, err)
	_, err = a.Run(ctx, Payload{ConversationID: "conv-new", Query: "explain stocks"})
	require.NoError(t, err)

	conversations, err := a.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, conversations, 2)
	assert.Equal(t, "conv-new", conversations[0].ConversationID)
	assert.Equal(t, "conv-old", conversations[1].ConversationID)
}

func TestRunTruncatesRecordedQuery(t *testing.T) {
	a := newTestAssistant(t, nil)
	long := make([]byte, 400)
	for i := range long {
		long[i] = 'p'
	}

	result, err := a.Run(context.Background(), Payload{Query: "portfolio " + string(long)})
	require.NoError(t, err)

	runs, err := a.GetRuns(context.Background(), result.Metadata.ConversationID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Len(t, runs[0].Query, 160)
}

func TestGetStateHistoryReturnsSnapshotsNewestFirst(t *testing.T) {
	a := newTestAssistant(t, nil)
	ctx := context.Background()

	_, err := a.Run(ctx, Payload{ConversationID: "conv-snap", Query: "what is an index fund"})
	require.NoError(t, err)
	_, err = a.Run(ctx, Payload{ConversationID: "conv-snap", Query: "how do bonds work"})
	require.NoError(t, err)

	history, err := a.GetStateHistory(ctx, "conv-snap", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "how do bonds work", history[0].RawPayload.Query)
	assert.Equal(t, "what is an index fund", history[1].RawPayload.Query)
}
