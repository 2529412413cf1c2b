package finance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/convoflow/convoflow/market"
	"github.com/convoflow/convoflow/pipeline"
	"github.com/convoflow/convoflow/rag"
	"github.com/convoflow/convoflow/store"
)

// ErrNotFound signals an unknown conversation on read operations.
var ErrNotFound = store.ErrNotFound

// Option configures an Assistant.
type Option func(*Assistant)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Assistant) { a.now = now }
}

// WithStageObserver forwards per-stage timing to a metrics sink.
func WithStageObserver(obs pipeline.StageObserver) Option {
	return func(a *Assistant) { a.stageObserver = obs }
}

// WithRunObserver is invoked once per completed run with the chosen agent.
func WithRunObserver(obs func(agentID string, elapsed time.Duration)) Option {
	return func(a *Assistant) { a.runObserver = obs }
}

// Assistant orchestrates the finance Q&A pipeline. One instance is built
// at the composition root and injected into whatever serves requests.
type Assistant struct {
	engine        *pipeline.Engine[State, Patch]
	router        *Router
	quotes        market.QuoteProvider
	retriever     rag.Retriever
	checkpoints   store.CheckpointStore
	runs          store.RunStore
	logger        *zap.Logger
	now           func() time.Time
	stageObserver pipeline.StageObserver
	runObserver   func(agentID string, elapsed time.Duration)
}

// NewAssistant wires the fixed stage order: intake, route, execute,
// finalize.
func NewAssistant(quotes market.QuoteProvider, retriever rag.Retriever, checkpoints store.CheckpointStore, runs store.RunStore, logger *zap.Logger, opts ...Option) *Assistant {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Assistant{
		router:      NewRouter(),
		quotes:      quotes,
		retriever:   retriever,
		checkpoints: checkpoints,
		runs:        runs,
		logger:      logger.With(zap.String("pipeline", "finance")),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	stages := []pipeline.Stage[State, Patch]{
		{Name: "intake", Fn: a.stageIntake},
		{Name: "route", Fn: a.stageRoute},
		{Name: "execute", Fn: a.stageExecute},
		{Name: "finalize", Fn: a.stageFinalize},
	}
	var engineOpts []pipeline.EngineOption[State, Patch]
	if a.stageObserver != nil {
		engineOpts = append(engineOpts, pipeline.WithStageObserver[State, Patch](a.stageObserver))
	}
	a.engine = pipeline.NewEngine("finance", mergeState, logger, stages, engineOpts...)
	return a
}

// Run executes all stages in order, persists the final state as the
// conversation's checkpoint, appends exactly one run record, and returns
// the result.
func (a *Assistant) Run(ctx context.Context, payload Payload) (Result, error) {
	start := a.now()

	payload.ConversationID = strings.TrimSpace(payload.ConversationID)
	if payload.ConversationID == "" {
		payload.ConversationID = pipeline.NewConversationID()
	}
	payload.Query = strings.TrimSpace(payload.Query)

	final, err := a.engine.Execute(ctx, State{RawPayload: payload})
	if err != nil {
		return Result{}, err
	}

	snapshot, err := json.Marshal(final)
	if err != nil {
		return Result{}, fmt.Errorf("failed to snapshot state: %w", err)
	}
	if err := a.checkpoints.Save(ctx, &store.Checkpoint{
		ConversationID: final.Metadata.ConversationID,
		State:          snapshot,
		CreatedAt:      a.now().UTC(),
	}); err != nil {
		return Result{}, fmt.Errorf("failed to save checkpoint: %w", err)
	}
	for _, rec := range final.Runs {
		if err := a.runs.Append(ctx, rec); err != nil {
			return Result{}, fmt.Errorf("failed to append run record: %w", err)
		}
	}

	if a.runObserver != nil {
		a.runObserver(final.Route.AgentID, time.Since(start))
	}
	a.logger.Info("run completed",
		zap.String("conversation_id", final.Metadata.ConversationID),
		zap.String("agent_id", final.Route.AgentID),
	)
	return final.Result, nil
}

// GetRuns returns the conversation's run history in insertion order; an
// unknown identifier yields an empty slice, not an error.
func (a *Assistant) GetRuns(ctx context.Context, conversationID string) ([]pipeline.RunRecord, error) {
	return a.runs.List(ctx, conversationID)
}

// GetLatestResult returns the most recently checkpointed result, or
// ErrNotFound when the conversation has no checkpoint.
func (a *Assistant) GetLatestResult(ctx context.Context, conversationID string) (Result, error) {
	cp, err := a.checkpoints.LoadLatest(ctx, conversationID)
	if err != nil {
		return Result{}, err
	}
	var state State
	if err := json.Unmarshal(cp.State, &state); err != nil {
		return Result{}, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	return state.Result, nil
}

// ListConversations returns the most recent run record per conversation,
// newest first. Derived from the run store, not separately maintained.
func (a *Assistant) ListConversations(ctx context.Context) ([]pipeline.RunRecord, error) {
	return a.runs.LatestPerConversation(ctx)
}

// GetStateHistory returns checkpoint snapshots for the conversation, most
// recent first.
func (a *Assistant) GetStateHistory(ctx context.Context, conversationID string, limit int) ([]State, error) {
	checkpoints, err := a.checkpoints.History(ctx, conversationID, limit)
	if err != nil {
		return nil, err
	}
	states := make([]State, 0, len(checkpoints))
	for _, cp := range checkpoints {
		var state State
		if err := json.Unmarshal(cp.State, &state); err != nil {
			a.logger.Warn("skipping undecodable checkpoint",
				zap.String("conversation_id", conversationID), zap.Error(err))
			continue
		}
		states = append(states, state)
	}
	return states, nil
}

// -------------------------
// Stages
// -------------------------

// stageIntake normalizes the payload, assigns a conversation id when the
// caller did not supply one, and initializes every downstream field so
// later stages never see missing defaults.
func (a *Assistant) stageIntake(ctx context.Context, s State) (Patch, error) {
	conversationID := strings.TrimSpace(s.RawPayload.ConversationID)
	if conversationID == "" {
		conversationID = pipeline.NewConversationID()
	}

	normalized := Payload{
		ConversationID: conversationID,
		Query:          strings.TrimSpace(s.RawPayload.Query),
	}
	meta := Metadata{
		ConversationID: conversationID,
		AskedAt:        a.now().UTC(),
	}
	return Patch{
		RawPayload: &normalized,
		Metadata:   &meta,
		Route:      &Decision{},
		Retrieval:  &Retrieval{Docs: []rag.Document{}},
		Market:     &MarketData{},
		Result:     &Result{},
	}, nil
}

func (a *Assistant) stageRoute(ctx context.Context, s State) (Patch, error) {
	decision := a.router.Route(s.RawPayload.Query)
	a.logger.Debug("routed",
		zap.String("agent_id", decision.AgentID),
		zap.String("symbol", decision.Symbol),
	)
	return Patch{Route: &decision}, nil
}

// stageExecute runs the variant the route stage chose. Collaborator
// failures are soft: the answer always renders something.
func (a *Assistant) stageExecute(ctx context.Context, s State) (Patch, error) {
	if s.Route.AgentID == AgentStockQuote {
		quote := a.quotes.GlobalQuote(ctx, s.Route.Symbol)
		answer := FormatQuote(quote)
		return Patch{
			Market:    &MarketData{Provider: "alpha_vantage", Symbol: s.Route.Symbol, Quote: quote},
			Retrieval: &Retrieval{Docs: []rag.Document{}},
			Answer:    &answer,
		}, nil
	}

	docs := a.retriever.Retrieve(ctx, s.RawPayload.Query)
	var b strings.Builder
	b.WriteString("Here are learning resources related to your question:")
	for _, doc := range docs {
		fmt.Fprintf(&b, "\n- %s: %s (%s)", doc.Title, doc.Snippet(), doc.URL)
	}
	answer := AttachDisclaimer(b.String())
	return Patch{
		Retrieval: &Retrieval{Docs: docs},
		Market:    &MarketData{},
		Answer:    &answer,
	}, nil
}

// stageFinalize assembles the read-only result projection and emits the
// run's single history record.
func (a *Assistant) stageFinalize(ctx context.Context, s State) (Patch, error) {
	result := Result{
		Metadata:  s.Metadata,
		Request:   Request{Query: s.RawPayload.Query},
		Route:     s.Route,
		Retrieval: s.Retrieval,
		Market:    s.Market,
		Answer:    s.Answer,
	}
	record := pipeline.RunRecord{
		At:             a.now().UTC(),
		ConversationID: s.Metadata.ConversationID,
		AgentID:        s.Route.AgentID,
		AgentName:      s.Route.AgentName,
		Query:          pipeline.TruncateQuery(s.RawPayload.Query),
		Symbol:         s.Route.Symbol,
	}
	return Patch{
		Result: &result,
		Runs:   []pipeline.RunRecord{record},
	}, nil
}

// FormatQuote renders a quote, or its soft error, as a disclaimer-wrapped
// answer.
func FormatQuote(q market.Quote) string {
	if q.Failed() {
		return AttachDisclaimer(fmt.Sprintf("Stock quote failed for **%s**: %s", q.Symbol, q.Err))
	}
	lines := []string{
		fmt.Sprintf("**%s** (Alpha Vantage GLOBAL_QUOTE)", q.Symbol),
		fmt.Sprintf("- Price: `%s`", q.Price),
		fmt.Sprintf("- Change: `%s` (%s)", q.Change, q.ChangePercent),
		fmt.Sprintf("- Latest trading day: `%s`", q.LatestTradingDay),
		fmt.Sprintf("- Previous close: `%s`", q.PreviousClose),
		fmt.Sprintf("- Volume: `%s`", q.Volume),
	}
	return AttachDisclaimer(strings.Join(lines, "\n"))
}
