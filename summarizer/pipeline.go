package summarizer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/convoflow/convoflow/llm"
	"github.com/convoflow/convoflow/pipeline"
	"github.com/convoflow/convoflow/store"
)

// AgentID identifies this pipeline in run records.
const AgentID = "call_summarizer"

// ErrNotFound signals an unknown conversation on read operations.
var ErrNotFound = store.ErrNotFound

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTranscriber installs a real speech-to-text engine. Without one,
// audio inputs get the labeled placeholder transcript.
func WithTranscriber(t Transcriber) Option {
	return func(p *Pipeline) { p.transcriber = t }
}

// WithCompleter installs the LLM used for summarization.
func WithCompleter(c llm.Completer) Option {
	return func(p *Pipeline) { p.completer = c }
}

// WithScorer installs the tool-calling LLM used for quality scoring.
func WithScorer(s llm.ToolCompleter) Option {
	return func(p *Pipeline) { p.scorer = s }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithStageObserver forwards per-stage timing to a metrics sink.
func WithStageObserver(obs pipeline.StageObserver) Option {
	return func(p *Pipeline) { p.stageObserver = obs }
}

// WithFallbackObserver is invoked whenever a collaborator failure was
// absorbed by a local fallback.
func WithFallbackObserver(obs func(collaborator string)) Option {
	return func(p *Pipeline) { p.onFallback = obs }
}

// Pipeline orchestrates the call-summarization stages. One instance is
// built at the composition root and injected into whatever serves
// requests.
type Pipeline struct {
	engine        *pipeline.Engine[State, Patch]
	transcriber   Transcriber
	completer     llm.Completer
	scorer        llm.ToolCompleter
	checkpoints   store.CheckpointStore
	runs          store.RunStore
	logger        *zap.Logger
	now           func() time.Time
	stageObserver pipeline.StageObserver
	onFallback    func(collaborator string)
}

// NewPipeline wires the fixed stage order: intake, transcribe, summarize,
// quality, finalize.
func NewPipeline(checkpoints store.CheckpointStore, runs store.RunStore, logger *zap.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		checkpoints: checkpoints,
		runs:        runs,
		logger:      logger.With(zap.String("pipeline", "calls")),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	stages := []pipeline.Stage[State, Patch]{
		{Name: "intake", Fn: p.stageIntake},
		{Name: "transcribe", Fn: p.stageTranscribe},
		{Name: "summarize", Fn: p.stageSummarize},
		{Name: "quality", Fn: p.stageQuality},
		{Name: "finalize", Fn: p.stageFinalize},
	}
	var engineOpts []pipeline.EngineOption[State, Patch]
	if p.stageObserver != nil {
		engineOpts = append(engineOpts, pipeline.WithStageObserver[State, Patch](p.stageObserver))
	}
	p.engine = pipeline.NewEngine("calls", mergeState, logger, stages, engineOpts...)
	return p
}

// Run validates the payload, executes all stages in order, persists the
// final state as the conversation's checkpoint, appends exactly one run
// record, and returns the result. Validation is the only failure that
// propagates; nothing is persisted for an invalid request.
func (p *Pipeline) Run(ctx context.Context, payload Payload) (Result, error) {
	if err := payload.Validate(); err != nil {
		return Result{}, err
	}

	payload.ConversationID = strings.TrimSpace(payload.ConversationID)
	if payload.ConversationID == "" {
		payload.ConversationID = pipeline.NewConversationID()
	}

	final, err := p.engine.Execute(ctx, State{RawPayload: payload})
	if err != nil {
		return Result{}, err
	}

	snapshot, err := json.Marshal(final)
	if err != nil {
		return Result{}, fmt.Errorf("failed to snapshot state: %w", err)
	}
	if err := p.checkpoints.Save(ctx, &store.Checkpoint{
		ConversationID: final.Metadata.ConversationID,
		State:          snapshot,
		CreatedAt:      p.now().UTC(),
	}); err != nil {
		return Result{}, fmt.Errorf("failed to save checkpoint: %w", err)
	}
	for _, rec := range final.Runs {
		if err := p.runs.Append(ctx, rec); err != nil {
			return Result{}, fmt.Errorf("failed to append run record: %w", err)
		}
	}

	p.logger.Info("run completed",
		zap.String("conversation_id", final.Metadata.ConversationID),
		zap.Int("overall", final.Quality.Overall),
	)
	return final.Result, nil
}

// GetRuns returns the conversation's run history in insertion order; an
// unknown identifier yields an empty slice, not an error.
func (p *Pipeline) GetRuns(ctx context.Context, conversationID string) ([]pipeline.RunRecord, error) {
	return p.runs.List(ctx, conversationID)
}

// GetLatestResult returns the most recently checkpointed result, or
// ErrNotFound when the conversation has no checkpoint.
func (p *Pipeline) GetLatestResult(ctx context.Context, conversationID string) (Result, error) {
	cp, err := p.checkpoints.LoadLatest(ctx, conversationID)
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
// newest first.
func (p *Pipeline) ListConversations(ctx context.Context) ([]pipeline.RunRecord, error) {
	return p.runs.LatestPerConversation(ctx)
}

// GetStateHistory returns checkpoint snapshots for the conversation, most
// recent first.
func (p *Pipeline) GetStateHistory(ctx context.Context, conversationID string, limit int) ([]State, error) {
	checkpoints, err := p.checkpoints.History(ctx, conversationID, limit)
	if err != nil {
		return nil, err
	}
	states := make([]State, 0, len(checkpoints))
	for _, cp := range checkpoints {
		var state State
		if err := json.Unmarshal(cp.State, &state); err != nil {
			p.logger.Warn("skipping undecodable checkpoint",
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

// stageIntake normalizes the payload and initializes every downstream
// field so later stages never see missing defaults.
func (p *Pipeline) stageIntake(ctx context.Context, s State) (Patch, error) {
	normalized := s.RawPayload
	normalized.ConversationID = strings.TrimSpace(normalized.ConversationID)
	if normalized.ConversationID == "" {
		normalized.ConversationID = pipeline.NewConversationID()
	}
	if normalized.Channel == "" {
		normalized.Channel = "voice"
	}

	meta := Metadata{
		ConversationID: normalized.ConversationID,
		AgentName:      normalized.AgentName,
		CustomerName:   normalized.CustomerName,
		Channel:        normalized.Channel,
		IngestedAt:     p.now().UTC(),
		HasAudio:       normalized.AudioPath != "",
		HasTranscript:  normalized.Transcript != "",
	}
	return Patch{
		Intake:     &normalized,
		Metadata:   &meta,
		Transcript: &Transcript{ConversationID: normalized.ConversationID},
		Summary:    &Summary{ConversationID: normalized.ConversationID},
		Quality:    &Quality{ConversationID: normalized.ConversationID},
		Result:     &Result{},
	}, nil
}

// stageTranscribe prefers a supplied transcript; audio goes through the
// configured transcriber, falling back to the labeled placeholder on any
// failure. The stage never fails the run.
func (p *Pipeline) stageTranscribe(ctx context.Context, s State) (Patch, error) {
	intake := s.Intake

	if intake.Transcript != "" {
		t := Transcript{
			ConversationID: intake.ConversationID,
			Text:           NormalizeTranscript(intake.Transcript),
			AudioPath:      intake.AudioPath,
		}
		return Patch{Transcript: &t}, nil
	}

	var text string
	placeholder := false
	if p.transcriber != nil {
		got, err := p.transcriber.Transcribe(ctx, intake.AudioPath)
		if err != nil {
			p.logger.Warn("transcription failed, using placeholder",
				zap.String("audio_path", intake.AudioPath), zap.Error(err))
			p.fallback("transcription")
			text, placeholder = placeholderTranscript(intake.AudioPath), true
		} else {
			text = got
		}
	} else {
		text, placeholder = pseudoTranscribe(intake.AudioPath)
		if placeholder {
			p.fallback("transcription")
		}
	}

	t := Transcript{
		ConversationID: intake.ConversationID,
		Text:           NormalizeTranscript(text),
		AudioPath:      intake.AudioPath,
		Placeholder:    placeholder,
	}
	return Patch{Transcript: &t}, nil
}

func (p *Pipeline) stageSummarize(ctx context.Context, s State) (Patch, error) {
	summary := summarize(ctx, p.completer, s.Transcript, p.logger, func() { p.fallback("summarization") })
	return Patch{Summary: &summary}, nil
}

func (p *Pipeline) stageQuality(ctx context.Context, s State) (Patch, error) {
	quality := scoreQuality(ctx, p.scorer, s.Transcript, s.Summary, p.logger, func() { p.fallback("quality") })
	return Patch{Quality: &quality}, nil
}

// stageFinalize assembles the read-only result projection and emits the
// run's single history record.
func (p *Pipeline) stageFinalize(ctx context.Context, s State) (Patch, error) {
	result := Result{
		Metadata:   s.Metadata,
		Transcript: s.Transcript,
		Summary:    s.Summary,
		Quality:    s.Quality,
	}
	record := pipeline.RunRecord{
		At:             p.now().UTC(),
		ConversationID: s.Metadata.ConversationID,
		AgentID:        AgentID,
		AgentName:      s.Metadata.AgentName,
		CustomerName:   s.Metadata.CustomerName,
		Channel:        s.Metadata.Channel,
		Query:          pipeline.TruncateQuery(s.Transcript.Text),
		Summary:        s.Summary.Summary,
		Overall:        s.Quality.Overall,
	}
	return Patch{
		Result: &result,
		Runs:   []pipeline.RunRecord{record},
	}, nil
}

func (p *Pipeline) fallback(collaborator string) {
	if p.onFallback != nil {
		p.onFallback(collaborator)
	}
}
