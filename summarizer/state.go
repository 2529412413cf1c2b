package summarizer

import (
	"github.com/convoflow/convoflow/pipeline"
)

// Result is the finalized, externally visible payload assembled by the
// finalize stage.
type Result struct {
	Metadata   Metadata   `json:"metadata"`
	Transcript Transcript `json:"transcript"`
	Summary    Summary    `json:"summary"`
	Quality    Quality    `json:"quality"`
}

// State is the conversation state threaded through the call pipeline.
// Every field follows last-write-wins merge semantics except Runs, which
// is append-only and receives exactly one record per run from finalize.
type State struct {
	RawPayload Payload              `json:"raw_payload"` // read-only after intake
	Intake     Payload              `json:"intake"`      // normalized payload
	Metadata   Metadata             `json:"metadata"`
	Transcript Transcript           `json:"transcript"`
	Summary    Summary              `json:"summary"`
	Quality    Quality              `json:"quality"`
	Result     Result               `json:"result"`
	Runs       []pipeline.RunRecord `json:"runs"` // append-only
}

// Patch is a stage's partial-state contribution; nil fields are no-ops.
type Patch struct {
	Intake     *Payload
	Metadata   *Metadata
	Transcript *Transcript
	Summary    *Summary
	Quality    *Quality
	Result     *Result
	Runs       []pipeline.RunRecord
}

func mergeState(s State, p Patch) State {
	if p.Intake != nil {
		s.Intake = pipeline.LastValue[Payload]()(s.Intake, *p.Intake)
	}
	if p.Metadata != nil {
		s.Metadata = pipeline.LastValue[Metadata]()(s.Metadata, *p.Metadata)
	}
	if p.Transcript != nil {
		s.Transcript = pipeline.LastValue[Transcript]()(s.Transcript, *p.Transcript)
	}
	if p.Summary != nil {
		s.Summary = pipeline.LastValue[Summary]()(s.Summary, *p.Summary)
	}
	if p.Quality != nil {
		s.Quality = pipeline.LastValue[Quality]()(s.Quality, *p.Quality)
	}
	if p.Result != nil {
		s.Result = pipeline.LastValue[Result]()(s.Result, *p.Result)
	}
	s.Runs = pipeline.Append[pipeline.RunRecord]()(s.Runs, p.Runs)
	return s
}
