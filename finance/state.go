package finance

import (
	"time"

	"github.com/convoflow/convoflow/market"
	"github.com/convoflow/convoflow/pipeline"
	"github.com/convoflow/convoflow/rag"
)

// Payload is the caller-supplied input. ConversationID is optional; the
// intake stage assigns one when absent.
type Payload struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Query          string `json:"query"`
}

// Metadata identifies the run.
type Metadata struct {
	ConversationID string    `json:"conversation_id"`
	AskedAt        time.Time `json:"asked_at"`
}

// Retrieval holds the documents the execute stage retrieved (empty for the
// stock-quote path, never nil after intake).
type Retrieval struct {
	Docs []rag.Document `json:"docs"`
}

// MarketData holds the quote payload for the stock-quote path.
type MarketData struct {
	Provider string       `json:"provider,omitempty"`
	Symbol   string       `json:"symbol,omitempty"`
	Quote    market.Quote `json:"quote,omitempty"`
}

// Request echoes what was asked.
type Request struct {
	Query string `json:"query"`
}

// Result is the finalized, externally visible payload: a read-only
// projection of the accumulated state assembled by the finalize stage.
type Result struct {
	Metadata  Metadata   `json:"metadata"`
	Request   Request    `json:"request"`
	Route     Decision   `json:"route"`
	Retrieval Retrieval  `json:"retrieval"`
	Market    MarketData `json:"market"`
	Answer    string     `json:"answer"`
}

// State is the conversation state threaded through the pipeline. All
// fields follow last-write-wins merge semantics except Runs, which is
// append-only: each completed run contributes exactly one record, emitted
// by the finalize stage, concatenated onto prior entries.
type State struct {
	RawPayload Payload              `json:"raw_payload"` // read-only after intake
	Metadata   Metadata             `json:"metadata"`
	Route      Decision             `json:"route"`
	Retrieval  Retrieval            `json:"retrieval"`
	Market     MarketData           `json:"market"`
	Answer     string               `json:"answer"`
	Result     Result               `json:"result"`
	Runs       []pipeline.RunRecord `json:"runs"` // append-only
}

// Patch is a stage's partial-state contribution. Nil pointer fields are
// no-ops; Runs entries are appended, never substituted.
type Patch struct {
	RawPayload *Payload
	Metadata   *Metadata
	Route      *Decision
	Retrieval  *Retrieval
	Market     *MarketData
	Answer     *string
	Result     *Result
	Runs       []pipeline.RunRecord
}

// mergeState applies a patch onto the accumulated state. Pure transform:
// overwrite for present fields, concatenate for Runs.
func mergeState(s State, p Patch) State {
	if p.RawPayload != nil {
		s.RawPayload = pipeline.LastValue[Payload]()(s.RawPayload, *p.RawPayload)
	}
	if p.Metadata != nil {
		s.Metadata = pipeline.LastValue[Metadata]()(s.Metadata, *p.Metadata)
	}
	if p.Route != nil {
		s.Route = pipeline.LastValue[Decision]()(s.Route, *p.Route)
	}
	if p.Retrieval != nil {
		s.Retrieval = pipeline.LastValue[Retrieval]()(s.Retrieval, *p.Retrieval)
	}
	if p.Market != nil {
		s.Market = pipeline.LastValue[MarketData]()(s.Market, *p.Market)
	}
	if p.Answer != nil {
		s.Answer = pipeline.LastValue[string]()(s.Answer, *p.Answer)
	}
	if p.Result != nil {
		s.Result = pipeline.LastValue[Result]()(s.Result, *p.Result)
	}
	s.Runs = pipeline.Append[pipeline.RunRecord]()(s.Runs, p.Runs)
	return s
}
