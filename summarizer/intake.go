package summarizer

import (
	"errors"
	"time"
)

// ErrInvalidInput rejects payloads carrying neither audio nor transcript.
// It is returned before any stage executes; nothing is persisted.
var ErrInvalidInput = errors.New("summarizer: either an audio path or a transcript must be supplied")

// Payload is the caller-supplied call description.
type Payload struct {
	ConversationID string `json:"conversation_id,omitempty"`
	AgentName      string `json:"agent_name"`
	CustomerName   string `json:"customer_name"`
	AudioPath      string `json:"audio_path,omitempty"`
	Transcript     string `json:"transcript,omitempty"`
	Channel        string `json:"channel,omitempty"`
}

// Validate enforces the one hard input requirement.
func (p Payload) Validate() error {
	if p.AudioPath == "" && p.Transcript == "" {
		return ErrInvalidInput
	}
	return nil
}

// Metadata is the normalized intake view used for logging and the result.
type Metadata struct {
	ConversationID string    `json:"conversation_id"`
	AgentName      string    `json:"agent_name"`
	CustomerName   string    `json:"customer_name"`
	Channel        string    `json:"channel"`
	IngestedAt     time.Time `json:"ingested_at"`
	HasAudio       bool      `json:"has_audio"`
	HasTranscript  bool      `json:"has_transcript"`
}
