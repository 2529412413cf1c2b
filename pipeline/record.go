package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// maxRecordedQuery bounds the query text kept on a run record.
const maxRecordedQuery = 160

// RunRecord is an immutable summary of one completed run. Records are
// appended to a conversation's history and never rewritten; fields that do
// not apply to a given pipeline stay at their zero value.
type RunRecord struct {
	At             time.Time `json:"at"`
	ConversationID string    `json:"conversation_id"`
	AgentID        string    `json:"agent_id"`
	AgentName      string    `json:"agent_name,omitempty"`
	CustomerName   string    `json:"customer_name,omitempty"`
	Channel        string    `json:"channel,omitempty"`
	Query          string    `json:"query,omitempty"`
	Symbol         string    `json:"symbol,omitempty"`
	Summary        string    `json:"summary,omitempty"`
	Overall        int       `json:"overall,omitempty"`
}

// NewConversationID returns a fresh opaque conversation identifier.
// The format is URL- and log-safe and collision-resistant.
func NewConversationID() string {
	return fmt.Sprintf("conv-%s", uuid.NewString()[:8])
}

// TruncateQuery bounds free-text input before it is recorded.
func TruncateQuery(q string) string {
	if len(q) <= maxRecordedQuery {
		return q
	}
	return q[:maxRecordedQuery]
}
