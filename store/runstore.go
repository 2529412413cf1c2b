package store

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/convoflow/convoflow/pipeline"
)

// RunStore keeps the append-only run history per conversation.
type RunStore interface {
	// Append adds exactly one record to the conversation's history.
	Append(ctx context.Context, rec pipeline.RunRecord) error

	// List returns the history for a conversation in insertion order.
	// Unknown conversations yield an empty slice, not an error.
	List(ctx context.Context, conversationID string) ([]pipeline.RunRecord, error)

	// LatestPerConversation returns the most recent record of every known
	// conversation, ordered by recency descending. This is a derived
	// dashboard view, not separately maintained state.
	LatestPerConversation(ctx context.Context) ([]pipeline.RunRecord, error)
}

// MemoryRunStore is the in-process default.
type MemoryRunStore struct {
	mu     sync.RWMutex
	byConv map[string][]pipeline.RunRecord
	logger *zap.Logger
}

// NewMemoryRunStore creates an in-memory run store.
func NewMemoryRunStore(logger *zap.Logger) *MemoryRunStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryRunStore{
		byConv: make(map[string][]pipeline.RunRecord),
		logger: logger.With(zap.String("store", "memory_runs")),
	}
}

// Append adds the record to the conversation's history.
func (s *MemoryRunStore) Append(ctx context.Context, rec pipeline.RunRecord) error {
	s.mu.Lock()
	s.byConv[rec.ConversationID] = append(s.byConv[rec.ConversationID], rec)
	s.mu.Unlock()

	s.logger.Debug("run record appended",
		zap.String("conversation_id", rec.ConversationID),
		zap.String("agent_id", rec.AgentID),
	)
	return nil
}

// List returns the conversation's history in insertion order.
func (s *MemoryRunStore) List(ctx context.Context, conversationID string) ([]pipeline.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.byConv[conversationID]
	out := make([]pipeline.RunRecord, len(records))
	copy(out, records)
	return out, nil
}

// LatestPerConversation returns the newest record per conversation,
// most recent first.
func (s *MemoryRunStore) LatestPerConversation(ctx context.Context) ([]pipeline.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]pipeline.RunRecord, 0, len(s.byConv))
	for _, records := range s.byConv {
		if len(records) > 0 {
			out = append(out, records[len(records)-1])
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].At.After(out[j].At)
	})
	return out, nil
}
