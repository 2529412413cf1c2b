package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrNotFound reports that a conversation has no stored data. Read
// operations translate it into an explicit absence signal rather than a
// failure.
var ErrNotFound = errors.New("store: not found")

// Checkpoint is a full pipeline-state snapshot for one conversation. The
// state is kept as raw JSON so the store stays agnostic of which pipeline
// produced it.
type Checkpoint struct {
	ConversationID string    `json:"conversation_id"`
	State          []byte    `json:"state"`
	CreatedAt      time.Time `json:"created_at"`
}

// CheckpointStore persists the latest state per conversation. Save
// overwrites the latest slot and appends to the conversation's snapshot
// history; LoadLatest returns the most recent snapshot.
type CheckpointStore interface {
	Save(ctx context.Context, cp *Checkpoint) error
	LoadLatest(ctx context.Context, conversationID string) (*Checkpoint, error)
	History(ctx context.Context, conversationID string, limit int) ([]*Checkpoint, error)
}

// MemoryCheckpointStore is the in-process default, living for the process
// lifetime only.
type MemoryCheckpointStore struct {
	mu       sync.RWMutex
	byConv   map[string][]*Checkpoint
	logger   *zap.Logger
	maxPerID int
}

// NewMemoryCheckpointStore creates an in-memory checkpoint store.
func NewMemoryCheckpointStore(logger *zap.Logger) *MemoryCheckpointStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryCheckpointStore{
		byConv: make(map[string][]*Checkpoint),
		logger: logger.With(zap.String("store", "memory_checkpoint")),
	}
}

// Save appends the snapshot to the conversation's history; the newest
// entry is the checkpoint.
func (s *MemoryCheckpointStore) Save(ctx context.Context, cp *Checkpoint) error {
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}

	state := make([]byte, len(cp.State))
	copy(state, cp.State)
	stored := &Checkpoint{
		ConversationID: cp.ConversationID,
		State:          state,
		CreatedAt:      cp.CreatedAt,
	}

	s.mu.Lock()
	s.byConv[cp.ConversationID] = append(s.byConv[cp.ConversationID], stored)
	s.mu.Unlock()

	s.logger.Debug("checkpoint saved",
		zap.String("conversation_id", cp.ConversationID),
		zap.Int("state_bytes", len(cp.State)),
	)
	return nil
}

// LoadLatest returns the most recent snapshot for the conversation.
func (s *MemoryCheckpointStore) LoadLatest(ctx context.Context, conversationID string) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshots := s.byConv[conversationID]
	if len(snapshots) == 0 {
		return nil, ErrNotFound
	}
	return snapshots[len(snapshots)-1], nil
}

// History returns up to limit snapshots, most recent first.
func (s *MemoryCheckpointStore) History(ctx context.Context, conversationID string, limit int) ([]*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshots := s.byConv[conversationID]
	if len(snapshots) == 0 {
		return nil, nil
	}

	if limit <= 0 || limit > len(snapshots) {
		limit = len(snapshots)
	}
	out := make([]*Checkpoint, 0, limit)
	for i := len(snapshots) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, snapshots[i])
	}
	return out, nil
}
