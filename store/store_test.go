package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/convoflow/convoflow/pipeline"
)

// checkpointContract exercises the overwrite-latest / history-append
// semantics every CheckpointStore must provide.
func checkpointContract(t *testing.T, s CheckpointStore) {
	ctx := context.Background()

	_, err := s.LoadLatest(ctx, "conv-missing")
	assert.ErrorIs(t, err, ErrNotFound)

	first := &Checkpoint{
		ConversationID: "conv-1",
		State:          []byte(`{"answer":"first"}`),
		CreatedAt:      time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.Save(ctx, first))

	second := &Checkpoint{
		ConversationID: "conv-1",
		State:          []byte(`{"answer":"second"}`),
		CreatedAt:      time.Date(2026, 8, 30, 10, 1, 0, 0, time.UTC),
	}
	require.NoError(t, s.Save(ctx, second))

	latest, err := s.LoadLatest(ctx, "conv-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"answer":"second"}`, string(latest.State))

	history, err := s.History(ctx, "conv-1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.JSONEq(t, `{"answer":"second"}`, string(history[0].State))
	assert.JSONEq(t, `{"answer":"first"}`, string(history[1].State))

	limited, err := s.History(ctx, "conv-1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

// runStoreContract exercises the append-only history semantics.
func runStoreContract(t *testing.T, s RunStore) {
	ctx := context.Background()

	empty, err := s.List(ctx, "conv-missing")
	require.NoError(t, err)
	assert.Empty(t, empty, "unknown conversation is empty, not an error")

	base := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	records := []pipeline.RunRecord{
		{At: base, ConversationID: "conv-a", AgentID: "finance_qa", Query: "what is an etf"},
		{At: base.Add(time.Minute), ConversationID: "conv-a", AgentID: "stock_quote", Symbol: "IBM"},
		{At: base.Add(2 * time.Minute), ConversationID: "conv-b", AgentID: "tax", Query: "ira limits"},
	}
	for _, rec := range records {
		require.NoError(t, s.Append(ctx, rec))
	}

	listA, err := s.List(ctx, "conv-a")
	require.NoError(t, err)
	require.Len(t, listA, 2)
	assert.Equal(t, "finance_qa", listA[0].AgentID)
	assert.Equal(t, "stock_quote", listA[1].AgentID)
	assert.Equal(t, "IBM", listA[1].Symbol)

	latest, err := s.LatestPerConversation(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "conv-b", latest[0].ConversationID, "newest conversation first")
	assert.Equal(t, "conv-a", latest[1].ConversationID)
	assert.Equal(t, "stock_quote", latest[1].AgentID, "latest record for the conversation")
}

func TestMemoryCheckpointStore(t *testing.T) {
	checkpointContract(t, NewMemoryCheckpointStore(zap.NewNop()))
}

func TestMemoryRunStore(t *testing.T) {
	runStoreContract(t, NewMemoryRunStore(zap.NewNop()))
}

func TestRedisCheckpointStore(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	checkpointContract(t, NewRedisCheckpointStore(client, "test", 0, zap.NewNop()))
}

func TestGormRunStore(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	s, err := NewGormRunStore(db, zap.NewNop())
	require.NoError(t, err)

	runStoreContract(t, s)
}
