package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCheckpointStore keeps checkpoints in Redis. Each snapshot is stored
// under its own key and indexed per conversation in a sorted set scored by
// creation time, so LoadLatest is a single ZREVRANGE + GET.
type RedisCheckpointStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisCheckpointStore creates a Redis-backed checkpoint store. A zero
// ttl keeps snapshots until Redis evicts them.
func NewRedisCheckpointStore(client *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *RedisCheckpointStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix == "" {
		prefix = "convoflow"
	}
	return &RedisCheckpointStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger.With(zap.String("store", "redis_checkpoint")),
	}
}

// Save stores the snapshot and indexes it under the conversation.
func (s *RedisCheckpointStore) Save(ctx context.Context, cp *Checkpoint) error {
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	seq, err := s.client.Incr(ctx, s.seqKey(cp.ConversationID)).Result()
	if err != nil {
		return fmt.Errorf("failed to allocate checkpoint sequence: %w", err)
	}

	key := s.snapshotKey(cp.ConversationID, seq)
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store checkpoint: %w", err)
	}

	idx := s.indexKey(cp.ConversationID)
	if err := s.client.ZAdd(ctx, idx, redis.Z{Score: float64(seq), Member: key}).Err(); err != nil {
		return fmt.Errorf("failed to index checkpoint: %w", err)
	}
	if s.ttl > 0 {
		s.client.Expire(ctx, idx, s.ttl)
	}

	s.logger.Debug("checkpoint saved to redis",
		zap.String("conversation_id", cp.ConversationID),
		zap.Int64("seq", seq),
	)
	return nil
}

// LoadLatest returns the most recent snapshot for the conversation.
func (s *RedisCheckpointStore) LoadLatest(ctx context.Context, conversationID string) (*Checkpoint, error) {
	keys, err := s.client.ZRevRange(ctx, s.indexKey(conversationID), 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint index: %w", err)
	}
	if len(keys) == 0 {
		return nil, ErrNotFound
	}
	return s.load(ctx, keys[0])
}

// History returns up to limit snapshots, most recent first.
func (s *RedisCheckpointStore) History(ctx context.Context, conversationID string, limit int) ([]*Checkpoint, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	keys, err := s.client.ZRevRange(ctx, s.indexKey(conversationID), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint index: %w", err)
	}

	out := make([]*Checkpoint, 0, len(keys))
	for _, key := range keys {
		cp, err := s.load(ctx, key)
		if err != nil {
			s.logger.Warn("skipping unreadable checkpoint", zap.String("key", key), zap.Error(err))
			continue
		}
		out = append(out, cp)
	}
	return out, nil
}

func (s *RedisCheckpointStore) load(ctx context.Context, key string) (*Checkpoint, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

func (s *RedisCheckpointStore) snapshotKey(conversationID string, seq int64) string {
	return fmt.Sprintf("%s:checkpoint:%s:%d", s.prefix, conversationID, seq)
}

func (s *RedisCheckpointStore) indexKey(conversationID string) string {
	return fmt.Sprintf("%s:conversation:%s", s.prefix, conversationID)
}

func (s *RedisCheckpointStore) seqKey(conversationID string) string {
	return fmt.Sprintf("%s:seq:%s", s.prefix, conversationID)
}
