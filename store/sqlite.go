package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/convoflow/convoflow/pipeline"
)

// runRow is the gorm model for a persisted run record.
type runRow struct {
	ID             uint      `gorm:"primaryKey"`
	ConversationID string    `gorm:"index;size:64"`
	At             time.Time `gorm:"index"`
	AgentID        string    `gorm:"size:64"`
	AgentName      string    `gorm:"size:128"`
	CustomerName   string    `gorm:"size:128"`
	Channel        string    `gorm:"size:32"`
	Query          string    `gorm:"size:256"`
	Symbol         string    `gorm:"size:16"`
	Summary        string
	Overall        int
}

func (runRow) TableName() string { return "run_records" }

// GormRunStore persists run history through gorm, so a single SQLite file
// (or any gorm dialect) can outlive the process. Insertion order is the
// auto-increment primary key; records are never updated or deleted.
type GormRunStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormRunStore migrates the run_records table and returns the store.
func NewGormRunStore(db *gorm.DB, logger *zap.Logger) (*GormRunStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := db.AutoMigrate(&runRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate run_records: %w", err)
	}
	return &GormRunStore{
		db:     db,
		logger: logger.With(zap.String("store", "gorm_runs")),
	}, nil
}

// Append inserts one record.
func (s *GormRunStore) Append(ctx context.Context, rec pipeline.RunRecord) error {
	row := runRow{
		ConversationID: rec.ConversationID,
		At:             rec.At,
		AgentID:        rec.AgentID,
		AgentName:      rec.AgentName,
		CustomerName:   rec.CustomerName,
		Channel:        rec.Channel,
		Query:          rec.Query,
		Symbol:         rec.Symbol,
		Summary:        rec.Summary,
		Overall:        rec.Overall,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to append run record: %w", err)
	}
	return nil
}

// List returns the conversation's history in insertion order.
func (s *GormRunStore) List(ctx context.Context, conversationID string) ([]pipeline.RunRecord, error) {
	var rows []runRow
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("id asc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list run records: %w", err)
	}

	out := make([]pipeline.RunRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toRecord())
	}
	return out, nil
}

// LatestPerConversation returns the newest record per conversation,
// most recent first.
func (s *GormRunStore) LatestPerConversation(ctx context.Context) ([]pipeline.RunRecord, error) {
	var rows []runRow
	err := s.db.WithContext(ctx).
		Where("id IN (?)", s.db.Model(&runRow{}).Select("MAX(id)").Group("conversation_id")).
		Order("at desc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	out := make([]pipeline.RunRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toRecord())
	}
	return out, nil
}

func (r runRow) toRecord() pipeline.RunRecord {
	return pipeline.RunRecord{
		At:             r.At,
		ConversationID: r.ConversationID,
		AgentID:        r.AgentID,
		AgentName:      r.AgentName,
		CustomerName:   r.CustomerName,
		Channel:        r.Channel,
		Query:          r.Query,
		Symbol:         r.Symbol,
		Summary:        r.Summary,
		Overall:        r.Overall,
	}
}
