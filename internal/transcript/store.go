package transcript

import (
	"context"
	"fmt"
	"time"

	"github.com/eleven-am/careervoice/internal/conversation"
	"github.com/eleven-am/careervoice/internal/shared"
	"gorm.io/gorm"
)

// Turn is one persisted transcript row. Ordinal preserves the order the
// engine appended turns in; rows are never updated after insert.
type Turn struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	SessionID string    `gorm:"index;not null" json:"sessionId"`
	UserID    string    `gorm:"index;not null" json:"userId"`
	Speaker   string    `gorm:"not null" json:"speaker"`
	Ordinal   int       `gorm:"not null" json:"ordinal"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// SessionSummary is the list view of one recorded conversation.
type SessionSummary struct {
	SessionID string    `json:"sessionId"`
	Turns     int64     `json:"turns"`
	StartedAt time.Time `json:"startedAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&Turn{})
}

// AppendTurns persists one completed exchange at the end of the session's
// transcript. Implements the engine's turn sink.
func (s *Store) AppendTurns(ctx context.Context, sessionID, userID string, turns []conversation.TranscriptTurn) error {
	if len(turns) == 0 {
		return nil
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var next int64
		err := tx.Model(&Turn{}).
			Where("session_id = ?", sessionID).
			Count(&next).Error
		if err != nil {
			return fmt.Errorf("count turns: %w", err)
		}

		rows := make([]Turn, 0, len(turns))
		for i, turn := range turns {
			rows = append(rows, Turn{
				ID:        shared.NewID("turn_"),
				SessionID: sessionID,
				UserID:    userID,
				Speaker:   string(turn.Speaker),
				Ordinal:   int(next) + i,
				Text:      turn.Text,
			})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("insert turns: %w", err)
		}
		return nil
	})
}

// ListBySession returns a session's turns in append order.
func (s *Store) ListBySession(ctx context.Context, userID, sessionID string) ([]Turn, error) {
	var turns []Turn
	err := s.db.WithContext(ctx).
		Where("session_id = ? AND user_id = ?", sessionID, userID).
		Order("ordinal asc").
		Find(&turns).Error
	if err != nil {
		return nil, err
	}
	return turns, nil
}

// ListSessions returns the user's recorded conversations, newest first.
func (s *Store) ListSessions(ctx context.Context, userID string) ([]SessionSummary, error) {
	var summaries []SessionSummary
	err := s.db.WithContext(ctx).
		Model(&Turn{}).
		Select("session_id, count(*) as turns, min(created_at) as started_at, max(created_at) as updated_at").
		Where("user_id = ?", userID).
		Group("session_id").
		Order("started_at desc").
		Scan(&summaries).Error
	if err != nil {
		return nil, err
	}
	return summaries, nil
}
