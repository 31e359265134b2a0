package session

import (
	"context"
	"strings"

	"gorm.io/gorm"
)

// Repo wraps the conversation_history table. Every method talks to the
// durable store only; errors propagate to the caller unmodified.
type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) InsertConversation(ctx context.Context, conv *Conversation) error {
	return r.db.WithContext(ctx).Create(conv).Error
}

// ListRecentBySession returns up to limit of the newest turns for a session,
// oldest-first. Queried DESC then reversed so the cap keeps the recent end.
// Rows are append-only, so id order is creation-timestamp order.
func (r *Repo) ListRecentBySession(ctx context.Context, sessionID string, limit int) ([]Conversation, error) {
	q := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []Conversation
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	// reverse to ASC (oldest -> newest)
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

// SearchByChat matches query case-insensitively against either side of a turn,
// newest first. Searches the whole chat, not just the live session.
func (r *Repo) SearchByChat(ctx context.Context, chatID int64, query string) ([]Conversation, error) {
	pattern := "%" + strings.ToLower(query) + "%"

	var rows []Conversation
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Where("LOWER(user_message) LIKE ? OR LOWER(bot_response) LIKE ?", pattern, pattern).
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// DeleteBySession removes every turn of one session inside a transaction, so a
// failed delete leaves the prior state intact.
func (r *Repo) DeleteBySession(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Where("session_id = ?", sessionID).Delete(&Conversation{}).Error
	})
}

// StatsByChat aggregates count/min/max timestamps over every turn of a chat.
func (r *Repo) StatsByChat(ctx context.Context, chatID int64) (*Statistics, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&Conversation{}).
		Where("chat_id = ?", chatID).
		Count(&total).Error
	if err != nil {
		return nil, err
	}

	stats := &Statistics{TotalMessages: total}
	if total == 0 {
		return stats, nil
	}

	// boundary rows rather than MIN()/MAX(), which scan back as
	// dialect-specific time strings
	var first, last Conversation
	if err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("id ASC").
		First(&first).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("id DESC").
		First(&last).Error; err != nil {
		return nil, err
	}

	stats.FirstMessage = &first.Timestamp
	stats.LastMessage = &last.Timestamp
	dur := last.Timestamp.Sub(first.Timestamp).Seconds()
	stats.SessionDuration = &dur
	return stats, nil
}
