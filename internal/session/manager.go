package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager unifies the Redis tier and the durable store behind one API.
//
// Fallback order: every read tries the cache first and degrades to Postgres;
// every write goes to the cache best-effort and to Postgres as the write of
// record. Cache failures are logged and absorbed here, never surfaced.
//
// When Redis is unreachable the chat->session index lives in an in-process
// map. The map is lost on restart and owned by a single process; Redis is
// authoritative whenever it is reachable.
type Manager struct {
	repo  *Repo
	cache Cache
	log   *zap.Logger

	mu             sync.Mutex
	activeSessions map[int64]string
	lastActivity   map[string]time.Time
}

func NewManager(repo *Repo, cache Cache, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		repo:           repo,
		cache:          cache,
		log:            log,
		activeSessions: make(map[int64]string),
		lastActivity:   make(map[string]time.Time),
	}
}

// GetOrCreateSession resolves a chat id to its live session id. Repeated calls
// return the same id until a clear or an expiry; every call refreshes the
// entry's activity.
func (m *Manager) GetOrCreateSession(ctx context.Context, chatID int64) (string, error) {
	sid, err := m.cache.GetOrCreateSession(ctx, chatID)
	if err == nil {
		return sid, nil
	}
	m.log.Warn("redis session failed, using memory", zap.Int64("chat_id", chatID), zap.Error(err))

	m.mu.Lock()
	defer m.mu.Unlock()

	if sid, ok := m.activeSessions[chatID]; ok {
		m.lastActivity[sid] = time.Now()
		return sid, nil
	}

	sid = uuid.NewString()
	m.activeSessions[chatID] = sid
	m.lastActivity[sid] = time.Now()
	return sid, nil
}

// GetSessionHistory returns up to limit of the newest turns, oldest-first.
// A non-positive limit means the default window of 10, on both tiers.
// Cache hit wins; otherwise the durable store is read and the cache is warmed
// back up best-effort. A dead durable store yields an empty history, not an
// error: history is advisory context, not a read of record.
func (m *Manager) GetSessionHistory(ctx context.Context, chatID int64, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 10
	}

	cached, err := m.cache.GetConversationHistory(ctx, chatID, limit)
	if err != nil {
		m.log.Warn("redis history failed", zap.Int64("chat_id", chatID), zap.Error(err))
	} else if len(cached) > 0 {
		return cached, nil
	}

	sid, err := m.GetOrCreateSession(ctx, chatID)
	if err != nil {
		return []Turn{}, nil
	}

	rows, err := m.repo.ListRecentBySession(ctx, sid, limit)
	if err != nil {
		m.log.Error("database history failed", zap.Int64("chat_id", chatID), zap.Error(err))
		return []Turn{}, nil
	}

	turns := make([]Turn, 0, len(rows))
	for _, row := range rows {
		turns = append(turns, Turn{
			UserMessage: row.UserMessage,
			BotResponse: row.BotResponse,
			Timestamp:   row.Timestamp.Format(time.RFC3339Nano),
		})
	}

	// warm the cache back up so the next read stays on the fast path
	for _, t := range turns {
		if err := m.cache.SaveConversation(ctx, chatID, t.UserMessage, t.BotResponse); err != nil {
			m.log.Warn("failed to cache history in redis", zap.Int64("chat_id", chatID), zap.Error(err))
			break
		}
	}

	return turns, nil
}

// SaveConversation records one turn: cache first (best-effort), then the
// durable store as the write of record. A durable failure is the caller's
// problem; a cache failure is only a log line.
func (m *Manager) SaveConversation(ctx context.Context, chatID int64, userMessage, botResponse string) (*Conversation, error) {
	if userMessage == "" || botResponse == "" {
		return nil, errors.New("user message and bot response must be non-empty")
	}

	if err := m.cache.SaveConversation(ctx, chatID, userMessage, botResponse); err != nil {
		m.log.Warn("failed to save to redis", zap.Int64("chat_id", chatID), zap.Error(err))
	}

	sid, err := m.GetOrCreateSession(ctx, chatID)
	if err != nil {
		return nil, err
	}

	conv := &Conversation{
		ChatID:      chatID,
		SessionID:   sid,
		UserMessage: userMessage,
		BotResponse: botResponse,
	}
	if err := m.repo.InsertConversation(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// ClearSession ends the chat's live session: the current session id is
// resolved first, then the cache entry and the fallback map entry are dropped
// (best-effort), then the session's durable turns are deleted transactionally.
// The next GetOrCreateSession mints a fresh id.
func (m *Manager) ClearSession(ctx context.Context, chatID int64) error {
	sid, err := m.GetOrCreateSession(ctx, chatID)
	if err != nil {
		return err
	}

	if err := m.cache.ClearSession(ctx, chatID); err != nil {
		m.log.Warn("failed to clear redis session", zap.Int64("chat_id", chatID), zap.Error(err))
	}

	m.mu.Lock()
	if memSID, ok := m.activeSessions[chatID]; ok {
		delete(m.activeSessions, chatID)
		delete(m.lastActivity, memSID)
	}
	m.mu.Unlock()

	return m.repo.DeleteBySession(ctx, sid)
}

// CleanupExpiredSessions sweeps the in-process fallback map. Redis expires its
// own entries; this only matters for sessions created while Redis was down.
func (m *Manager) CleanupExpiredSessions(timeout time.Duration) {
	cutoff := time.Now().Add(-timeout)

	m.mu.Lock()
	defer m.mu.Unlock()

	for chatID, sid := range m.activeSessions {
		last, ok := m.lastActivity[sid]
		if !ok || last.Before(cutoff) {
			delete(m.activeSessions, chatID)
			delete(m.lastActivity, sid)
		}
	}
}

// GetConversationStatistics is durable-store only: statistics must be exact.
func (m *Manager) GetConversationStatistics(ctx context.Context, chatID int64) (*Statistics, error) {
	return m.repo.StatsByChat(ctx, chatID)
}

// SearchConversations is durable-store only, newest first.
func (m *Manager) SearchConversations(ctx context.Context, query string, chatID int64) ([]Conversation, error) {
	return m.repo.SearchByChat(ctx, chatID, query)
}
