package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hrpro/hr-assistant/internal/session"
)

// Store keeps the live session index and recent turns in Redis.
//
// Key layout:
//
//	session:{chat_id}          -> session UUID (string)
//	conversation:{session_id}  -> RPUSH'ed JSON turns (list)
//
// Both keys carry the same sliding TTL, refreshed on every read and write.
// The connection is established lazily on first use; a down Redis makes every
// operation return an error, and the Manager degrades to the durable store.
type Store struct {
	opts *redis.Options
	ttl  time.Duration
	log  *zap.Logger

	mu     sync.Mutex
	client *redis.Client
	ready  bool
}

type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Logger   *zap.Logger
}

func New(opts Options) *Store {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		opts: &redis.Options{
			Addr:        opts.Addr,
			Password:    opts.Password,
			DB:          opts.DB,
			DialTimeout: 5 * time.Second,
		},
		ttl: ttl,
		log: log,
	}
}

// ensureClient dials and pings on first use. Idempotent; a failed attempt is
// retried on the next call rather than latching the store broken.
func (s *Store) ensureClient(ctx context.Context) (*redis.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		s.client = redis.NewClient(s.opts)
	}
	if !s.ready {
		if err := s.client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		s.ready = true
		s.log.Info("redis connection established", zap.String("addr", s.opts.Addr))
	}
	return s.client, nil
}

func sessionKey(chatID int64) string    { return fmt.Sprintf("session:%d", chatID) }
func conversationKey(sid string) string { return fmt.Sprintf("conversation:%s", sid) }

func (s *Store) GetOrCreateSession(ctx context.Context, chatID int64) (string, error) {
	rdb, err := s.ensureClient(ctx)
	if err != nil {
		return "", err
	}

	key := sessionKey(chatID)
	existing, err := rdb.Get(ctx, key).Result()
	if err == nil {
		if err := rdb.Expire(ctx, key, s.ttl).Err(); err != nil {
			return "", err
		}
		return existing, nil
	}
	if err != redis.Nil {
		return "", err
	}

	sid := uuid.NewString()
	if err := rdb.Set(ctx, key, sid, s.ttl).Err(); err != nil {
		return "", err
	}
	return sid, nil
}

func (s *Store) SaveConversation(ctx context.Context, chatID int64, userMessage, botResponse string) error {
	rdb, err := s.ensureClient(ctx)
	if err != nil {
		return err
	}

	sid, err := s.GetOrCreateSession(ctx, chatID)
	if err != nil {
		return err
	}

	turn := session.Turn{
		UserMessage: userMessage,
		BotResponse: botResponse,
		Timestamp:   time.Now().Format(time.RFC3339Nano),
	}
	payload, err := json.Marshal(turn)
	if err != nil {
		return err
	}

	key := conversationKey(sid)
	if err := rdb.RPush(ctx, key, payload).Err(); err != nil {
		return err
	}
	return rdb.Expire(ctx, key, s.ttl).Err()
}

func (s *Store) GetConversationHistory(ctx context.Context, chatID int64, limit int) ([]session.Turn, error) {
	rdb, err := s.ensureClient(ctx)
	if err != nil {
		return nil, err
	}

	sid, err := s.GetOrCreateSession(ctx, chatID)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = 10
	}

	// last limit entries, already oldest-first
	raw, err := rdb.LRange(ctx, conversationKey(sid), int64(-limit), -1).Result()
	if err != nil {
		return nil, err
	}

	turns := make([]session.Turn, 0, len(raw))
	for _, item := range raw {
		var t session.Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			s.log.Warn("dropping undecodable cached turn", zap.Int64("chat_id", chatID), zap.Error(err))
			continue
		}
		turns = append(turns, t)
	}
	return turns, nil
}

func (s *Store) ClearSession(ctx context.Context, chatID int64) error {
	rdb, err := s.ensureClient(ctx)
	if err != nil {
		return err
	}

	key := sessionKey(chatID)
	sid, err := rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}

	if err := rdb.Del(ctx, conversationKey(sid)).Err(); err != nil {
		return err
	}
	return rdb.Del(ctx, key).Err()
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
