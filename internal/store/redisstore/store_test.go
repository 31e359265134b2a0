package redisstore

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/hrpro/hr-assistant/internal/session"
)

// Interface compliance (compile-time assertion)
var _ session.Cache = (*Store)(nil)

func TestKeyLayout(t *testing.T) {
	if got := sessionKey(42); got != "session:42" {
		t.Fatalf("session key: %q", got)
	}
	if got := sessionKey(-7); got != "session:-7" {
		t.Fatalf("negative chat ids are valid: %q", got)
	}
	if got := conversationKey("ab-cd"); got != "conversation:ab-cd" {
		t.Fatalf("conversation key: %q", got)
	}
}

func TestNewDefaults(t *testing.T) {
	s := New(Options{Addr: "127.0.0.1:6379"})
	if s.ttl != 24*time.Hour {
		t.Fatalf("expected 24h default TTL, got %v", s.ttl)
	}
	if s.opts.DialTimeout != 5*time.Second {
		t.Fatalf("expected bounded dial timeout, got %v", s.opts.DialTimeout)
	}
	if s.log == nil {
		t.Fatalf("expected non-nil logger")
	}
}

// The cached turn payload is part of the persisted layout; other consumers of
// the Redis namespace read these fields by name.
func TestTurnWireShape(t *testing.T) {
	b, err := json.Marshal(session.Turn{
		UserMessage: "hi",
		BotResponse: "hello",
		Timestamp:   "2025-01-02T03:04:05Z",
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var m map[string]string
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, k := range []string{"user_message", "bot_response", "timestamp"} {
		if _, ok := m[k]; !ok {
			t.Fatalf("missing %q in payload %s", k, b)
		}
	}
	if len(m) != 3 {
		t.Fatalf("unexpected extra fields in payload %s", b)
	}
}
