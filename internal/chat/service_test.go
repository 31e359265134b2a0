package chat

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/hrpro/hr-assistant/internal/llm"
	"github.com/hrpro/hr-assistant/internal/session"
)

type recordingProvider struct {
	last  []llm.Message
	reply string
	err   error
}

func (p *recordingProvider) Chat(_ context.Context, messages []llm.Message) (string, error) {
	// copy to avoid mutations
	p.last = append([]llm.Message(nil), messages...)
	if p.err != nil {
		return "", p.err
	}
	if p.reply == "" {
		return "ok", nil
	}
	return p.reply, nil
}

// deadCache forces the session manager onto its in-memory + durable path.
type deadCache struct{}

func (deadCache) GetOrCreateSession(context.Context, int64) (string, error) {
	return "", errors.New("connection refused")
}
func (deadCache) SaveConversation(context.Context, int64, string, string) error {
	return errors.New("connection refused")
}
func (deadCache) GetConversationHistory(context.Context, int64, int) ([]session.Turn, error) {
	return nil, errors.New("connection refused")
}
func (deadCache) ClearSession(context.Context, int64) error {
	return errors.New("connection refused")
}

var testDBSeq int64

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:chattest%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSeq, 1))
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&session.Conversation{}, &Job{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, prov llm.Provider, window int) (*Service, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	sessions := session.NewManager(session.NewRepo(db), deadCache{}, nil)
	return NewService(sessions, NewRepo(db), prov, window), db
}

func TestRespond_RecordsTurn(t *testing.T) {
	prov := &recordingProvider{reply: "hello there"}
	svc, db := newTestService(t, prov, 10)

	conv, err := svc.Respond(context.Background(), 1, "Hello")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if conv.UserMessage != "Hello" || conv.BotResponse != "hello there" {
		t.Fatalf("unexpected turn: %+v", conv)
	}

	var rows []session.Conversation
	if err := db.Where("chat_id = ?", int64(1)).Find(&rows).Error; err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 recorded turn, got %d", len(rows))
	}

	if len(prov.last) < 2 {
		t.Fatalf("expected system + user messages, got %d", len(prov.last))
	}
	if prov.last[0].Role != "system" {
		t.Fatalf("expected system prompt first, got role %q", prov.last[0].Role)
	}
	tail := prov.last[len(prov.last)-1]
	if tail.Role != "user" || tail.Content != "Hello" {
		t.Fatalf("expected pending user message last, got %+v", tail)
	}
}

func TestRespond_UsesContextWindow(t *testing.T) {
	prov := &recordingProvider{}
	window := 3
	svc, _ := newTestService(t, prov, window)

	// seed history through the service so turns share the chat's session
	for i := 0; i < 5; i++ {
		if _, err := svc.Respond(context.Background(), 2, fmt.Sprintf("seed %d", i)); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}

	if _, err := svc.Respond(context.Background(), 2, "new"); err != nil {
		t.Fatalf("respond: %v", err)
	}

	// system + window pairs + the new user message
	want := 1 + 2*window + 1
	if len(prov.last) != want {
		t.Fatalf("expected %d provider messages, got %d", want, len(prov.last))
	}
	tail := prov.last[len(prov.last)-1]
	if tail.Role != "user" || tail.Content != "new" {
		t.Fatalf("expected new user message last, got %+v", tail)
	}
}

func TestRespond_RejectsEmptyMessage(t *testing.T) {
	svc, _ := newTestService(t, &recordingProvider{}, 10)
	if _, err := svc.Respond(context.Background(), 3, "   "); err == nil {
		t.Fatalf("expected error for blank message")
	}
}

func TestHandleJob_Succeeds(t *testing.T) {
	svc, _ := newTestService(t, &recordingProvider{reply: "done"}, 10)

	job := &Job{ID: "01TESTJOB00000000000000001", ChatID: 4, Prompt: "status?", Status: JobQueued}
	if _, _, err := svc.CreateJobOrGetExisting(context.Background(), job); err != nil {
		t.Fatalf("create job: %v", err)
	}

	if err := svc.HandleJob(context.Background(), job.ID); err != nil {
		t.Fatalf("handle job: %v", err)
	}

	got, err := svc.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Status != JobSucceeded {
		t.Fatalf("expected succeeded, got %q", got.Status)
	}
	if got.ResultConversationID == nil || *got.ResultConversationID == 0 {
		t.Fatalf("expected result conversation id, got %+v", got.ResultConversationID)
	}
}

func TestHandleJob_MarksFailure(t *testing.T) {
	svc, _ := newTestService(t, &recordingProvider{err: errors.New("model overloaded")}, 10)

	job := &Job{ID: "01TESTJOB00000000000000002", ChatID: 4, Prompt: "status?", Status: JobQueued}
	if _, _, err := svc.CreateJobOrGetExisting(context.Background(), job); err != nil {
		t.Fatalf("create job: %v", err)
	}

	if err := svc.HandleJob(context.Background(), job.ID); err == nil {
		t.Fatalf("expected provider error to propagate")
	}

	got, err := svc.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Status != JobFailed {
		t.Fatalf("expected failed, got %q", got.Status)
	}
	if got.Error == nil || *got.Error != "model overloaded" {
		t.Fatalf("expected recorded error, got %+v", got.Error)
	}
}

func TestCreateJobOrGetExisting_Idempotent(t *testing.T) {
	svc, _ := newTestService(t, &recordingProvider{}, 10)

	key := "retry-abc"
	first := &Job{ID: "01IDEMPOTESTID000000000001", ChatID: 6, Prompt: "hi", IdempotencyKey: &key, Status: JobQueued}
	j1, created, err := svc.CreateJobOrGetExisting(context.Background(), first)
	if err != nil || !created {
		t.Fatalf("first create: created=%v err=%v", created, err)
	}

	second := &Job{ID: "01IDEMPOTESTID000000000002", ChatID: 6, Prompt: "hi", IdempotencyKey: &key, Status: JobQueued}
	j2, created, err := svc.CreateJobOrGetExisting(context.Background(), second)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if created {
		t.Fatalf("expected dedupe on idempotency key")
	}
	if j2.ID != j1.ID {
		t.Fatalf("expected existing job back, got %q vs %q", j2.ID, j1.ID)
	}
}
