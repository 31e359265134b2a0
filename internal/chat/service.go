package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/hrpro/hr-assistant/internal/llm"
	"github.com/hrpro/hr-assistant/internal/session"
)

const systemPrompt = "You are an assistant for IT recruiting. You help find " +
	"developers, review their public work, and keep the hiring process moving. " +
	"Answer concisely and stay on recruiting topics."

// Service turns a queued user message into a recorded conversation turn:
// session history in, provider reply out, both halves saved as one turn.
type Service struct {
	sessions          *session.Manager
	jobs              *Repo
	provider          llm.Provider
	contextWindowSize int
}

func NewService(sessions *session.Manager, jobs *Repo, provider llm.Provider, contextWindowSize int) *Service {
	if contextWindowSize <= 0 || contextWindowSize > 100 {
		contextWindowSize = 10
	}
	return &Service{
		sessions:          sessions,
		jobs:              jobs,
		provider:          provider,
		contextWindowSize: contextWindowSize,
	}
}

// Respond builds the prompt from recent history, asks the provider for a
// reply, and records the turn through the session manager (the write of
// record). The recorded conversation row is returned.
func (s *Service) Respond(ctx context.Context, chatID int64, userMessage string) (*session.Conversation, error) {
	if strings.TrimSpace(userMessage) == "" {
		return nil, errors.New("message must be non-empty")
	}

	// best-effort context; an empty history just means a short prompt
	history, err := s.sessions.GetSessionHistory(ctx, chatID, s.contextWindowSize)
	if err != nil {
		history = nil
	}

	msgs := make([]llm.Message, 0, 2*len(history)+2)
	msgs = append(msgs, llm.Message{Role: "system", Content: systemPrompt})
	for _, t := range history {
		msgs = append(msgs,
			llm.Message{Role: "user", Content: t.UserMessage},
			llm.Message{Role: "assistant", Content: t.BotResponse},
		)
	}
	msgs = append(msgs, llm.Message{Role: "user", Content: userMessage})

	reply, err := s.provider.Chat(ctx, msgs)
	if err != nil {
		return nil, err
	}

	return s.sessions.SaveConversation(ctx, chatID, userMessage, reply)
}

func (s *Service) CreateJobOrGetExisting(ctx context.Context, job *Job) (*Job, bool, error) {
	return s.jobs.CreateJobOrGetExisting(ctx, job)
}

func (s *Service) GetJob(ctx context.Context, jobID string) (*Job, error) {
	return s.jobs.GetJobByID(ctx, jobID)
}

// HandleJob is the worker entry point: mark running, respond, mark done.
func (s *Service) HandleJob(ctx context.Context, jobID string) error {
	_ = s.jobs.UpdateJobStatusRunning(ctx, jobID)

	j, err := s.jobs.GetJobByID(ctx, jobID)
	if err != nil {
		return err
	}

	conv, err := s.Respond(ctx, j.ChatID, j.Prompt)
	if err != nil {
		_ = s.jobs.MarkJobFailed(ctx, jobID, err.Error())
		return err
	}

	return s.jobs.MarkJobSucceeded(ctx, jobID, conv.ID)
}
