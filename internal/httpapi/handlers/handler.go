package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hrpro/hr-assistant/internal/chat"
	"github.com/hrpro/hr-assistant/internal/common"
	"github.com/hrpro/hr-assistant/internal/httpapi/middleware"
	"github.com/hrpro/hr-assistant/internal/session"
)

// JobPublisher enqueues a reply job for the worker pool.
type JobPublisher interface {
	PublishJob(ctx context.Context, jobID string) error
}

type Handler struct {
	Sessions *session.Manager
	ChatSvc  *chat.Service
	Rabbit   JobPublisher
	Log      *zap.Logger
}

func NewHandler(sessions *session.Manager, chatSvc *chat.Service, rabbit JobPublisher, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Sessions: sessions,
		ChatSvc:  chatSvc,
		Rabbit:   rabbit,
		Log:      log,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"status": "healthy"})
}

// callerField tags a log entry with the authenticated service token's subject
// (empty when auth is disabled).
func callerField(c *gin.Context) zap.Field {
	return zap.String("caller", c.GetString(middleware.CallerKey))
}

func chatIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("chat_id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid chat id")
		return 0, false
	}
	return id, true
}
