package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/hrpro/hr-assistant/internal/chat"
	"github.com/hrpro/hr-assistant/internal/common"
)

type sendMessageReq struct {
	Message string `json:"message" binding:"required"`
}

// SendMessage accepts a user message, records a reply job, and enqueues it for
// the worker pool. The Idempotency-Key header dedupes client retries.
func (h *Handler) SendMessage(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}

	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid json")
		return
	}

	idempoKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if len(idempoKey) > 128 {
		common.Fail(c, http.StatusBadRequest, 10005, "idempotency key too long")
		return
	}
	var idempoKeyPtr *string
	if idempoKey != "" {
		idempoKeyPtr = &idempoKey
	}

	jobID, err := common.NewULID()
	if err != nil {
		h.Log.Error("ulid failed", zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 50006, "internal error")
		return
	}

	j := &chat.Job{
		ID:             jobID,
		ChatID:         chatID,
		Prompt:         req.Message,
		IdempotencyKey: idempoKeyPtr,
		Status:         chat.JobQueued,
	}

	j, created, err := h.ChatSvc.CreateJobOrGetExisting(c.Request.Context(), j)
	if err != nil {
		h.Log.Error("create job failed", zap.Int64("chat_id", chatID), zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 50006, "internal error")
		return
	}

	if created {
		if err := h.Rabbit.PublishJob(c.Request.Context(), j.ID); err != nil {
			h.Log.Error("publish job failed", zap.String("job_id", j.ID), zap.Error(err))
			common.Fail(c, http.StatusInternalServerError, 50007, "enqueue failed")
			return
		}
		h.Log.Info("reply job enqueued",
			zap.String("job_id", j.ID),
			zap.Int64("chat_id", chatID),
			callerField(c),
		)
	}

	common.OK(c, gin.H{"job_id": j.ID})
}

func (h *Handler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if jobID == "" {
		common.Fail(c, http.StatusBadRequest, 10006, "job_id required")
		return
	}

	j, err := h.ChatSvc.GetJob(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "job not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50006, "internal error")
		return
	}

	common.OK(c, gin.H{
		"job": gin.H{
			"id":                     j.ID,
			"chat_id":                j.ChatID,
			"status":                 j.Status,
			"result_conversation_id": j.ResultConversationID,
			"error":                  j.Error,
			"created_at":             j.CreatedAt,
			"updated_at":             j.UpdatedAt,
		},
	})
}
