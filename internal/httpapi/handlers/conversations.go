package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hrpro/hr-assistant/internal/common"
)

func (h *Handler) GetConversationHistory(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	history, err := h.Sessions.GetSessionHistory(c.Request.Context(), chatID, limit)
	if err != nil {
		h.Log.Error("history failed", zap.Int64("chat_id", chatID), zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 50001, "error retrieving conversation history")
		return
	}

	common.OK(c, gin.H{"chat_id": chatID, "messages": history})
}

func (h *Handler) ClearConversation(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}

	if err := h.Sessions.ClearSession(c.Request.Context(), chatID); err != nil {
		h.Log.Error("clear failed", zap.Int64("chat_id", chatID), zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 50002, "error clearing conversation history")
		return
	}

	h.Log.Info("conversation cleared", zap.Int64("chat_id", chatID), callerField(c))
	common.OK(c, gin.H{"message": "conversation history cleared"})
}

func (h *Handler) GetConversationStats(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}

	stats, err := h.Sessions.GetConversationStatistics(c.Request.Context(), chatID)
	if err != nil {
		h.Log.Error("stats failed", zap.Int64("chat_id", chatID), zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 50003, "error computing statistics")
		return
	}

	common.OK(c, stats)
}

func (h *Handler) SearchConversation(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}

	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "query parameter required")
		return
	}

	results, err := h.Sessions.SearchConversations(c.Request.Context(), query, chatID)
	if err != nil {
		h.Log.Error("search failed", zap.Int64("chat_id", chatID), zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 50004, "error searching conversations")
		return
	}

	common.OK(c, gin.H{"results": results})
}

// ExportConversation renders the full history as JSON (default) or plain text.
func (h *Handler) ExportConversation(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}

	format := c.DefaultQuery("format", "json")
	if format != "json" && format != "txt" {
		common.Fail(c, http.StatusBadRequest, 10003, "format must be json or txt")
		return
	}

	history, err := h.Sessions.GetSessionHistory(c.Request.Context(), chatID, 1000)
	if err != nil {
		h.Log.Error("export failed", zap.Int64("chat_id", chatID), zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 50005, "error exporting conversation")
		return
	}

	if format == "json" {
		common.OK(c, gin.H{"chat_id": chatID, "messages": history})
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Conversation history for chat %d\n\n", chatID)
	for _, msg := range history {
		fmt.Fprintf(&b, "User: %s\n", msg.UserMessage)
		fmt.Fprintf(&b, "Bot: %s\n\n", msg.BotResponse)
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(b.String()))
}
