package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/hrpro/hr-assistant/internal/common"
	"github.com/hrpro/hr-assistant/internal/config"
	"github.com/hrpro/hr-assistant/internal/httpapi/handlers"
	"github.com/hrpro/hr-assistant/internal/httpapi/middleware"
)

func NewRouter(h *handlers.Handler, cfg config.Config) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           time.Duration(cfg.CORSMaxAgeSecs) * time.Second,
	}))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", h.Ping)

	api := r.Group("/")
	api.Use(middleware.AuthRequired(cfg.APIJWTSecret))

	api.GET("/conversations/:chat_id", h.GetConversationHistory)
	api.DELETE("/conversations/:chat_id", h.ClearConversation)
	api.GET("/conversations/:chat_id/stats", h.GetConversationStats)
	api.GET("/conversations/:chat_id/search", h.SearchConversation)
	api.GET("/conversations/:chat_id/export", h.ExportConversation)

	api.POST("/conversations/:chat_id/messages", h.SendMessage)
	api.GET("/jobs/:job_id", h.GetJob)

	return r
}
