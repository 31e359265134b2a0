package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hrpro/hr-assistant/internal/chat"
	"github.com/hrpro/hr-assistant/internal/config"
	"github.com/hrpro/hr-assistant/internal/db"
	"github.com/hrpro/hr-assistant/internal/httpapi"
	"github.com/hrpro/hr-assistant/internal/httpapi/handlers"
	"github.com/hrpro/hr-assistant/internal/llm"
	"github.com/hrpro/hr-assistant/internal/session"
	"github.com/hrpro/hr-assistant/internal/store/rabbitmq"
	"github.com/hrpro/hr-assistant/internal/store/redisstore"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)

	cache := redisstore.New(redisstore.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      time.Duration(cfg.SessionTTLHours) * time.Hour,
		Logger:   logger,
	})
	defer cache.Close()

	sessions := session.NewManager(session.NewRepo(gdb), cache, logger)

	provider := llm.NewOpenAIProvider(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIChatModel)
	chatSvc := chat.NewService(sessions, chat.NewRepo(gdb), provider, cfg.ChatContextWindowSize)

	rabbit, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		logger.Fatal("rabbit connect", zap.Error(err))
	}
	defer rabbit.Close()

	h := handlers.NewHandler(sessions, chatSvc, rabbit, logger)
	router := httpapi.NewRouter(h, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// sweep the in-process fallback map once an hour
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sessions.CleanupExpiredSessions(time.Duration(cfg.SessionTTLHours) * time.Hour)
			}
		}
	}()

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		logger.Info("server started", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}
