package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/scholarport/backend/internal/clients/gcs"
	"github.com/scholarport/backend/internal/clients/openai"
	redisclient "github.com/scholarport/backend/internal/clients/redis"
	"github.com/scholarport/backend/internal/db"
	"github.com/scholarport/backend/internal/handlers"
	"github.com/scholarport/backend/internal/middleware"
	"github.com/scholarport/backend/internal/observability"
	"github.com/scholarport/backend/internal/pkg/logger"
	"github.com/scholarport/backend/internal/repos"
	"github.com/scholarport/backend/internal/server"
	"github.com/scholarport/backend/internal/services"
	"github.com/scholarport/backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	httpPort := utils.GetEnv("HTTP_PORT", "8080", log)
	allowOrigins := utils.GetEnv("CORS_ALLOW_ORIGINS", "", log)

	// Tracing
	shutdownOTel := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "scholarport-api",
		Environment: utils.GetEnv("APP_ENV", "development", log),
		Version:     utils.GetEnv("APP_VERSION", "dev", log),
	})

	// Database
	dbService, err := db.New(log)
	if err != nil {
		log.Fatal("Database init failed", "error", err)
	}
	if err := dbService.AutoMigrateAll(); err != nil {
		log.Fatal("Auto migration failed", "error", err)
	}
	gdb := dbService.DB()

	// Repos
	log.Info("Setting up repos from main...")
	convRepo := repos.NewConversationRepo(gdb, log)
	msgRepo := repos.NewChatMessageRepo(gdb, log)
	universityRepo := repos.NewUniversityRepo(gdb, log)
	profileRepo := repos.NewStudentProfileRepo(gdb, log)

	// Clients
	log.Info("Setting up clients from main...")
	aiClient, err := openai.NewClient(log)
	if err != nil {
		log.Warn("OpenAI client unavailable, normalization will use fallback rules", "error", err)
		aiClient = nil
	}

	var sink services.ProfileSink
	gcsSink, err := gcs.NewProfileSink(log)
	if err != nil {
		log.Warn("Profile sink unavailable, profiles will be local only", "error", err)
	} else {
		sink = gcsSink
	}

	var locker services.SessionLocker
	redisLocker, err := redisclient.NewSessionLocker(log)
	if err != nil {
		log.Warn("Redis locker unavailable, using in-process session locking", "error", err)
		locker = services.NewMemorySessionLocker()
	} else {
		locker = redisLocker
		defer redisLocker.Close()
	}

	// Services
	log.Info("Setting up services from main...")
	normalizer := services.NewNormalizer(log, aiClient)
	selector := services.NewUniversitySelector(log, universityRepo)
	profileCreator := services.NewProfileCreator(log, profileRepo, sink)
	conversationService := services.NewConversationService(log, convRepo, msgRepo, normalizer, selector, profileCreator, aiClient, locker)
	adminService := services.NewAdminService(log, profileRepo)

	// Handlers + router
	chatHandler := handlers.NewChatHandler(conversationService)
	adminHandler := handlers.NewAdminHandler(adminService)
	authMiddleware := middleware.NewAuthMiddleware(log, jwtSecretKey)

	router := server.NewRouter(server.RouterConfig{
		ChatHandler:    chatHandler,
		AdminHandler:   adminHandler,
		AuthMiddleware: authMiddleware,
		AllowOrigins:   splitOrigins(allowOrigins),
	})

	httpServer := &http.Server{
		Addr:    ":" + httpPort,
		Handler: router,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		log.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if shutdownOTel != nil {
			_ = shutdownOTel(shutdownCtx)
		}
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("Server exited with error", "error", err)
	}
	log.Info("Server stopped")
}

func splitOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
