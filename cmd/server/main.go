package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/iliyamo/team-task-board/internal/audit"
	"github.com/iliyamo/team-task-board/internal/auth"
	"github.com/iliyamo/team-task-board/internal/authz"
	"github.com/iliyamo/team-task-board/internal/config"
	"github.com/iliyamo/team-task-board/internal/database"
	"github.com/iliyamo/team-task-board/internal/events"
	"github.com/iliyamo/team-task-board/internal/handler"
	"github.com/iliyamo/team-task-board/internal/middleware"
	"github.com/iliyamo/team-task-board/internal/queue"
	"github.com/iliyamo/team-task-board/internal/repository"
	"github.com/iliyamo/team-task-board/internal/router"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer func() { _ = db.Close() }()

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "team-task-board").Logger()

	users := repository.NewUserRepo(db)
	devices := repository.NewDeviceRepo(db)
	resets := repository.NewResetTokenRepo(db)
	workspaces := repository.NewWorkspaceRepo(db)
	projects := repository.NewProjectRepo(db)
	tasks := repository.NewTaskRepo(db)
	notifications := repository.NewNotificationRepo(db)

	sink := audit.NewDBSink(repository.NewAuditRepo(db), logger)
	authSvc := auth.NewService(cfg, users, devices, resets, sink)
	resolver := authz.NewResolver(workspaces, projects)
	broker := events.NewBroker()

	// The consumer owns its own connection and reconnect loop; a broker
	// outage degrades notifications, never the API.
	go func() {
		if err := queue.StartTaskEventConsumer(notifications); err != nil {
			logger.Error().Err(err).Msg("task event consumer stopped")
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())

	rdb := config.NewRedisClient()
	var rateLimit, cache echo.MiddlewareFunc
	if rdb != nil {
		rateLimit = middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
		cache = middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	}

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, authSvc, sink), cfg.AccessSecret, rateLimit)
	router.RegisterAPI(e, router.APIHandlers{
		Users:         handler.NewUserHandler(users, authSvc),
		Workspaces:    handler.NewWorkspaceHandler(workspaces, resolver, broker, sink),
		Projects:      handler.NewProjectHandler(projects, resolver, sink),
		Tasks:         handler.NewTaskHandler(tasks, projects, resolver, broker, sink),
		Notifications: handler.NewNotificationHandler(notifications),
		Admin:         handler.NewAdminHandler(users, devices, sink, cfg.BcryptCost),
	}, cfg.AccessSecret, cache)

	addr := ":" + cfg.Port
	logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
