package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jimmicro/grace"
	"github.com/mikepea/kbase/pkg/kbase/auth"
	"github.com/mikepea/kbase/pkg/kbase/chat"
	"github.com/mikepea/kbase/pkg/kbase/config"
	"github.com/mikepea/kbase/pkg/kbase/database"
	"github.com/mikepea/kbase/pkg/kbase/events"
	"github.com/mikepea/kbase/pkg/kbase/logging"
	"github.com/mikepea/kbase/pkg/kbase/models"
	"github.com/mikepea/kbase/pkg/kbase/notify"
	"github.com/mikepea/kbase/pkg/kbase/reaper"
	"github.com/mikepea/kbase/pkg/kbase/server"
	"github.com/mikepea/kbase/pkg/kbase/storage"
	"github.com/rs/zerolog/log"
)

// @title Knowledge Base API
// @version 1.0
// @description Resource catalog for a departmental knowledge base: browsing, uploads, tags, import/export and an assistant.

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT token. Format: "Bearer {token}"

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (default $KBASE_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stdout)
	logging.SetDefault(logger)
	auth.Configure(cfg.JWTSecret, cfg.TokenTTL)

	if err := database.Connect(cfg.DatabasePath); err != nil {
		log.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("Failed to connect to database")
	}
	defer database.Close()
	db := database.GetDB()

	if err := models.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}
	log.Info().Msg("Database migrations completed")

	created, err := auth.EnsureAdmin(db, cfg.Admin.Email, cfg.Admin.Password)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure admin user exists")
	}
	if created {
		log.Warn().Str("email", cfg.Admin.Email).Msg("Created default admin user, change the password after first login")
	}

	bucket, err := storage.Open(cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("Failed to open file storage")
	}
	uploader := storage.NewUploader(bucket, cfg.Storage.MaxBytes)

	hub := events.NewHub()
	notifier := notify.New(logger, notify.DefaultTimeout)
	defer notifier.Wait()

	deps := server.Deps{
		DB:       db,
		Hub:      hub,
		Notifier: notifier,
		Uploader: uploader,
		Logger:   logger,
	}
	if completer := chat.NewHTTPCompleter(cfg.Chat); completer != nil {
		deps.Completer = completer
	} else {
		log.Info().Msg("Chat endpoint not configured, assistant disabled")
	}

	sweeper, err := reaper.New(db, uploader, cfg.Reaper, logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure reaper")
	}

	srv := server.New(cfg, deps)
	log.Info().Str("address", cfg.Address).Str("base_url", cfg.BaseURL).Msg("Starting server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shepherd := grace.NewShepherd(
		[]grace.Grace{srv, hub, sweeper},
		grace.WithTimeout(30*time.Second),
		grace.WithLogger(&logging.GraceLogger{Logger: logger}),
	)
	shepherd.Start(ctx)
	log.Info().Msg("Server stopped")
}
