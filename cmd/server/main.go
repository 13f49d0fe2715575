package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/craftora/marketplace/internal/assistant"
	"github.com/craftora/marketplace/internal/cache"
	"github.com/craftora/marketplace/internal/config"
	"github.com/craftora/marketplace/internal/db"
	"github.com/craftora/marketplace/internal/es"
	"github.com/craftora/marketplace/internal/events"
	"github.com/craftora/marketplace/internal/logging"
	"github.com/craftora/marketplace/internal/mail"
	loggingmw "github.com/craftora/marketplace/internal/middleware/logging"
	"github.com/craftora/marketplace/internal/payments"
	"github.com/craftora/marketplace/internal/service/token"
	transport "github.com/craftora/marketplace/internal/transport/http"
	"github.com/craftora/marketplace/internal/validate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	config.MustNonEmptyBytes(cfg.JWTSecret, "JWT_SECRET")
	config.MustNonEmptyBytes(cfg.RefreshSecret, "JWT_REFRESH_SECRET")

	log := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("database", "error", err)
		os.Exit(1)
	}

	var producer events.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaProducer(cfg.KafkaBrokers)
		defer kp.Close()
		producer = kp
	} else {
		log.Warn("kafka brokers not configured, events disabled")
	}

	mailer, err := mail.New(mail.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPass,
		From:     cfg.MailFrom,
	})
	if err != nil {
		log.Error("mailer", "error", err)
		os.Exit(1)
	}

	redisCache := cache.New(cfg.RedisAddr)
	defer redisCache.Close()

	var searchClient *elasticsearch.Client
	if cfg.ESURL != "" {
		searchClient, err = es.NewClient(es.Config{URL: cfg.ESURL, Username: cfg.ESUser, Password: cfg.ESPassword})
		if err != nil {
			log.Warn("elasticsearch unavailable, search disabled", "error", err)
			searchClient = nil
		}
	}

	tokens := &token.Service{DB: gdb, JWTSecret: cfg.JWTSecret, RefreshSecret: cfg.RefreshSecret}
	llm := assistant.New(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel)

	e := echo.New()
	e.HideBanner = true
	e.Validator = validate.New()
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RemoveTrailingSlash())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowCredentials: true,
	}))
	e.Use(loggingmw.RequestLogger(log))

	transport.Register(e, transport.Deps{
		DB:        gdb,
		Tokens:    tokens,
		Producer:  producer,
		Mailer:    mailer,
		Cache:     redisCache,
		ES:        searchClient,
		ESIndex:   cfg.ESIndex,
		Assistant: llm,
		Payments:  payments.MockProvider{},
		UploadDir: cfg.UploadDir,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           e,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "error", err)
	}
	if sqlDB, err := gdb.DB(); err == nil {
		sqlDB.Close()
	}
	log.Info("stopped")
}
