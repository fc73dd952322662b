package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/deskhive/deskhive/internal/auth"
	"github.com/deskhive/deskhive/internal/config"
	"github.com/deskhive/deskhive/internal/es"
	"github.com/deskhive/deskhive/internal/events"
	"github.com/deskhive/deskhive/internal/handlers"
	"github.com/deskhive/deskhive/internal/logging"
	loggingmw "github.com/deskhive/deskhive/internal/middleware/logging"
	"github.com/deskhive/deskhive/internal/storage"
	httpserver "github.com/deskhive/deskhive/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)
	slog.SetDefault(logger)

	db, err := config.InitDB(context.Background(), configuration)
	if err != nil {
		log.Fatalf("db init: %v", err)
	}

	tokenCfg := auth.TokenConfig{
		Secret:    []byte(configuration.JWT_SECRET),
		Issuer:    configuration.JWT_ISSUER,
		Audience:  configuration.JWT_AUDIENCE,
		AccessTTL: time.Duration(configuration.ACCESS_TTL_MINUTES) * time.Minute,
	}
	authService := &auth.Service{DB: db, Cfg: tokenCfg}

	var brokers []string
	if configuration.KAFKA_ADDRESS != "" {
		brokers = []string{configuration.KAFKA_ADDRESS}
	}
	producer := events.NewProducer(brokers)

	deps := httpserver.Deps{
		TokenConfig:        tokenCfg,
		AuthHandler:        &handlers.AuthHandler{Auth: authService, Producer: producer},
		EquipmentHandler:   &handlers.EquipmentHandler{DB: db, Producer: producer},
		ReservationHandler: &handlers.ReservationHandler{DB: db, Producer: producer},
		MembershipHandler:  &handlers.MembershipHandler{DB: db, Producer: producer},
		PaymentHandler:     &handlers.PaymentHandler{DB: db, Producer: producer},
	}

	spaceHandler := &handlers.SpaceHandler{DB: db, Producer: producer, Index: es.SpacesIndex}
	if configuration.ES_URL != "" {
		esClient, err := es.NewClient(configuration)
		if err != nil {
			log.Fatalf("elasticsearch init: %v", err)
		}
		spaceHandler.ES = esClient
		deps.SearchHandler = &handlers.SearchHandler{ES: esClient, Index: es.SpacesIndex}
	}
	if configuration.S3_ENDPOINT != "" {
		spaceHandler.Storage = storage.New(
			configuration.S3_ENDPOINT,
			configuration.S3_ACCESS_KEY,
			configuration.S3_SECRET_KEY,
			configuration.S3_BUCKET,
			configuration.S3_PUBLIC_BASE,
		)
	}
	deps.SpaceHandler = spaceHandler

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(loggingmw.RequestLogger(logger))

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":8080",
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("db close error", "error", err)
		}
	}

	if err := producer.Close(); err != nil {
		logger.Error("kafka close error", "error", err)
	}

	logger.Info("shutdown complete")
}
