package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/bookly/internal/blocklist"
	"github.com/Skotchmaster/bookly/internal/config"
	"github.com/Skotchmaster/bookly/internal/es"
	"github.com/Skotchmaster/bookly/internal/handlers"
	"github.com/Skotchmaster/bookly/internal/logging"
	mwauth "github.com/Skotchmaster/bookly/internal/middleware/auth"
	loggingmw "github.com/Skotchmaster/bookly/internal/middleware/logging"
	"github.com/Skotchmaster/bookly/internal/mykafka"
	httpserver "github.com/Skotchmaster/bookly/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := logging.New(os.Getenv("LOG_LEVEL"))

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	// The revocation store must be reachable before any protected request
	// is served: without it every revoked token would pass.
	startCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	bl, err := blocklist.New(startCtx, configuration.RedisAddr())
	cancel()
	if err != nil {
		log.Fatalf("blocklist init error: %v", err)
	}

	prod := mykafka.NewProducer([]string{configuration.KAFKA_ADDRESS})

	esClient, err := es.NewClient(configuration)
	if err != nil {
		log.Printf("elasticsearch unavailable, search disabled: %v", err)
		esClient = nil
	}

	secret := []byte(configuration.SECRET_KEY)
	accessLifetime := time.Duration(configuration.ACCESS_TOKEN_MINUTES) * time.Minute

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), loggingmw.RequestLogger(logger))

	guard := mwauth.NewTokenGuard(secret, bl)

	deps := httpserver.Deps{
		AuthHandler: &handlers.AuthHandler{
			DB:             db,
			Secret:         secret,
			AccessLifetime: accessLifetime,
			Blocklist:      bl,
			Producer:       prod,
			DomainName:     configuration.DOMAIN_NAME,
			Port:           configuration.PORT,
		},
		BookHandler: &handlers.BookHandler{DB: db, Producer: prod, ES: esClient},
		Guard:       guard,
	}
	if esClient != nil {
		deps.SearchHandler = &handlers.SearchHandler{ES: esClient}
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":" + configuration.PORT,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	logger.Info("server started", "port", configuration.PORT, "environment", configuration.ENVIRONMENT)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := bl.Close(); err != nil {
		log.Printf("blocklist close error: %v", err)
	}

	if err := prod.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
