package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/snowflake"

	"rentloop/internal/config"
	"rentloop/internal/database"
	"rentloop/internal/handler"
	"rentloop/internal/logging"
	"rentloop/internal/repository"
	"rentloop/internal/service"
	"rentloop/internal/storage"
	transport "rentloop/internal/transport/http"
	"rentloop/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	lg, err := logging.Init(logging.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()
	sugar := lg.Sugar()

	if cfg.JWTSecret == "" {
		sugar.Fatal("JWT_SECRET is not set")
	}

	// Storage connects before the HTTP surface accepts requests.
	db, err := database.Connect(cfg)
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer db.Close()
	sugar.Info("connected to database")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mediaStore, err := storage.NewMediaStore(ctx, cfg)
	if err != nil {
		sugar.Fatalf("media store: %v", err)
	}

	node, err := snowflake.NewNode(cfg.SnowflakeNode)
	if err != nil {
		sugar.Fatalf("snowflake node: %v", err)
	}

	accountRepo := repository.NewAccountRepository(db)
	listingRepo := repository.NewListingRepository(db)
	intentRepo := repository.NewIntentRepository(db)

	authService := service.NewAuthService(accountRepo, cfg)
	listingService := service.NewListingService(listingRepo, intentRepo, mediaStore, storage.NewImageKey, node, sugar)

	sweeper := worker.NewSweeper(intentRepo, mediaStore, worker.SweeperConfig{
		Interval: cfg.SweepInterval,
		TTL:      cfg.StagedTTL,
	}, sugar)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	router := transport.NewRouter(transport.RouterConfig{
		AuthHandler:    handler.NewAuthHandler(authService, cfg, sugar),
		ListingHandler: handler.NewListingHandler(listingService, cfg, sugar),
		MediaHandler:   handler.NewMediaHandler(listingService, sugar),
		TokenVerifier:  authService,
		AllowedOrigin:  cfg.AllowedOrigin,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		sugar.Infof("server listening on :%s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()
	sugar.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}
