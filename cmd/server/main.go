package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"relay-service/internal/api/routes"
	"relay-service/internal/config"
	"relay-service/internal/database"
	"relay-service/internal/delivery"
	"relay-service/internal/identity"
	"relay-service/internal/presence"
	"relay-service/internal/repositories/postgres"
	"relay-service/internal/room"
	"relay-service/internal/stream"
	"relay-service/internal/ws"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	slog.Info("Starting relay server")

	redisClient, err := database.NewRedisConnection(&cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	db, err := database.NewPostgresConnection(cfg.Database.DSN())
	if err != nil {
		slog.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}

	var storage *database.MinIOClient
	if cfg.MinIO.Enabled {
		storage, err = database.NewMinIOClient(cfg.MinIO.Endpoint, cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, cfg.MinIO.Bucket)
		if err != nil {
			slog.Error("Failed to connect to MinIO", "error", err)
			os.Exit(1)
		}
	}

	var publisher delivery.Publisher
	if cfg.Kafka.Enabled {
		kafkaPublisher, err := stream.NewMessagePublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			slog.Error("Failed to connect to Kafka", "error", err)
			os.Exit(1)
		}
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	registry := presence.NewRegistry()
	rooms := room.NewRouter()
	presenceStore := presence.NewStore(redisClient.GetClient())
	provider := identity.NewJWTProvider(cfg.JWT.Secret)

	hub := ws.NewHub(registry, rooms, presenceStore, cfg.Limits.EventsPerSecond, cfg.Limits.EventBurst)

	messageRepo := postgres.NewMessageRepository(db)
	userRepo := postgres.NewUserRepository(db)
	engine := delivery.NewEngine(messageRepo, userRepo, rooms, hub, publisher)
	hub.SetEngine(engine)

	go hub.Run()

	router := routes.NewRouter(cfg, hub, registry, provider, redisClient.GetClient(), db, storage)
	router.SetupRoutes()

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.GetEngine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("Server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	hub.Stop()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server stopped")
}
