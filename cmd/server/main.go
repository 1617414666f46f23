package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"stillmind/internal/cache"
	"stillmind/internal/config"
	"stillmind/internal/repository"
	"stillmind/internal/service"
	"stillmind/internal/transport/rest"
	"stillmind/internal/transport/ws"
)

func main() {
	log.Println("started")
	ctx := context.Background()

	configPath := flag.String("config", "config.yaml", "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	log.Printf("store driver: %s", cfg.Store.Driver)

	// Durable store: picked once, by configuration.
	var (
		userRepo    repository.UserRepo
		sessionRepo repository.SessionRepo
	)
	switch cfg.Store.Driver {
	case config.DriverMongo:
		mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			log.Fatal("Failed to connect to MongoDB:", err)
		}
		defer mongoClient.Disconnect(ctx)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := mongoClient.Ping(pingCtx, nil); err != nil {
			log.Fatal("Failed to ping MongoDB:", err)
		}
		log.Println("Connected to MongoDB")

		db := mongoClient.Database(cfg.Mongo.Database)
		userRepo = repository.NewMongoUserRepo(db)
		sessionRepo = repository.NewMongoSessionRepo(db)

	case config.DriverSQLite:
		db, err := repository.OpenSQLite(cfg.SQLite.Path)
		if err != nil {
			log.Fatal("Failed to open SQLite store:", err)
		}
		defer db.Close()
		log.Printf("Opened SQLite store at %s", cfg.SQLite.Path)

		userRepo = repository.NewSQLiteUserRepo(db)
		sessionRepo = repository.NewSQLiteSessionRepo(db)
	}

	// Redis connection
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	defer rdb.Close()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatal("Failed to ping Redis:", err)
	}
	log.Println("Connected to Redis")

	// Initialize WebSocket hub
	wsHub := ws.NewHub()
	log.Println("WebSocket hub started")

	// Initialize caches
	presenceCache := cache.NewPresenceCache(rdb)
	leaderboard := cache.NewLeaderboardCache(rdb)

	// Initialize service
	presenceSvc := service.NewPresenceService(userRepo, sessionRepo, presenceCache, leaderboard)
	presenceSvc.SetBroadcaster(wsHub)

	// Create router with container
	container := &rest.Container{
		PresenceService: presenceSvc,
		WSHub:           wsHub,
	}
	router := rest.NewRouter(container)

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on :%s", cfg.Port)
		log.Println("Endpoints:")
		log.Println("  POST /v1/users/init")
		log.Println("  POST /v1/users/{id}/heartbeat")
		log.Println("  POST /v1/users/{id}/stats")
		log.Println("  GET  /v1/users/{id}/rank")
		log.Println("  POST /v1/sessions")
		log.Println("  POST /v1/sessions/{id}/end")
		log.Println("  GET  /v1/leaderboard")
		log.Println("  WS   /v1/ws/presence")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("ListenAndServe:", err)
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
