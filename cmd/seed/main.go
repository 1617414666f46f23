package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"stillmind/internal/cache"
	"stillmind/internal/config"
	"stillmind/internal/model"
	"stillmind/internal/namegen"
	"stillmind/internal/repository"
)

// Seeds demo users with plausible lifetime totals so a fresh install has a
// leaderboard worth looking at.
func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML config")
	count := flag.Int("count", 25, "number of demo users")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	ctx := context.Background()

	var users repository.UserRepo
	switch cfg.Store.Driver {
	case config.DriverMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			log.Fatal("Failed to connect to MongoDB:", err)
		}
		defer client.Disconnect(ctx)
		users = repository.NewMongoUserRepo(client.Database(cfg.Mongo.Database))
	case config.DriverSQLite:
		db, err := repository.OpenSQLite(cfg.SQLite.Path)
		if err != nil {
			log.Fatal("Failed to open SQLite store:", err)
		}
		defer db.Close()
		users = repository.NewSQLiteUserRepo(db)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	defer rdb.Close()
	leaderboard := cache.NewLeaderboardCache(rdb)

	for i := 0; i < *count; i++ {
		sessions := 1 + rand.Intn(200)
		total := sessions * (300 + rand.Intn(2400))
		now := time.Now().Add(-time.Duration(rand.Intn(72)) * time.Hour)

		u := &model.User{
			ID:            "u_" + uuid.New().String()[:8],
			DisplayName:   namegen.Generate(),
			TotalSeconds:  total,
			SessionsCount: sessions,
			LastSeenAt:    now,
			CreatedAt:     now.Add(-time.Duration(sessions) * time.Hour),
		}
		if err := users.Create(ctx, u); err != nil {
			log.Fatal("Failed to create user:", err)
		}
		if err := leaderboard.UpdateScore(ctx, u.ID, u.TotalSeconds); err != nil {
			log.Printf("leaderboard update: %v (continuing)", err)
		}
	}
	log.Printf("Seeded %d users", *count)
}
