package main

import (
	"context"
	"errors"
	"os"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/danskode/mulle-i-hulen/internal/domain"
	"github.com/danskode/mulle-i-hulen/internal/repository"
	"github.com/danskode/mulle-i-hulen/internal/repository/postgres"
	"github.com/danskode/mulle-i-hulen/pkg/config"
	"github.com/danskode/mulle-i-hulen/pkg/crypto"
	"github.com/danskode/mulle-i-hulen/pkg/logger"
)

// seedPassword is the shared bootstrap password. Members are expected to
// change it through the reset flow after their first login.
const seedPassword = "Zappa1234"

type seedUser struct {
	username string
	email    string
	role     string
}

var seedUsers = []seedUser{
	{username: "bjorn", email: "bjorn@zappaklubben.dk", role: domain.RoleAdmin},
	{username: "steen", email: "steen@zappaklubben.dk", role: domain.RoleUser},
	{username: "mulle", email: "mulle@zappaklubben.dk", role: domain.RoleProspect},
}

func main() {
	cfg := config.LoadAPIConfig()
	log := logger.New("seed", slog.LevelInfo)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	repo := postgres.New(pool)

	hash, err := crypto.HashPassword(seedPassword, cfg.BcryptCost)
	if err != nil {
		log.Error("failed to hash seed password", "error", err)
		os.Exit(1)
	}

	for _, su := range seedUsers {
		user := &domain.User{
			ID:           uuid.NewString(),
			Username:     su.username,
			PasswordHash: hash,
			Email:        su.email,
			Role:         su.role,
			FirstLogin:   true,
			CreatedAt:    time.Now().UTC(),
		}
		if err := repo.CreateUser(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				log.Info("seed user already present", "username", su.username)
				continue
			}
			log.Error("failed to create seed user", "username", su.username, "error", err)
			os.Exit(1)
		}
		log.Info("seed user created", "username", su.username, "role", su.role)
	}

	log.Info("seeding complete")
}
