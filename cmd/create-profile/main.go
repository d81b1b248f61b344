package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/sanjio/sanjio/internal/config"
	"github.com/sanjio/sanjio/internal/database"
	"github.com/sanjio/sanjio/internal/logger"
	"github.com/sanjio/sanjio/internal/model"
	"github.com/sanjio/sanjio/internal/repository"
)

func main() {
	admin := flag.Bool("admin", false, "Create an admin profile instead of a candidate")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, database.PoolOptions{AppName: "sanjio-create-profile", MaxConns: 2}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	profileRepo := repository.NewProfileRepository(pool)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	role := model.RoleCandidate
	if *admin {
		role = model.RoleAdmin
	}
	fmt.Printf("=== Create New %s Profile ===\n", role)

	fmt.Print("Enter Full Name: ")
	name, _ := reader.ReadString('\n')
	name = strings.TrimSpace(name)
	if name == "" {
		fmt.Println("Error: Name is required")
		os.Exit(1)
	}

	fmt.Print("Enter Email: ")
	email, _ := reader.ReadString('\n')
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") {
		fmt.Println("Error: A valid email is required")
		os.Exit(1)
	}

	fmt.Print("Enter Password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		fmt.Println("Error reading password")
		os.Exit(1)
	}
	if len(password) < 6 {
		fmt.Println("Error: Password must be at least 6 characters")
		os.Exit(1)
	}

	fmt.Print("Confirm Password: ")
	confirm, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil || string(confirm) != string(password) {
		fmt.Println("Error: Passwords do not match")
		os.Exit(1)
	}

	// ─── Logic ─────────────────────────────────────────────────────────
	hash, err := bcrypt.GenerateFromPassword(password, cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	profile := &model.Profile{
		Email:        email,
		FullName:     name,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := profileRepo.Create(ctx, profile); err != nil {
		log.Fatal().Err(err).Msg("Failed to create profile")
	}

	fmt.Printf("\nSuccess! %s '%s' (%s) created with ID: %s\n", role, profile.FullName, profile.Email, profile.ID)
}
