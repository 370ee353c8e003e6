package database

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var DB *pgxpool.Pool

func ConnectDB() {
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		os.Getenv("POSTGRES_USER"),
		os.Getenv("POSTGRES_PASSWORD"),
		os.Getenv("PG_HOST"),
		os.Getenv("PG_PORT"),
		os.Getenv("PG_DATABASE"),
	)

	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		log.Fatalf("unable to parse pgx config: %v", err)
	}

	DB, err = pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		log.Fatalf("unable to create pgx pool: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := DB.Ping(ctx); err != nil {
		log.Fatalf("db ping error: %v", err)
	}

	log.Printf("Connected to database at %s:%s", os.Getenv("PG_HOST"), os.Getenv("PG_PORT"))
}

// EnsureSchema creates the tables the service needs if they do not exist.
func EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			email TEXT UNIQUE,
			password TEXT,
			name TEXT NOT NULL,
			avatar TEXT NOT NULL DEFAULT '',
			points INTEGER NOT NULL DEFAULT 0,
			is_ephemeral BOOLEAN NOT NULL DEFAULT false,
			is_admin BOOLEAN NOT NULL DEFAULT false
		)`,
		`CREATE TABLE IF NOT EXISTS match_credits (
			match_id UUID PRIMARY KEY,
			credited_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS match_history (
			match_id UUID PRIMARY KEY,
			subject TEXT NOT NULL,
			player1 UUID NOT NULL,
			player2 UUID NOT NULL,
			score1 INTEGER NOT NULL,
			score2 INTEGER NOT NULL,
			winner TEXT NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS questions (
			id TEXT PRIMARY KEY,
			prompt TEXT NOT NULL,
			options TEXT[] NOT NULL,
			correct INTEGER NOT NULL,
			subject TEXT NOT NULL
		)`,
	}
	for _, q := range stmts {
		if _, err := DB.Exec(ctx, q); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}
