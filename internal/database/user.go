package database

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hassanwarsame/quizduel/internal/auth"
	"github.com/hassanwarsame/quizduel/internal/models"
)

// defaultAvatars are assigned round-robin-by-chance to users who register
// without picking one.
var defaultAvatars = []string{
	"https://picsum.photos/seed/felix/150",
	"https://picsum.photos/seed/ane/150",
	"https://picsum.photos/seed/yo/150",
	"https://picsum.photos/seed/ma/150",
	"https://picsum.photos/seed/so/150",
	"https://picsum.photos/seed/li/150",
}

func CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate user id: %w", err)
		}
		user.ID = id
	}
	if user.Avatar == "" {
		user.Avatar = defaultAvatars[rand.Intn(len(defaultAvatars))]
	}

	if user.Password != "" {
		hash, err := auth.CreateHash(user.Password, auth.Params)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		user.Password = hash
	}

	q := `INSERT INTO users (id, email, password, name, avatar, points, is_ephemeral, is_admin)
	      VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q,
			user.ID, user.Email, user.Password, user.Name, user.Avatar,
			user.Points, user.IsEphemeral, user.IsAdmin,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	q := `
	SELECT id, email, password, name, avatar, points, is_ephemeral, is_admin
	FROM users
	WHERE email=$1
	`
	err := DB.QueryRow(ctx, q, email).Scan(
		&u.ID, &u.Email, &u.Password, &u.Name, &u.Avatar,
		&u.Points, &u.IsEphemeral, &u.IsAdmin,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	q := `
	SELECT id, email, password, name, avatar, points, is_ephemeral, is_admin
	FROM users
	WHERE id=$1
	`
	err := DB.QueryRow(ctx, q, id).Scan(
		&u.ID, &u.Email, &u.Password, &u.Name, &u.Avatar,
		&u.Points, &u.IsEphemeral, &u.IsAdmin,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func AuthenticateUser(ctx context.Context, email, password string) (string, error) {
	user, err := GetUserByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("user not found or db error: %w", err)
	}

	match, err := auth.ComparePasswordAndHash(password, user.Password)
	if err != nil || !match {
		return "", fmt.Errorf("invalid credentials")
	}

	token, err := auth.CreateJWT(user.ID.String())
	if err != nil {
		return "", fmt.Errorf("failed to create jwt: %w", err)
	}

	return token, nil
}
