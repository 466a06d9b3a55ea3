package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MrJamesThe3rd/pharmacy/internal/apperr"
	"github.com/MrJamesThe3rd/pharmacy/internal/auth"
	"github.com/MrJamesThe3rd/pharmacy/internal/database"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	var (
		u    auth.User
		role string
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, role, created_at
		FROM users
		WHERE email = $1`, email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("user")
	}

	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}

	u.Role = auth.Role(role)

	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *auth.User) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash, role)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		u.Email, u.PasswordHash, string(u.Role),
	).Scan(&u.ID, &u.CreatedAt)
	if _, ok := database.UniqueViolation(err); ok {
		return apperr.Conflict("user %s already exists", u.Email)
	}

	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}

	return nil
}
