package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/covestack/covestack/pkg/logger"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("auth: user not found")

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type Repository struct {
	DB *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{DB: db}
}

// UpsertUser finds or creates the user by email, refreshing the display name.
func (r *Repository) UpsertUser(ctx context.Context, email, name string) (*User, error) {
	var u User
	err := r.DB.QueryRowContext(ctx,
		`INSERT INTO users (id, email, name, created_at) VALUES ($1, $2, NULLIF($3, ''), NOW())
		 ON CONFLICT (email) DO UPDATE SET name = COALESCE(NULLIF(EXCLUDED.name, ''), users.name)
		 RETURNING id, email, COALESCE(name, ''), created_at`,
		uuid.NewString(), email, name).
		Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt)
	if err != nil {
		logger.Sugar.Errorf("Failed to upsert user %s: %v", email, err)
		return nil, err
	}
	return &u, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*User, error) {
	var u User
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, email, COALESCE(name, ''), created_at FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to load user %s: %v", id, err)
		return nil, err
	}
	return &u, nil
}
