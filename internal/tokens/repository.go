// Package tokens stores provider OAuth credentials per user. Refreshing them
// is the credential holder's job; this service only looks them up.
package tokens

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoCredentials is returned when a user has no stored provider credentials.
// Callers surface this as an authentication failure; it is never retried here.
var ErrNoCredentials = errors.New("tokens: no credentials for user")

// Credentials are a user's provider OAuth tokens.
type Credentials struct {
	UserEmail    string    `json:"user_email"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Repository handles credential persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a tokens repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByEmail returns credentials for a user email, or ErrNoCredentials.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*Credentials, error) {
	const q = `SELECT user_email, access_token, refresh_token, updated_at
		FROM user_tokens WHERE user_email = $1`
	var c Credentials
	err := r.pool.QueryRow(ctx, q, email).Scan(&c.UserEmail, &c.AccessToken, &c.RefreshToken, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoCredentials
		}
		return nil, err
	}
	return &c, nil
}

// Upsert stores or replaces a user's credentials.
func (r *Repository) Upsert(ctx context.Context, c *Credentials) error {
	const q = `INSERT INTO user_tokens (user_email, access_token, refresh_token, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_email) DO UPDATE
		SET access_token = EXCLUDED.access_token, refresh_token = EXCLUDED.refresh_token, updated_at = NOW()`
	_, err := r.pool.Exec(ctx, q, c.UserEmail, c.AccessToken, c.RefreshToken)
	return err
}
