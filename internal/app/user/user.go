/*
Package user owns user accounts: the users table, credential storage, and
the profile view returned by the REST surface.
*/
package user

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// User is the structured view of a users row. PasswordHash never leaves
// the package boundary in API responses.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"fullName,omitempty"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	LastSeenAt   time.Time `json:"lastSeenAt,omitempty"`
}

// PgStore reads and writes user accounts in PostgreSQL.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore builds a user store over the shared connection pool.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// Create inserts a new account and returns it with the assigned id.
// A duplicate username surfaces as a unique violation from the driver.
func (s *PgStore) Create(ctx context.Context, username, passwordHash, fullName string) (User, error) {
	u := User{Username: username, PasswordHash: passwordHash, FullName: fullName, IsActive: true}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (username, password_hash, full_name)
		VALUES ($1, $2, NULLIF($3, ''))
		RETURNING id, created_at`,
		username, passwordHash, fullName,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return User{}, err
	}

	return u, nil
}

// GetByUsername fetches an active account by login name.
func (s *PgStore) GetByUsername(ctx context.Context, username string) (User, error) {
	return s.scanOne(ctx, `
		SELECT id, username, password_hash, COALESCE(full_name, ''), is_active,
		       created_at, COALESCE(last_seen_at, 'epoch'::timestamptz)
		FROM users
		WHERE username = $1 AND is_active`, username)
}

// GetByID fetches an account by id, active or not.
func (s *PgStore) GetByID(ctx context.Context, id int64) (User, error) {
	return s.scanOne(ctx, `
		SELECT id, username, password_hash, COALESCE(full_name, ''), is_active,
		       created_at, COALESCE(last_seen_at, 'epoch'::timestamptz)
		FROM users
		WHERE id = $1`, id)
}

// SearchByUsername returns active accounts whose username starts with the
// given prefix, ordered by name. Password hashes are never loaded.
func (s *PgStore) SearchByUsername(ctx context.Context, prefix string, limit int32) ([]User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, username, COALESCE(full_name, ''), is_active, created_at
		FROM users
		WHERE username LIKE $1 || '%' AND is_active
		ORDER BY username
		LIMIT $2`, prefix, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.FullName, &u.IsActive, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// TouchLastSeen stamps the account's last_seen_at. Best effort; callers log
// and move on.
func (s *PgStore) TouchLastSeen(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET last_seen_at = now() WHERE id = $1`, id)
	return err
}

func (s *PgStore) scanOne(ctx context.Context, query string, arg any) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx, query, arg).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.FullName, &u.IsActive, &u.CreatedAt, &u.LastSeenAt)
	if err != nil {
		return User{}, err
	}
	return u, nil
}
