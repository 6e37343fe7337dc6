package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	id "flagledger/pkg/domain"
	"flagledger/pkg/platform/sentinel"
)

// PostgresUserStore persists users and matches in Postgres. Reputation clamping
// happens in SQL so concurrent adjustments stay correct without row locking in
// the application.
type PostgresUserStore struct {
	db *sql.DB
}

func NewPostgresUserStore(db *sql.DB) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func (s *PostgresUserStore) Create(ctx context.Context, user User) error {
	const q = `
		INSERT INTO users (id, verified, reputation, registered_at, verified_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := s.db.ExecContext(ctx, q,
		user.ID.String(), user.Verified, user.Reputation, user.RegisteredAt, user.VerifiedAt)
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresUserStore) FindByID(ctx context.Context, userID id.UserID) (User, error) {
	const q = `
		SELECT id, verified, reputation, registered_at, verified_at
		FROM users WHERE id = $1`
	var (
		rawID      string
		user       User
		verifiedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, q, userID.String()).
		Scan(&rawID, &user.Verified, &user.Reputation, &user.RegisteredAt, &verifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, sentinel.ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("select user: %w", err)
	}
	parsed, err := id.ParseUserID(rawID)
	if err != nil {
		return User{}, fmt.Errorf("corrupt user id %q: %w", rawID, err)
	}
	user.ID = parsed
	if verifiedAt.Valid {
		t := verifiedAt.Time
		user.VerifiedAt = &t
	}
	return user, nil
}

func (s *PostgresUserStore) SetVerified(ctx context.Context, userID id.UserID, at time.Time, reputation int) error {
	const q = `
		UPDATE users
		SET verified = TRUE, verified_at = $2, reputation = $3
		WHERE id = $1 AND verified = FALSE`
	res, err := s.db.ExecContext(ctx, q, userID.String(), at, reputation)
	if err != nil {
		return fmt.Errorf("verify user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("verify user rows: %w", err)
	}
	if affected == 1 {
		return nil
	}
	// Row untouched: either the user is missing or already verified.
	if _, err := s.FindByID(ctx, userID); err != nil {
		return err
	}
	return sentinel.ErrInvalidState
}

func (s *PostgresUserStore) CreateMatch(ctx context.Context, a, b id.UserID) error {
	low, high := a.String(), b.String()
	if low > high {
		low, high = high, low
	}
	const q = `
		INSERT INTO matches (user_low, user_high, matched_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_low, user_high) DO NOTHING`
	_, err := s.db.ExecContext(ctx, q, low, high)
	if err != nil {
		var pqErr *pq.Error
		// 23503: one of the pair does not exist.
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("insert match: %w", err)
	}
	return nil
}

func (s *PostgresUserStore) HasMatched(ctx context.Context, a, b id.UserID) (bool, error) {
	low, high := a.String(), b.String()
	if low > high {
		low, high = high, low
	}
	const q = `SELECT EXISTS (SELECT 1 FROM matches WHERE user_low = $1 AND user_high = $2)`
	var matched bool
	if err := s.db.QueryRowContext(ctx, q, low, high).Scan(&matched); err != nil {
		return false, fmt.Errorf("select match: %w", err)
	}
	return matched, nil
}

func (s *PostgresUserStore) AdjustReputation(ctx context.Context, userID id.UserID, delta int) (int, error) {
	const q = `
		UPDATE users
		SET reputation = GREATEST(0, reputation + $2)
		WHERE id = $1
		RETURNING reputation`
	var reputation int
	err := s.db.QueryRowContext(ctx, q, userID.String(), delta).Scan(&reputation)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, sentinel.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("adjust reputation: %w", err)
	}
	return reputation, nil
}

// Migrate creates the registry schema. Idempotent.
func (s *PostgresUserStore) Migrate(ctx context.Context) error {
	const q = `
		CREATE TABLE IF NOT EXISTS users (
			id            UUID PRIMARY KEY,
			verified      BOOLEAN NOT NULL DEFAULT FALSE,
			reputation    INTEGER NOT NULL DEFAULT 0,
			registered_at TIMESTAMPTZ NOT NULL,
			verified_at   TIMESTAMPTZ
		);
		CREATE TABLE IF NOT EXISTS matches (
			user_low   UUID NOT NULL REFERENCES users (id),
			user_high  UUID NOT NULL REFERENCES users (id),
			matched_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (user_low, user_high)
		);`
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("migrate registry schema: %w", err)
	}
	return nil
}
