package flag

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	id "flagledger/pkg/domain"
	"flagledger/pkg/platform/sentinel"
)

// PostgresFlagStore persists flags in Postgres. The seq column fixes the FIFO
// order used by sender-scoped approval; submitted_at alone is not a total
// order under concurrent inserts.
type PostgresFlagStore struct {
	db *sql.DB
}

func NewPostgresFlagStore(db *sql.DB) *PostgresFlagStore {
	return &PostgresFlagStore{db: db}
}

const flagColumns = `id, from_user, to_user, red, review, sealed, category, severity, encrypted, visible, submitted_at, approved_at`

func (s *PostgresFlagStore) Append(ctx context.Context, f Flag) error {
	const q = `
		INSERT INTO flags (` + flagColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := s.db.ExecContext(ctx, q,
		f.ID.String(), f.From.String(), f.To.String(), f.Red, f.Review, f.Sealed,
		string(f.Category), f.Severity, f.Encrypted, f.Visible, f.SubmittedAt, f.ApprovedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert flag: %w", err)
	}
	return nil
}

const uniqueViolation = "23505"

func (s *PostgresFlagStore) scanFlag(row *sql.Row) (Flag, error) {
	var (
		f          Flag
		rawID      string
		rawFrom    string
		rawTo      string
		rawCat     string
		approvedAt sql.NullTime
	)
	err := row.Scan(&rawID, &rawFrom, &rawTo, &f.Red, &f.Review, &f.Sealed,
		&rawCat, &f.Severity, &f.Encrypted, &f.Visible, &f.SubmittedAt, &approvedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Flag{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Flag{}, fmt.Errorf("scan flag: %w", err)
	}
	return hydrate(f, rawID, rawFrom, rawTo, rawCat, approvedAt)
}

// hydrate finishes decoding string columns into typed IDs. The anonymous
// sender is the nil UUID, which ParseUserID rejects, so it is special-cased.
func hydrate(f Flag, rawID, rawFrom, rawTo, rawCat string, approvedAt sql.NullTime) (Flag, error) {
	flagID, err := id.ParseFlagID(rawID)
	if err != nil {
		return Flag{}, fmt.Errorf("corrupt flag id %q: %w", rawID, err)
	}
	f.ID = flagID

	if rawFrom == id.AnonymousUser.String() {
		f.From = id.AnonymousUser
	} else {
		from, err := id.ParseUserID(rawFrom)
		if err != nil {
			return Flag{}, fmt.Errorf("corrupt sender id %q: %w", rawFrom, err)
		}
		f.From = from
	}

	to, err := id.ParseUserID(rawTo)
	if err != nil {
		return Flag{}, fmt.Errorf("corrupt recipient id %q: %w", rawTo, err)
	}
	f.To = to
	f.Category = id.Category(rawCat)
	if approvedAt.Valid {
		t := approvedAt.Time
		f.ApprovedAt = &t
	}
	return f, nil
}

func (s *PostgresFlagStore) FindByID(ctx context.Context, flagID id.FlagID) (Flag, error) {
	const q = `SELECT ` + flagColumns + ` FROM flags WHERE id = $1`
	return s.scanFlag(s.db.QueryRowContext(ctx, q, flagID.String()))
}

func (s *PostgresFlagStore) ListByRecipient(ctx context.Context, userID id.UserID) ([]Flag, error) {
	const q = `SELECT ` + flagColumns + ` FROM flags WHERE to_user = $1 ORDER BY seq`
	rows, err := s.db.QueryContext(ctx, q, userID.String())
	if err != nil {
		return nil, fmt.Errorf("select flags: %w", err)
	}
	defer rows.Close()

	var out []Flag
	for rows.Next() {
		var (
			f          Flag
			rawID      string
			rawFrom    string
			rawTo      string
			rawCat     string
			approvedAt sql.NullTime
		)
		err := rows.Scan(&rawID, &rawFrom, &rawTo, &f.Red, &f.Review, &f.Sealed,
			&rawCat, &f.Severity, &f.Encrypted, &f.Visible, &f.SubmittedAt, &approvedAt)
		if err != nil {
			return nil, fmt.Errorf("scan flag: %w", err)
		}
		f, err = hydrate(f, rawID, rawFrom, rawTo, rawCat, approvedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate flags: %w", err)
	}
	return out, nil
}

func (s *PostgresFlagStore) MarkVisible(ctx context.Context, flagID id.FlagID) error {
	const q = `
		UPDATE flags
		SET visible = TRUE, approved_at = NOW()
		WHERE id = $1 AND visible = FALSE`
	res, err := s.db.ExecContext(ctx, q, flagID.String())
	if err != nil {
		return fmt.Errorf("mark flag visible: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark flag visible rows: %w", err)
	}
	if affected == 1 {
		return nil
	}
	if _, err := s.FindByID(ctx, flagID); err != nil {
		return err
	}
	return sentinel.ErrInvalidState
}

func (s *PostgresFlagStore) FirstPendingFrom(ctx context.Context, from, to id.UserID) (Flag, error) {
	const q = `
		SELECT ` + flagColumns + `
		FROM flags
		WHERE from_user = $1 AND to_user = $2 AND visible = FALSE
		ORDER BY seq
		LIMIT 1`
	return s.scanFlag(s.db.QueryRowContext(ctx, q, from.String(), to.String()))
}

func (s *PostgresFlagStore) Totals(ctx context.Context) (Totals, error) {
	const q = `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE red),
			COUNT(*) FILTER (WHERE NOT red),
			COUNT(*) FILTER (WHERE visible)
		FROM flags`
	var t Totals
	if err := s.db.QueryRowContext(ctx, q).Scan(&t.Total, &t.Red, &t.Green, &t.Visible); err != nil {
		return Totals{}, fmt.Errorf("count flags: %w", err)
	}
	return t, nil
}

// Migrate creates the flags schema. Idempotent.
func (s *PostgresFlagStore) Migrate(ctx context.Context) error {
	const q = `
		CREATE TABLE IF NOT EXISTS flags (
			id           UUID PRIMARY KEY,
			seq          BIGSERIAL,
			from_user    UUID NOT NULL,
			to_user      UUID NOT NULL,
			red          BOOLEAN NOT NULL,
			review       TEXT NOT NULL DEFAULT '',
			sealed       BYTEA,
			category     TEXT NOT NULL,
			severity     INTEGER NOT NULL DEFAULT 0,
			encrypted    BOOLEAN NOT NULL DEFAULT FALSE,
			visible      BOOLEAN NOT NULL DEFAULT FALSE,
			submitted_at TIMESTAMPTZ NOT NULL,
			approved_at  TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS flags_to_user_idx ON flags (to_user, seq);
		CREATE INDEX IF NOT EXISTS flags_pending_idx ON flags (from_user, to_user) WHERE NOT visible;`
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("migrate flags schema: %w", err)
	}
	return nil
}
