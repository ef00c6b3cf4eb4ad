package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/AngiE300512/just-ease/internal/errs"
	"github.com/AngiE300512/just-ease/internal/model"
)

// PasskeyRepo implements repository.PasskeyRepository using PostgreSQL.
type PasskeyRepo struct{ db *DB }

// NewPasskeyRepo constructs a passkey repository.
func NewPasskeyRepo(db *DB) *PasskeyRepo { return &PasskeyRepo{db: db} }

// Upsert replaces the user's credential. Re-enrollment resets the counter.
func (r *PasskeyRepo) Upsert(ctx context.Context, c *model.PasskeyCredential) error {
	const q = `
INSERT INTO passkey_credentials (id, user_id, public_key, sign_count)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id) DO UPDATE
SET id = EXCLUDED.id, public_key = EXCLUDED.public_key, sign_count = EXCLUDED.sign_count,
    created_at = now(), updated_at = now()
RETURNING created_at, updated_at`
	err := r.db.Pool.QueryRow(ctx, q, c.ID, c.UserID, c.PublicKey, int64(c.SignCount)).Scan(&c.CreatedAt, &c.UpdatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetByUser loads the user's credential.
func (r *PasskeyRepo) GetByUser(ctx context.Context, userID uuid.UUID) (*model.PasskeyCredential, error) {
	const q = `
SELECT id, user_id, public_key, sign_count, created_at, updated_at
FROM passkey_credentials WHERE user_id=$1`
	return scanCredential(r.db.Pool.QueryRow(ctx, q, userID))
}

// GetByID loads a credential by ID.
func (r *PasskeyRepo) GetByID(ctx context.Context, id string) (*model.PasskeyCredential, error) {
	const q = `
SELECT id, user_id, public_key, sign_count, created_at, updated_at
FROM passkey_credentials WHERE id=$1`
	return scanCredential(r.db.Pool.QueryRow(ctx, q, id))
}

// AdvanceCounter performs a compare-and-set on the signature counter.
func (r *PasskeyRepo) AdvanceCounter(ctx context.Context, id string, prev, next uint32) error {
	const q = `
UPDATE passkey_credentials SET sign_count=$3, updated_at=now()
WHERE id=$1 AND sign_count=$2`
	tag, err := r.db.Pool.Exec(ctx, q, id, int64(prev), int64(next))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// StoreChallenge inserts an issued challenge.
func (r *PasskeyRepo) StoreChallenge(ctx context.Context, hash []byte, userID uuid.UUID, expiresAt time.Time) error {
	const q = `INSERT INTO passkey_challenges (hash, user_id, expires_at) VALUES ($1, $2, $3)`
	_, err := r.db.Pool.Exec(ctx, q, hash, userID, expiresAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// TakeChallenge deletes the challenge in one statement, so concurrent callers
// cannot both succeed.
func (r *PasskeyRepo) TakeChallenge(ctx context.Context, hash []byte, userID uuid.UUID, now time.Time) error {
	const q = `DELETE FROM passkey_challenges WHERE hash=$1 AND user_id=$2 AND expires_at > $3`
	tag, err := r.db.Pool.Exec(ctx, q, hash, userID, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// PurgeChallenges deletes expired challenge hashes.
func (r *PasskeyRepo) PurgeChallenges(ctx context.Context, t time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM passkey_challenges WHERE expires_at < $1`, t)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanCredential(row pgx.Row) (*model.PasskeyCredential, error) {
	var (
		c     model.PasskeyCredential
		count int64
	)
	err := row.Scan(&c.ID, &c.UserID, &c.PublicKey, &count, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if count < 0 || count > int64(^uint32(0)) {
		return nil, errs.ErrInvalidRecord
	}
	c.SignCount = uint32(count)
	return &c, nil
}
