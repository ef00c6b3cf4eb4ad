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

// CaseworkerRepo implements repository.CaseworkerRepository using PostgreSQL.
type CaseworkerRepo struct{ db *DB }

// NewCaseworkerRepo constructs a caseworker repository.
func NewCaseworkerRepo(db *DB) *CaseworkerRepo { return &CaseworkerRepo{db: db} }

// Create inserts a caseworker and sets c.CreatedAt.
func (r *CaseworkerRepo) Create(ctx context.Context, c *model.Caseworker) error {
	const q = `
INSERT INTO caseworkers (id, email, name, organization, pwd_hash, salt_auth, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at`
	err := r.db.Pool.QueryRow(ctx, q, c.ID, c.Email, c.Name, c.Organization, c.PwdHash, c.SaltAuth, c.Active).
		Scan(&c.CreatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetByEmail selects a caseworker by email.
func (r *CaseworkerRepo) GetByEmail(ctx context.Context, email string) (*model.Caseworker, error) {
	const q = `
SELECT id, email, name, organization, pwd_hash, salt_auth, is_active, created_at
FROM caseworkers WHERE email=$1`
	var c model.Caseworker
	err := r.db.Pool.QueryRow(ctx, q, email).
		Scan(&c.ID, &c.Email, &c.Name, &c.Organization, &c.PwdHash, &c.SaltAuth, &c.Active, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateSession inserts a session row.
func (r *CaseworkerRepo) CreateSession(ctx context.Context, s *model.CaseworkerSession) error {
	const q = `
INSERT INTO caseworker_sessions (id, caseworker_id, created_at, expires_at)
VALUES ($1, $2, $3, $4)`
	_, err := r.db.Pool.Exec(ctx, q, s.ID, s.Caseworker.ID, s.CreatedAt, s.ExpiresAt)
	return err
}

// GetSession loads a session joined with its caseworker.
func (r *CaseworkerRepo) GetSession(ctx context.Context, id uuid.UUID) (*model.CaseworkerSession, error) {
	const q = `
SELECT s.id, s.created_at, s.expires_at, s.revoked_at,
       c.id, c.email, c.name, c.organization, c.is_active, c.created_at
FROM caseworker_sessions s JOIN caseworkers c ON c.id = s.caseworker_id
WHERE s.id=$1`
	var s model.CaseworkerSession
	c := &s.Caseworker
	err := r.db.Pool.QueryRow(ctx, q, id).Scan(&s.ID, &s.CreatedAt, &s.ExpiresAt, &s.RevokedAt,
		&c.ID, &c.Email, &c.Name, &c.Organization, &c.Active, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// RevokeSession sets revoked_at on a live session.
func (r *CaseworkerRepo) RevokeSession(ctx context.Context, id uuid.UUID, t time.Time) error {
	const q = `UPDATE caseworker_sessions SET revoked_at=$2 WHERE id=$1 AND revoked_at IS NULL`
	tag, err := r.db.Pool.Exec(ctx, q, id, t)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
