package postgres

import (
	"context"
	"time"

	"github.com/AngiE300512/just-ease/internal/errs"
)

// LinkRepo implements repository.LinkRepository using PostgreSQL.
type LinkRepo struct{ db *DB }

// NewLinkRepo constructs a download-link repository.
func NewLinkRepo(db *DB) *LinkRepo { return &LinkRepo{db: db} }

// Redeem inserts the link ID once; the primary key settles concurrent fetches.
func (r *LinkRepo) Redeem(ctx context.Context, linkID string, expiresAt time.Time) error {
	const q = `INSERT INTO redeemed_links (id, expires_at) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`
	tag, err := r.db.Pool.Exec(ctx, q, linkID, expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrAlreadyExists
	}
	return nil
}

// PurgeLinks deletes redemptions whose links can no longer be presented.
func (r *LinkRepo) PurgeLinks(ctx context.Context, t time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM redeemed_links WHERE expires_at < $1`, t)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
