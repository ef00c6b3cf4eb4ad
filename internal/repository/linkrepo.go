package repository

import (
	"context"
	"time"
)

// LinkRepository remembers redeemed download links until they expire.
type LinkRepository interface {
	// Redeem marks the link ID as used. A link redeemed before yields errs.ErrAlreadyExists.
	Redeem(ctx context.Context, linkID string, expiresAt time.Time) error
	// PurgeLinks drops redemptions of links that expired before t.
	PurgeLinks(ctx context.Context, t time.Time) (int64, error)
}
