package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/AngiE300512/just-ease/internal/model"
)

// PasskeyRepository stores enrolled platform credentials, one per user.
type PasskeyRepository interface {
	// Upsert stores c as the user's credential, replacing any previous one. A credential ID
	// already owned by another user yields errs.ErrAlreadyExists.
	Upsert(ctx context.Context, c *model.PasskeyCredential) error
	// GetByUser loads the credential enrolled by a user.
	GetByUser(ctx context.Context, userID uuid.UUID) (*model.PasskeyCredential, error)
	// GetByID loads a credential by its base64url identifier.
	GetByID(ctx context.Context, id string) (*model.PasskeyCredential, error)
	// AdvanceCounter moves the signature counter from prev to next. It yields errs.ErrNotFound
	// when the stored counter is no longer prev.
	AdvanceCounter(ctx context.Context, id string, prev, next uint32) error
	// StoreChallenge records an issued challenge hash for a user until expiresAt.
	StoreChallenge(ctx context.Context, hash []byte, userID uuid.UUID, expiresAt time.Time) error
	// TakeChallenge deletes the user's challenge with this hash if it is still valid at now.
	// A missing, expired or already taken challenge yields errs.ErrNotFound.
	TakeChallenge(ctx context.Context, hash []byte, userID uuid.UUID, now time.Time) error
	// PurgeChallenges drops issued challenges that expired before t.
	PurgeChallenges(ctx context.Context, t time.Time) (int64, error)
}
