package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/AngiE300512/just-ease/internal/model"
)

// CaseworkerRepository provides access to caseworker accounts and their sessions.
type CaseworkerRepository interface {
	// Create inserts a caseworker; a taken email yields errs.ErrAlreadyExists.
	Create(ctx context.Context, c *model.Caseworker) error
	// GetByEmail loads a caseworker by login email, active or not.
	GetByEmail(ctx context.Context, email string) (*model.Caseworker, error)
	// CreateSession persists a new session.
	CreateSession(ctx context.Context, s *model.CaseworkerSession) error
	// GetSession loads a session together with its caseworker.
	GetSession(ctx context.Context, id uuid.UUID) (*model.CaseworkerSession, error)
	// RevokeSession marks a session revoked at t. Revoking twice yields errs.ErrNotFound.
	RevokeSession(ctx context.Context, id uuid.UUID, t time.Time) error
}

// GrantRepository is the append-only caseworker access log.
type GrantRepository interface {
	// Append writes g and fills in its ID and AccessedAt.
	Append(ctx context.Context, g *model.AccessGrant) error
	// ListByBeneficiary returns the newest grants on a beneficiary's documents.
	ListByBeneficiary(ctx context.Context, beneficiaryID uuid.UUID, limit int) ([]model.AccessGrant, error)
}
