// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/AngiE300512/just-ease/internal/model"
)

// UserRepository provides access to beneficiary accounts.
type UserRepository interface {
	// Create inserts a new user; a taken email or UDID number yields errs.ErrAlreadyExists.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByEmail loads a user by login email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// GetByUDID loads a user by the shared identifier caseworkers search with.
	GetByUDID(ctx context.Context, udid string) (*model.User, error)
}
