package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/AngiE300512/just-ease/internal/model"
)

// DocumentRepository provides access to vault document rows.
type DocumentRepository interface {
	// Replace stores d as the owner's document for d.Category. An existing row for the same
	// category is overwritten in place (keeping its ID) and returned so its blob can be removed.
	Replace(ctx context.Context, d *model.Document) (prev *model.Document, err error)
	// List returns the owner's documents, newest upload first.
	List(ctx context.Context, ownerID uuid.UUID) ([]model.Document, error)
	// Get returns one document of the owner.
	Get(ctx context.Context, ownerID, id uuid.UUID) (*model.Document, error)
	// Delete removes one document of the owner and returns the deleted row.
	Delete(ctx context.Context, ownerID, id uuid.UUID) (*model.Document, error)
}
