package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/AngiE300512/just-ease/internal/errs"
	"github.com/AngiE300512/just-ease/internal/model"
)

// DocumentRepo implements repository.DocumentRepository using PostgreSQL.
type DocumentRepo struct{ db *DB }

// NewDocumentRepo constructs a document repository.
func NewDocumentRepo(db *DB) *DocumentRepo { return &DocumentRepo{db: db} }

const documentCols = `id, user_id, category, file_name, file_ref, content_type, size_bytes, uploaded_at, verified`

// Replace inserts the document or overwrites the owner's row for the same category.
// On overwrite d.ID takes the existing row's ID and the previous row is returned.
func (r *DocumentRepo) Replace(ctx context.Context, d *model.Document) (*model.Document, error) {
	prev, err := r.replace(ctx, d)
	if errors.Is(err, errs.ErrAlreadyExists) {
		// A concurrent first upload for the category committed after our SELECT
		// found nothing to lock. The second pass sees its row and overwrites it.
		prev, err = r.replace(ctx, d)
	}
	return prev, err
}

func (r *DocumentRepo) replace(ctx context.Context, d *model.Document) (prev *model.Document, err error) {
	err = r.db.inTx(ctx, func(tx pgx.Tx) error {
		const sel = `SELECT ` + documentCols + ` FROM documents WHERE user_id=$1 AND category=$2 FOR UPDATE`
		old, err := scanDocument(tx.QueryRow(ctx, sel, d.OwnerID, string(d.Category)))
		switch {
		case err == nil:
			const upd = `
UPDATE documents
SET file_name=$3, file_ref=$4, content_type=$5, size_bytes=$6, uploaded_at=$7, verified=false
WHERE id=$1 AND user_id=$2`
			d.ID = old.ID
			d.Verified = false
			if _, err := tx.Exec(ctx, upd, d.ID, d.OwnerID, d.FileName, d.FileRef, d.ContentType, d.Size, d.UploadedAt); err != nil {
				return err
			}
			prev = old
			return nil
		case errors.Is(err, errs.ErrNotFound):
			const ins = `
INSERT INTO documents (id, user_id, category, file_name, file_ref, content_type, size_bytes, uploaded_at, verified)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false)`
			_, err := tx.Exec(ctx, ins, d.ID, d.OwnerID, string(d.Category), d.FileName, d.FileRef, d.ContentType, d.Size, d.UploadedAt)
			if isUniqueViolation(err) {
				return errs.ErrAlreadyExists
			}
			return err
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	return prev, nil
}

// List returns the owner's documents ordered by upload time, newest first.
func (r *DocumentRepo) List(ctx context.Context, ownerID uuid.UUID) ([]model.Document, error) {
	const q = `SELECT ` + documentCols + ` FROM documents WHERE user_id=$1 ORDER BY uploaded_at DESC`
	rows, err := r.db.Pool.Query(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// Get returns a single document of the owner.
func (r *DocumentRepo) Get(ctx context.Context, ownerID, id uuid.UUID) (*model.Document, error) {
	const q = `SELECT ` + documentCols + ` FROM documents WHERE user_id=$1 AND id=$2`
	return scanDocument(r.db.Pool.QueryRow(ctx, q, ownerID, id))
}

// Delete removes a document of the owner and returns it.
func (r *DocumentRepo) Delete(ctx context.Context, ownerID, id uuid.UUID) (*model.Document, error) {
	const q = `DELETE FROM documents WHERE user_id=$1 AND id=$2 RETURNING ` + documentCols
	return scanDocument(r.db.Pool.QueryRow(ctx, q, ownerID, id))
}

// scanDocument decodes a row into the strict document type.
func scanDocument(row pgx.Row) (*model.Document, error) {
	var (
		d   model.Document
		cat string
	)
	err := row.Scan(&d.ID, &d.OwnerID, &cat, &d.FileName, &d.FileRef, &d.ContentType, &d.Size, &d.UploadedAt, &d.Verified)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if d.Category, err = model.ParseCategory(cat); err != nil {
		return nil, fmt.Errorf("document %s: %w", d.ID, err)
	}
	return &d, nil
}
