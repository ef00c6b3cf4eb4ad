package postgres

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/AngiE300512/just-ease/internal/model"
)

// GrantRepo implements repository.GrantRepository using PostgreSQL. It only ever inserts.
type GrantRepo struct{ db *DB }

// NewGrantRepo constructs an access-grant repository.
func NewGrantRepo(db *DB) *GrantRepo { return &GrantRepo{db: db} }

// Append inserts one grant row.
func (r *GrantRepo) Append(ctx context.Context, g *model.AccessGrant) error {
	const q = `
INSERT INTO document_access_logs (caseworker_id, beneficiary_id, document_id, access_type)
VALUES ($1, $2, $3, $4)
RETURNING id, accessed_at`
	var doc any
	if g.DocumentID != nil {
		doc = *g.DocumentID
	}
	return r.db.Pool.QueryRow(ctx, q, g.CaseworkerID, g.BeneficiaryID, doc, string(g.AccessType)).
		Scan(&g.ID, &g.AccessedAt)
}

// ListByBeneficiary returns the newest grants first.
func (r *GrantRepo) ListByBeneficiary(ctx context.Context, beneficiaryID uuid.UUID, limit int) ([]model.AccessGrant, error) {
	const q = `
SELECT id, caseworker_id, beneficiary_id, document_id, access_type, accessed_at
FROM document_access_logs
WHERE beneficiary_id=$1
ORDER BY accessed_at DESC, id DESC
LIMIT $2`
	rows, err := r.db.Pool.Query(ctx, q, beneficiaryID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.AccessGrant{}
	for rows.Next() {
		var (
			g   model.AccessGrant
			doc uuid.NullUUID
			typ string
		)
		if err := rows.Scan(&g.ID, &g.CaseworkerID, &g.BeneficiaryID, &doc, &typ, &g.AccessedAt); err != nil {
			return nil, err
		}
		if doc.Valid {
			id := doc.UUID
			g.DocumentID = &id
		}
		if g.AccessType, err = model.ParseAccessType(typ); err != nil {
			return nil, fmt.Errorf("grant %d: %w", g.ID, err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
