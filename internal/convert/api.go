// Package convert maps domain records to wire types and back.
package convert

import (
	"fmt"
	"time"

	u "github.com/gofrs/uuid/v5"

	"github.com/AngiE300512/just-ease/internal/api"
	"github.com/AngiE300512/just-ease/internal/errs"
	model "github.com/AngiE300512/just-ease/internal/model"
	"github.com/AngiE300512/just-ease/internal/passkey"
	"github.com/AngiE300512/just-ease/internal/service"
)

// --- helpers ---

func optTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// ParseID decodes a UUID sent by a client; malformed input is a validation error.
func ParseID(s, field string) (u.UUID, error) {
	id, err := u.FromString(s)
	if err != nil || id == u.Nil {
		return u.Nil, fmt.Errorf("%w: invalid %s", errs.ErrValidation, field)
	}
	return id, nil
}

// --- accounts ---

// ToProfile exposes the beneficiary's own record without credentials.
func ToProfile(m *model.User) *api.Profile {
	return &api.Profile{
		UserID:     m.ID.String(),
		Email:      m.Email,
		FullName:   m.FullName,
		Phone:      m.Phone,
		UDIDNumber: m.UDIDNumber,
		CreatedAt:  m.CreatedAt,
	}
}

// ToPasskeyStatus reports an enrolled credential; nil means not enrolled.
func ToPasskeyStatus(c *model.PasskeyCredential) *api.PasskeyStatus {
	if c == nil {
		return &api.PasskeyStatus{}
	}
	return &api.PasskeyStatus{
		Enrolled:     true,
		CredentialID: c.ID,
		SignCount:    c.SignCount,
		UpdatedAt:    optTime(c.UpdatedAt),
	}
}

// ToVerifyRequest wraps a client assertion for the wire.
func ToVerifyRequest(a *passkey.Assertion) *api.VerifyPasskeyRequest {
	return &api.VerifyPasskeyRequest{
		CredentialID:      a.CredentialID,
		Signature:         a.Signature,
		AuthenticatorData: a.AuthenticatorData,
		ClientDataJSON:    a.ClientDataJSON,
	}
}

// FromVerifyRequest unwraps an assertion received by the server.
func FromVerifyRequest(in *api.VerifyPasskeyRequest) passkey.Assertion {
	return passkey.Assertion{
		CredentialID:      in.CredentialID,
		Signature:         in.Signature,
		AuthenticatorData: in.AuthenticatorData,
		ClientDataJSON:    in.ClientDataJSON,
	}
}

// --- documents ---

// ToDocument converts a domain document; the blob path never leaves the server.
func ToDocument(d model.Document) api.Document {
	return api.Document{
		ID:          d.ID.String(),
		Category:    string(d.Category),
		Label:       d.Category.Label(),
		FileName:    d.FileName,
		ContentType: d.ContentType,
		Size:        d.Size,
		UploadedAt:  d.UploadedAt,
		Verified:    d.Verified,
	}
}

// ToDocuments converts a list, keeping order. The result is never nil.
func ToDocuments(ds []model.Document) []api.Document {
	out := make([]api.Document, 0, len(ds))
	for _, d := range ds {
		out = append(out, ToDocument(d))
	}
	return out
}

// FromDocument converts a wire document back into the strict domain type.
// Unknown categories are rejected with errs.ErrInvalidRecord.
func FromDocument(in api.Document) (model.Document, error) {
	id, err := u.FromString(in.ID)
	if err != nil {
		return model.Document{}, fmt.Errorf("%w: document id %q", errs.ErrInvalidRecord, in.ID)
	}
	cat, err := model.ParseCategory(in.Category)
	if err != nil {
		return model.Document{}, err
	}
	return model.Document{
		ID:          id,
		Category:    cat,
		FileName:    in.FileName,
		ContentType: in.ContentType,
		Size:        in.Size,
		UploadedAt:  in.UploadedAt,
		Verified:    in.Verified,
	}, nil
}

// FromDocuments converts a wire list, stopping at the first bad entry.
func FromDocuments(in []api.Document) ([]model.Document, error) {
	out := make([]model.Document, 0, len(in))
	for i, d := range in {
		m, err := FromDocument(d)
		if err != nil {
			return nil, fmt.Errorf("document[%d]: %w", i, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// ToChecklist converts the dossier completion state.
func ToChecklist(c *service.Checklist) *api.Checklist {
	out := &api.Checklist{
		Items:    make([]api.ChecklistItem, 0, len(c.Items)),
		Uploaded: c.Uploaded,
		Required: c.Required,
		Percent:  c.Percent,
	}
	for _, it := range c.Items {
		ci := api.ChecklistItem{
			Category: string(it.Category),
			Label:    it.Label,
			Uploaded: it.Uploaded(),
			Verified: it.Verified,
		}
		if it.DocumentID != nil {
			ci.DocumentID = it.DocumentID.String()
		}
		out.Items = append(out.Items, ci)
	}
	return out
}

// --- caseworker handshake ---

// ToBeneficiary converts the caseworker-visible beneficiary.
func ToBeneficiary(b *model.Beneficiary) api.Beneficiary {
	return api.Beneficiary{ID: b.ID.String(), FullName: b.FullName, Phone: b.Phone, UDIDNumber: b.UDIDNumber}
}

// ToOpened converts an opened document.
func ToOpened(o *service.OpenedDocument) *api.OpenDocumentResponse {
	return &api.OpenDocumentResponse{
		Document:  ToDocument(*o.Document),
		Data:      o.Content,
		URL:       o.URL,
		ExpiresAt: optTime(o.ExpiresAt),
	}
}

// ToAccessEntries converts grant rows for the beneficiary's access log.
func ToAccessEntries(gs []model.AccessGrant) []api.AccessEntry {
	out := make([]api.AccessEntry, 0, len(gs))
	for _, g := range gs {
		e := api.AccessEntry{
			ID:           g.ID,
			CaseworkerID: g.CaseworkerID.String(),
			AccessType:   string(g.AccessType),
			AccessedAt:   g.AccessedAt,
		}
		if g.DocumentID != nil {
			e.DocumentID = g.DocumentID.String()
		}
		out = append(out, e)
	}
	return out
}
