package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/AngiE300512/just-ease/internal/crypto/sealer"
	"github.com/AngiE300512/just-ease/internal/errs"
	"github.com/AngiE300512/just-ease/internal/model"
	"github.com/AngiE300512/just-ease/internal/repository"
	"github.com/AngiE300512/just-ease/internal/storage"
)

// MaxDocumentSize caps a single upload.
const MaxDocumentSize = 10 << 20

// sealedContentType is what the blob store sees; the real type lives in the row.
const sealedContentType = "application/octet-stream"

// ChecklistItem is one required document and whether it is on file.
type ChecklistItem struct {
	Category   model.Category
	Label      string
	DocumentID *uuid.UUID
	Verified   bool
}

// Uploaded reports whether the category is on file.
func (i ChecklistItem) Uploaded() bool { return i.DocumentID != nil }

// Checklist is the completion state of an application dossier.
type Checklist struct {
	Items    []ChecklistItem
	Uploaded int
	Required int
	Percent  int
}

// DocumentService defines vault operations on the caller's own documents.
type DocumentService interface {
	// Upload stores a document, replacing the one already on file for the category.
	Upload(ctx context.Context, ownerID uuid.UUID, category model.Category, fileName, contentType string, data []byte) (*model.Document, error)
	// List returns the owner's documents, newest first.
	List(ctx context.Context, ownerID uuid.UUID) ([]model.Document, error)
	// Fetch returns a document with its unsealed content.
	Fetch(ctx context.Context, ownerID, id uuid.UUID) (*model.Document, []byte, error)
	// Delete removes a document and its blob.
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
	// Checklist reports which required documents are on file.
	Checklist(ctx context.Context, ownerID uuid.UUID) (*Checklist, error)
}

type DocumentServiceImpl struct {
	repo    repository.DocumentRepository
	links   repository.LinkRepository
	blobs   storage.Backend
	sealer  *sealer.Sealer
	signer  *Signer
	linkTTL time.Duration
	baseURL string
	now     func() time.Time
	log     *zap.Logger
}

// NewDocumentService constructs DocumentService. Download links are issued as
// baseURL + "/v1/files/" + token, stay valid for linkTTL and are redeemed through links.
func NewDocumentService(repo repository.DocumentRepository, links repository.LinkRepository, blobs storage.Backend,
	s *sealer.Sealer, signer *Signer, linkTTL time.Duration, baseURL string, log *zap.Logger) *DocumentServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &DocumentServiceImpl{
		repo: repo, links: links, blobs: blobs, sealer: s, signer: signer,
		linkTTL: linkTTL, baseURL: strings.TrimRight(baseURL, "/"),
		now: time.Now, log: log,
	}
}

// Upload seals and stores the blob, then writes the row. The replaced blob is removed afterwards.
func (s *DocumentServiceImpl) Upload(ctx context.Context, ownerID uuid.UUID, category model.Category, fileName, contentType string, data []byte) (*model.Document, error) {
	if ownerID == uuid.Nil {
		return nil, fmt.Errorf("%w: empty owner", errs.ErrValidation)
	}
	if !category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", errs.ErrValidation, category)
	}
	if len(data) == 0 || len(data) > MaxDocumentSize {
		return nil, fmt.Errorf("%w: size must be 1..%d bytes", errs.ErrValidation, MaxDocumentSize)
	}
	fileName = filepath.Base(strings.TrimSpace(fileName))
	if fileName == "." || fileName == "/" || fileName == "" {
		return nil, fmt.Errorf("%w: file name", errs.ErrValidation)
	}
	ct, err := acceptedType(contentType, data)
	if err != nil {
		return nil, err
	}

	now := s.now()
	ref := blobRef(ownerID, category, fileName, now)
	sealed, err := s.sealer.Seal(ref, ownerID, string(category), data)
	if err != nil {
		return nil, err
	}
	if err := s.blobs.Put(ctx, ref, sealed, sealedContentType); err != nil {
		return nil, fmt.Errorf("store blob: %w", err)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	d := &model.Document{
		ID:          id,
		OwnerID:     ownerID,
		Category:    category,
		FileName:    fileName,
		FileRef:     ref,
		ContentType: ct,
		Size:        int64(len(data)),
		UploadedAt:  now,
	}
	prev, err := s.repo.Replace(ctx, d)
	if err != nil {
		s.dropBlob(ctx, ref)
		return nil, err
	}
	if prev != nil && prev.FileRef != ref {
		s.dropBlob(ctx, prev.FileRef)
	}
	s.log.Info("document stored",
		zap.String("owner_id", ownerID.String()),
		zap.String("category", string(category)),
		zap.Int64("size", d.Size),
		zap.Bool("replaced", prev != nil),
		zap.String("backend", s.blobs.Name()))
	return d, nil
}

// List returns the owner's documents.
func (s *DocumentServiceImpl) List(ctx context.Context, ownerID uuid.UUID) ([]model.Document, error) {
	if ownerID == uuid.Nil {
		return nil, fmt.Errorf("%w: empty owner", errs.ErrValidation)
	}
	return s.repo.List(ctx, ownerID)
}

// Fetch loads a document the owner holds and unseals its blob.
func (s *DocumentServiceImpl) Fetch(ctx context.Context, ownerID, id uuid.UUID) (*model.Document, []byte, error) {
	if ownerID == uuid.Nil || id == uuid.Nil {
		return nil, nil, fmt.Errorf("%w: empty owner/id", errs.ErrValidation)
	}
	d, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.content(ctx, d)
	if err != nil {
		return nil, nil, err
	}
	return d, data, nil
}

// Delete removes the row first; a blob that cannot be removed is only logged.
func (s *DocumentServiceImpl) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	if ownerID == uuid.Nil || id == uuid.Nil {
		return fmt.Errorf("%w: empty owner/id", errs.ErrValidation)
	}
	d, err := s.repo.Delete(ctx, ownerID, id)
	if err != nil {
		return err
	}
	s.dropBlob(ctx, d.FileRef)
	s.log.Info("document deleted", zap.String("owner_id", ownerID.String()), zap.String("category", string(d.Category)))
	return nil
}

// Checklist marks each required category as uploaded or missing.
func (s *DocumentServiceImpl) Checklist(ctx context.Context, ownerID uuid.UUID) (*Checklist, error) {
	docs, err := s.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	byCat := make(map[model.Category]model.Document, len(docs))
	for _, d := range docs {
		byCat[d.Category] = d
	}
	cl := &Checklist{Required: len(model.RequiredCategories)}
	for _, c := range model.RequiredCategories {
		item := ChecklistItem{Category: c, Label: c.Label()}
		if d, ok := byCat[c]; ok {
			id := d.ID
			item.DocumentID = &id
			item.Verified = d.Verified
			cl.Uploaded++
		}
		cl.Items = append(cl.Items, item)
	}
	cl.Percent = (cl.Uploaded*100 + cl.Required/2) / cl.Required
	return cl, nil
}

// Link issues a short-lived download URL for d.
func (s *DocumentServiceImpl) Link(d *model.Document) (string, time.Time, error) {
	tok, exp, err := s.signer.IssueLink(LinkClaims{
		OwnerID:     d.OwnerID.String(),
		Ref:         d.FileRef,
		Category:    string(d.Category),
		FileName:    d.FileName,
		ContentType: d.ContentType,
	}, d.ID, s.linkTTL)
	if err != nil {
		return "", time.Time{}, err
	}
	return s.baseURL + "/v1/files/" + tok, exp, nil
}

// ResolveLink verifies a download token and returns the document it names. A link
// works once: any later presentation yields errs.ErrUnauthorized. A document
// replaced or deleted after the link was issued yields errs.ErrNotFound.
func (s *DocumentServiceImpl) ResolveLink(ctx context.Context, token string) (*model.Document, []byte, error) {
	c, err := s.signer.ParseLink(token)
	if err != nil {
		return nil, nil, err
	}
	id, err1 := uuid.FromString(c.Subject)
	owner, err2 := uuid.FromString(c.OwnerID)
	if err := errors.Join(err1, err2); err != nil {
		return nil, nil, fmt.Errorf("%w: link subject", errs.ErrUnauthorized)
	}
	if err := s.links.Redeem(ctx, c.ID, c.ExpiresAt.Time); err != nil {
		if errors.Is(err, errs.ErrAlreadyExists) {
			s.log.Warn("download link presented again", zap.String("document_id", id.String()))
			return nil, nil, fmt.Errorf("%w: link already used", errs.ErrUnauthorized)
		}
		return nil, nil, fmt.Errorf("redeem link: %w", err)
	}
	d, err := s.repo.Get(ctx, owner, id)
	if err != nil {
		return nil, nil, err
	}
	if d.FileRef != c.Ref {
		return nil, nil, fmt.Errorf("%w: document was replaced", errs.ErrNotFound)
	}
	data, err := s.content(ctx, d)
	if err != nil {
		return nil, nil, err
	}
	return d, data, nil
}

// PurgeLinks forgets redeemed links that have expired and can no longer be presented.
func (s *DocumentServiceImpl) PurgeLinks(ctx context.Context) (int64, error) {
	return s.links.PurgeLinks(ctx, s.now())
}

func (s *DocumentServiceImpl) content(ctx context.Context, d *model.Document) ([]byte, error) {
	blob, err := s.blobs.Get(ctx, d.FileRef)
	if err != nil {
		return nil, fmt.Errorf("load blob: %w", err)
	}
	data, err := s.sealer.Open(d.FileRef, d.OwnerID, string(d.Category), blob)
	if err != nil {
		s.log.Error("blob failed to open", zap.String("document_id", d.ID.String()), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", errs.ErrInvalidRecord, err)
	}
	return data, nil
}

func (s *DocumentServiceImpl) dropBlob(ctx context.Context, ref string) {
	if err := s.blobs.Delete(ctx, ref); err != nil && !errors.Is(err, errs.ErrNotFound) {
		s.log.Warn("blob not removed", zap.String("ref", ref), zap.Error(err))
	}
}

// blobRef names a blob {owner}/{category}_{unix ms}{.ext}.
func blobRef(owner uuid.UUID, category model.Category, fileName string, t time.Time) string {
	return fmt.Sprintf("%s/%s_%d%s", owner, category, t.UnixMilli(), extension(fileName))
}

func extension(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if len(ext) < 2 || len(ext) > 6 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}

// acceptedType resolves the content type and allows images and PDFs only.
func acceptedType(contentType string, data []byte) (string, error) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "application/pdf" || strings.HasPrefix(ct, "image/") {
		return ct, nil
	}
	return "", fmt.Errorf("%w: content type %q not accepted", errs.ErrValidation, ct)
}
