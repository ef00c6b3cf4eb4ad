package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	pkgcrypto "github.com/AngiE300512/just-ease/internal/crypto"
	"github.com/AngiE300512/just-ease/internal/errs"
	"github.com/AngiE300512/just-ease/internal/limiter"
	"github.com/AngiE300512/just-ease/internal/model"
	"github.com/AngiE300512/just-ease/internal/repository"
)

// Access log page sizes.
const (
	DefaultAccessLogLimit = 50
	MaxAccessLogLimit     = 500
)

// NewCaseworker is the provisioning form for a caseworker account.
type NewCaseworker struct {
	Email        string
	Name         string
	Organization string
	Password     string
}

// OpenedDocument is what a caseworker receives after an access grant is written.
// Content is set for view access, URL for download access.
type OpenedDocument struct {
	Document  *model.Document
	Content   []byte
	URL       string
	ExpiresAt time.Time
}

// CaseworkerService defines the caseworker consent handshake.
type CaseworkerService interface {
	// Provision creates a caseworker account.
	Provision(ctx context.Context, in NewCaseworker) (*model.Caseworker, error)
	// Login authenticates an active caseworker and opens a session.
	Login(ctx context.Context, email, password, ip string) (model.Tokens, *model.CaseworkerSession, error)
	// Session loads a session and checks that it is still live.
	Session(ctx context.Context, id uuid.UUID) (*model.CaseworkerSession, error)
	// Logout revokes the session.
	Logout(ctx context.Context, sess *model.CaseworkerSession) error
	// Lookup finds a beneficiary by shared identifier and lists their documents.
	Lookup(ctx context.Context, sess *model.CaseworkerSession, sharedID, secret string) (*model.Beneficiary, []model.Document, error)
	// OpenDocument records an access grant and then returns the document.
	OpenDocument(ctx context.Context, sess *model.CaseworkerSession, beneficiaryID, documentID uuid.UUID, access model.AccessType) (*OpenedDocument, error)
	// AccessLog lists grants written against a beneficiary, newest first.
	AccessLog(ctx context.Context, beneficiaryID uuid.UUID, limit int) ([]model.AccessGrant, error)
}

// DocumentReader is the part of the vault the handshake reads through.
type DocumentReader interface {
	Fetch(ctx context.Context, ownerID, id uuid.UUID) (*model.Document, []byte, error)
	Link(d *model.Document) (string, time.Time, error)
}

type CaseworkerServiceImpl struct {
	caseworkers repository.CaseworkerRepository
	grants      repository.GrantRepository
	users       repository.UserRepository
	documents   repository.DocumentRepository
	vault       DocumentReader
	signer      *Signer
	sessionTTL  time.Duration
	lim         limiter.Limiter
	now         func() time.Time
	log         *zap.Logger
}

// CaseworkerDeps groups the collaborators of CaseworkerServiceImpl.
type CaseworkerDeps struct {
	Caseworkers repository.CaseworkerRepository
	Grants      repository.GrantRepository
	Users       repository.UserRepository
	Documents   repository.DocumentRepository
	Vault       DocumentReader
	Signer      *Signer
	Limiter     limiter.Limiter
}

// NewCaseworkerService constructs CaseworkerService; sessions last sessionTTL.
func NewCaseworkerService(d CaseworkerDeps, sessionTTL time.Duration, log *zap.Logger) *CaseworkerServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &CaseworkerServiceImpl{
		caseworkers: d.Caseworkers,
		grants:      d.Grants,
		users:       d.Users,
		documents:   d.Documents,
		vault:       d.Vault,
		signer:      d.Signer,
		lim:         d.Limiter,
		sessionTTL:  sessionTTL,
		now:         time.Now,
		log:         log,
	}
}

// Provision validates and stores a new active caseworker.
func (s *CaseworkerServiceImpl) Provision(ctx context.Context, in NewCaseworker) (*model.Caseworker, error) {
	email := NormalizeEmail(in.Email)
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email", errs.ErrValidation)
	}
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Organization) == "" {
		return nil, fmt.Errorf("%w: name and organization are required", errs.ErrValidation)
	}
	if len(in.Password) < MinPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", errs.ErrValidation, MinPasswordLen)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	secret, err := pkgcrypto.NewSecret(in.Password)
	if err != nil {
		return nil, err
	}
	c := &model.Caseworker{
		ID:           id,
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		Organization: strings.TrimSpace(in.Organization),
		PwdHash:      secret.Hash,
		SaltAuth:     secret.Salt,
		Active:       true,
	}
	if err := s.caseworkers.Create(ctx, c); err != nil {
		return nil, err
	}
	s.log.Info("caseworker provisioned", zap.String("caseworker_id", id.String()), zap.String("organization", c.Organization))
	return c, nil
}

// Login applies the caseworker rate limit, then opens a persisted session.
func (s *CaseworkerServiceImpl) Login(ctx context.Context, email, password, ip string) (model.Tokens, *model.CaseworkerSession, error) {
	email = NormalizeEmail(email)
	subject := limiter.Subject(limiter.CaseworkerPrefix, email)
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, subject, ipHash)
	if err != nil {
		return model.Tokens{}, nil, err
	}
	if !allowed {
		return model.Tokens{}, nil, errs.ErrRateLimited
	}

	c, err := s.caseworkers.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.Tokens{}, nil, err
	}
	if err != nil {
		pkgcrypto.Decoy(password)
	}
	if err != nil || !c.Active || !pkgcrypto.VerifyPassword([]byte(password), c.SaltAuth, c.PwdHash) {
		if blocked, _, ferr := s.lim.Failure(ctx, subject, ipHash); ferr == nil && blocked {
			s.log.Warn("caseworker login locked out")
			return model.Tokens{}, nil, errs.ErrRateLimited
		}
		return model.Tokens{}, nil, errs.ErrUnauthorized
	}
	if err := s.lim.Success(ctx, subject, ipHash); err != nil {
		s.log.Warn("limiter reset failed", zap.Error(err))
	}

	sid, err := uuid.NewV4()
	if err != nil {
		return model.Tokens{}, nil, err
	}
	now := s.now()
	sess := &model.CaseworkerSession{ID: sid, Caseworker: *c, CreatedAt: now, ExpiresAt: now.Add(s.sessionTTL)}
	if err := s.caseworkers.CreateSession(ctx, sess); err != nil {
		return model.Tokens{}, nil, err
	}
	tok, exp, err := s.signer.Issue(c.ID, RoleCaseworker, sid.String(), s.sessionTTL)
	if err != nil {
		return model.Tokens{}, nil, err
	}
	s.log.Info("caseworker session opened", zap.String("caseworker_id", c.ID.String()), zap.String("session_id", sid.String()))
	return model.Tokens{AccessToken: tok, ExpiresAt: exp}, sess, nil
}

// Session returns errs.ErrUnauthorized for a missing, expired or revoked session.
func (s *CaseworkerServiceImpl) Session(ctx context.Context, id uuid.UUID) (*model.CaseworkerSession, error) {
	sess, err := s.caseworkers.GetSession(ctx, id)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, fmt.Errorf("%w: no such session", errs.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if err := s.requireLive(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Logout revokes the session. Logging out of an already revoked session is not an error.
func (s *CaseworkerServiceImpl) Logout(ctx context.Context, sess *model.CaseworkerSession) error {
	if sess == nil {
		return fmt.Errorf("%w: no session", errs.ErrUnauthorized)
	}
	now := s.now()
	err := s.caseworkers.RevokeSession(ctx, sess.ID, now)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return err
	}
	sess.RevokedAt = &now
	s.log.Info("caseworker session closed", zap.String("session_id", sess.ID.String()))
	return nil
}

// Lookup writes exactly one search grant when the beneficiary exists and none otherwise.
// The secret is required but not checked against the beneficiary's credential.
func (s *CaseworkerServiceImpl) Lookup(ctx context.Context, sess *model.CaseworkerSession, sharedID, secret string) (*model.Beneficiary, []model.Document, error) {
	if err := s.requireLive(sess); err != nil {
		return nil, nil, err
	}
	sharedID = strings.TrimSpace(sharedID)
	if sharedID == "" || secret == "" {
		return nil, nil, fmt.Errorf("%w: shared id and secret are required", errs.ErrValidation)
	}

	u, err := s.users.GetByUDID(ctx, sharedID)
	s.log.Info("caseworker lookup",
		zap.String("caseworker_id", sess.Caseworker.ID.String()),
		zap.String("session_id", sess.ID.String()),
		zap.Bool("found", err == nil),
		zap.Bool("secret_verified", false))
	if err != nil {
		return nil, nil, err
	}

	if err := s.grant(ctx, sess, u.ID, nil, model.AccessSearch); err != nil {
		return nil, nil, err
	}
	docs, err := s.documents.List(ctx, u.ID)
	if err != nil {
		return nil, nil, err
	}
	return &model.Beneficiary{ID: u.ID, FullName: u.FullName, Phone: u.Phone, UDIDNumber: u.UDIDNumber}, docs, nil
}

// OpenDocument writes a view or download grant before any content leaves the vault.
func (s *CaseworkerServiceImpl) OpenDocument(ctx context.Context, sess *model.CaseworkerSession, beneficiaryID, documentID uuid.UUID, access model.AccessType) (*OpenedDocument, error) {
	if err := s.requireLive(sess); err != nil {
		return nil, err
	}
	if access != model.AccessView && access != model.AccessDownload {
		return nil, fmt.Errorf("%w: access type %q", errs.ErrValidation, access)
	}
	d, err := s.documents.Get(ctx, beneficiaryID, documentID)
	if err != nil {
		return nil, err
	}
	if err := s.grant(ctx, sess, beneficiaryID, &d.ID, access); err != nil {
		return nil, err
	}

	if access == model.AccessDownload {
		url, exp, err := s.vault.Link(d)
		if err != nil {
			return nil, err
		}
		return &OpenedDocument{Document: d, URL: url, ExpiresAt: exp}, nil
	}
	doc, data, err := s.vault.Fetch(ctx, beneficiaryID, documentID)
	if err != nil {
		return nil, err
	}
	return &OpenedDocument{Document: doc, Content: data}, nil
}

// AccessLog clamps limit to 1..MaxAccessLogLimit.
func (s *CaseworkerServiceImpl) AccessLog(ctx context.Context, beneficiaryID uuid.UUID, limit int) ([]model.AccessGrant, error) {
	if beneficiaryID == uuid.Nil {
		return nil, fmt.Errorf("%w: empty beneficiary", errs.ErrValidation)
	}
	switch {
	case limit <= 0:
		limit = DefaultAccessLogLimit
	case limit > MaxAccessLogLimit:
		limit = MaxAccessLogLimit
	}
	return s.grants.ListByBeneficiary(ctx, beneficiaryID, limit)
}

func (s *CaseworkerServiceImpl) grant(ctx context.Context, sess *model.CaseworkerSession, beneficiaryID uuid.UUID, documentID *uuid.UUID, access model.AccessType) error {
	g := &model.AccessGrant{
		CaseworkerID:  sess.Caseworker.ID,
		BeneficiaryID: beneficiaryID,
		DocumentID:    documentID,
		AccessType:    access,
	}
	if err := s.grants.Append(ctx, g); err != nil {
		s.log.Error("access grant not written", zap.String("access_type", string(access)), zap.Error(err))
		return fmt.Errorf("write access grant: %w", err)
	}
	fields := []zap.Field{
		zap.Int64("grant_id", g.ID),
		zap.String("caseworker_id", g.CaseworkerID.String()),
		zap.String("beneficiary_id", beneficiaryID.String()),
		zap.String("access_type", string(access)),
	}
	if documentID != nil {
		fields = append(fields, zap.String("document_id", documentID.String()))
	}
	s.log.Info("access granted", fields...)
	return nil
}

func (s *CaseworkerServiceImpl) requireLive(sess *model.CaseworkerSession) error {
	if !sess.Live(s.now()) {
		return fmt.Errorf("%w: caseworker session is not live", errs.ErrUnauthorized)
	}
	return nil
}
