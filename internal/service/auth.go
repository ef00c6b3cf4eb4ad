// Package service contains the application services behind the RPC surface:
// accounts, passkeys, the document vault and the caseworker handshake.
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

// MinPasswordLen is the shortest accepted password.
const MinPasswordLen = 8

// RegisterInput is the beneficiary sign-up form.
type RegisterInput struct {
	Email      string
	Password   string
	FullName   string
	Phone      string
	UDIDNumber string
}

// AuthService defines beneficiary account operations.
type AuthService interface {
	// Register creates a new beneficiary with secure password hashing.
	Register(ctx context.Context, in RegisterInput) (*model.User, error)
	// Login applies rate-limiting and authenticates the beneficiary.
	Login(ctx context.Context, email, password, ip string) (model.Tokens, *model.User, error)
	// Profile returns the beneficiary's own record.
	Profile(ctx context.Context, userID uuid.UUID) (*model.User, error)
}

type AuthServiceImpl struct {
	users     repository.UserRepository
	signer    *Signer
	accessTTL time.Duration
	lim       limiter.Limiter
	log       *zap.Logger
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, signer *Signer, accessTTL time.Duration, lim limiter.Limiter, log *zap.Logger) *AuthServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthServiceImpl{users: users, signer: signer, accessTTL: accessTTL, lim: lim, log: log}
}

// NormalizeEmail lower-cases and trims a login email.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new user record with a per-user salt.
func (s *AuthServiceImpl) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	email := NormalizeEmail(in.Email)
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email", errs.ErrValidation)
	}
	if len(in.Password) < MinPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", errs.ErrValidation, MinPasswordLen)
	}
	if strings.TrimSpace(in.FullName) == "" {
		return nil, fmt.Errorf("%w: full name", errs.ErrValidation)
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	secret, err := pkgcrypto.NewSecret(in.Password)
	if err != nil {
		return nil, err
	}

	u := &model.User{
		ID:         uid,
		Email:      email,
		PwdHash:    secret.Hash,
		SaltAuth:   secret.Salt,
		FullName:   strings.TrimSpace(in.FullName),
		Phone:      strings.TrimSpace(in.Phone),
		UDIDNumber: strings.TrimSpace(in.UDIDNumber),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.log.Info("beneficiary registered", zap.String("user_id", uid.String()), zap.Bool("udid", u.UDIDNumber != ""))
	return u, nil
}

// Login authenticates with rate limiting by (email, ip).
func (s *AuthServiceImpl) Login(ctx context.Context, email, password, ip string) (model.Tokens, *model.User, error) {
	email = NormalizeEmail(email)
	subject := limiter.Subject(limiter.BeneficiaryPrefix, email)
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, subject, ipHash)
	if err != nil {
		return model.Tokens{}, nil, err
	}
	if !allowed {
		return model.Tokens{}, nil, errs.ErrRateLimited
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.Tokens{}, nil, err
	}
	if err != nil {
		pkgcrypto.Decoy(password)
	}
	if err != nil || !pkgcrypto.VerifyPassword([]byte(password), u.SaltAuth, u.PwdHash) {
		if blocked, _, ferr := s.lim.Failure(ctx, subject, ipHash); ferr == nil && blocked {
			s.log.Warn("beneficiary login locked out")
			return model.Tokens{}, nil, errs.ErrRateLimited
		}
		// unknown email and wrong password look the same
		return model.Tokens{}, nil, errs.ErrUnauthorized
	}

	if err := s.lim.Success(ctx, subject, ipHash); err != nil {
		s.log.Warn("limiter reset failed", zap.Error(err))
	}

	access, exp, err := s.signer.Issue(u.ID, RoleBeneficiary, "", s.accessTTL)
	if err != nil {
		return model.Tokens{}, nil, err
	}
	return model.Tokens{AccessToken: access, ExpiresAt: exp}, u, nil
}

// Profile loads the caller's account.
func (s *AuthServiceImpl) Profile(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: empty user id", errs.ErrValidation)
	}
	return s.users.GetByID(ctx, userID)
}
