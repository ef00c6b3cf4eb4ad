package service

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/AngiE300512/just-ease/internal/errs"
)

// Token roles.
const (
	RoleBeneficiary = "beneficiary"
	RoleCaseworker  = "caseworker"
)

const (
	audienceAPI   = "just-ease/api"
	audienceFiles = "just-ease/files"
)

// Claims are carried by access tokens. SessionID is set for caseworkers only.
type Claims struct {
	Role      string `json:"role"`
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// LinkClaims bind a download link to one stored blob.
type LinkClaims struct {
	OwnerID     string `json:"own"`
	Ref         string `json:"ref"`
	Category    string `json:"cat"`
	FileName    string `json:"fn"`
	ContentType string `json:"ct"`
	jwt.RegisteredClaims
}

// Signer issues and verifies HS256 tokens with a single shared key.
type Signer struct {
	key []byte
	now func() time.Time
}

// NewSigner returns a Signer for key.
func NewSigner(key []byte) *Signer {
	return &Signer{key: append([]byte(nil), key...), now: time.Now}
}

// Issue creates an access token for subject.
func (s *Signer) Issue(subject uuid.UUID, role, sessionID string, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(ttl)
	claims := Claims{
		Role:      role,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.String(),
			Audience:  jwt.ClaimStrings{audienceAPI},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	return signed, exp, err
}

// Parse verifies an access token. Every failure is reported as errs.ErrUnauthorized.
func (s *Signer) Parse(token string) (*Claims, error) {
	var c Claims
	if err := s.parse(token, &c, audienceAPI); err != nil {
		return nil, err
	}
	switch c.Role {
	case RoleBeneficiary, RoleCaseworker:
	default:
		return nil, fmt.Errorf("%w: unknown role", errs.ErrUnauthorized)
	}
	if _, err := uuid.FromString(c.Subject); err != nil {
		return nil, fmt.Errorf("%w: bad subject", errs.ErrUnauthorized)
	}
	return &c, nil
}

// IssueLink creates a download token for the claims' document. Each token carries
// a random ID so it can be redeemed once.
func (s *Signer) IssueLink(c LinkClaims, documentID uuid.UUID, ttl time.Duration) (string, time.Time, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", time.Time{}, err
	}
	now := s.now()
	exp := now.Add(ttl)
	c.RegisteredClaims = jwt.RegisteredClaims{
		ID:        id.String(),
		Subject:   documentID.String(),
		Audience:  jwt.ClaimStrings{audienceFiles},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.key)
	return signed, exp, err
}

// ParseLink verifies a download token.
func (s *Signer) ParseLink(token string) (*LinkClaims, error) {
	var c LinkClaims
	if err := s.parse(token, &c, audienceFiles); err != nil {
		return nil, err
	}
	if c.Ref == "" || c.ID == "" || c.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: incomplete link", errs.ErrUnauthorized)
	}
	return &c, nil
}

func (s *Signer) parse(token string, c jwt.Claims, aud string) error {
	_, err := jwt.ParseWithClaims(token, c, func(*jwt.Token) (any, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(aud),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrUnauthorized, err)
	}
	return nil
}
