package service

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/AngiE300512/just-ease/internal/errs"
	"github.com/AngiE300512/just-ease/internal/model"
	"github.com/AngiE300512/just-ease/internal/passkey"
	"github.com/AngiE300512/just-ease/internal/repository"
)

// ChallengeTTL is how long an issued challenge can be signed and verified.
const ChallengeTTL = 5 * time.Minute

// PasskeyService defines server-side credential registration and assertion checks.
type PasskeyService interface {
	// Register stores the caller's platform credential, replacing any earlier one.
	Register(ctx context.Context, userID uuid.UUID, credentialID, publicKey string) (*model.PasskeyCredential, error)
	// BeginVerify issues a single-use challenge for the caller's next assertion.
	BeginVerify(ctx context.Context, userID uuid.UUID) (challenge string, expiresAt time.Time, err error)
	// Verify checks a signed assertion over a challenge issued by BeginVerify.
	Verify(ctx context.Context, userID uuid.UUID, a passkey.Assertion) error
	// Status returns the caller's enrolled credential.
	Status(ctx context.Context, userID uuid.UUID) (*model.PasskeyCredential, error)
}

type PasskeyServiceImpl struct {
	repo    repository.PasskeyRepository
	rpID    string
	origins []string
	now     func() time.Time
	log     *zap.Logger
}

// NewPasskeyService constructs PasskeyService for one relying party.
func NewPasskeyService(repo repository.PasskeyRepository, rpID string, origins []string, log *zap.Logger) *PasskeyServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &PasskeyServiceImpl{repo: repo, rpID: rpID, origins: origins, now: time.Now, log: log}
}

// Register validates and stores an enrollment.
func (s *PasskeyServiceImpl) Register(ctx context.Context, userID uuid.UUID, credentialID, publicKey string) (*model.PasskeyCredential, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: empty user id", errs.ErrValidation)
	}
	rawID, err := passkey.DecodeID(credentialID)
	if err != nil || len(rawID) == 0 {
		return nil, fmt.Errorf("%w: credential id", errs.ErrValidation)
	}
	key, err := passkey.DecodeID(publicKey)
	if err != nil || len(key) == 0 {
		return nil, fmt.Errorf("%w: public key", errs.ErrValidation)
	}
	if _, err := webauthncose.ParsePublicKey(key); err != nil {
		return nil, fmt.Errorf("%w: public key: %v", errs.ErrValidation, err)
	}

	c := &model.PasskeyCredential{ID: passkey.EncodeID(rawID), UserID: userID, PublicKey: key}
	if err := s.repo.Upsert(ctx, c); err != nil {
		return nil, err
	}
	s.log.Info("passkey registered", zap.String("user_id", userID.String()))
	return c, nil
}

// Status returns errs.ErrNotFound when the user has not enrolled.
func (s *PasskeyServiceImpl) Status(ctx context.Context, userID uuid.UUID) (*model.PasskeyCredential, error) {
	return s.repo.GetByUser(ctx, userID)
}

// BeginVerify stores a fresh challenge for an enrolled user. Only its hash is kept.
func (s *PasskeyServiceImpl) BeginVerify(ctx context.Context, userID uuid.UUID) (string, time.Time, error) {
	if _, err := s.repo.GetByUser(ctx, userID); err != nil {
		return "", time.Time{}, err
	}
	challenge, err := passkey.NewChallenge()
	if err != nil {
		return "", time.Time{}, err
	}
	hash := sha256.Sum256([]byte(challenge))
	expiresAt := s.now().Add(ChallengeTTL)
	if err := s.repo.StoreChallenge(ctx, hash[:], userID, expiresAt); err != nil {
		return "", time.Time{}, err
	}
	return challenge, expiresAt, nil
}

// Verify accepts an assertion once. Every rejection is errs.ErrUnauthorized; the
// reason is only logged.
func (s *PasskeyServiceImpl) Verify(ctx context.Context, userID uuid.UUID, a passkey.Assertion) error {
	reason, err := s.verify(ctx, userID, a)
	if err != nil {
		s.log.Info("passkey rejected", zap.String("user_id", userID.String()), zap.String("reason", reason), zap.Error(err))
		return fmt.Errorf("%w: passkey assertion", errs.ErrUnauthorized)
	}
	s.log.Info("passkey verified", zap.String("user_id", userID.String()))
	return nil
}

func (s *PasskeyServiceImpl) verify(ctx context.Context, userID uuid.UUID, a passkey.Assertion) (string, error) {
	rawID, err := passkey.DecodeID(a.CredentialID)
	if err != nil || len(rawID) == 0 {
		return "credential id", errors.New("malformed credential id")
	}
	cred, err := s.repo.GetByID(ctx, passkey.EncodeID(rawID))
	if err != nil {
		return "lookup", err
	}
	if cred.UserID != userID {
		return "owner", errors.New("credential belongs to another account")
	}

	sig, err1 := passkey.DecodeID(a.Signature)
	authData, err2 := passkey.DecodeID(a.AuthenticatorData)
	clientData, err3 := passkey.DecodeID(a.ClientDataJSON)
	if err := errors.Join(err1, err2, err3); err != nil {
		return "encoding", err
	}

	resp := protocol.CredentialAssertionResponse{
		PublicKeyCredential: protocol.PublicKeyCredential{
			Credential: protocol.Credential{ID: cred.ID, Type: string(protocol.PublicKeyCredentialType)},
			RawID:      rawID,
		},
		AssertionResponse: protocol.AuthenticatorAssertionResponse{
			AuthenticatorResponse: protocol.AuthenticatorResponse{ClientDataJSON: clientData},
			AuthenticatorData:     authData,
			Signature:             sig,
		},
	}
	parsed, err := resp.Parse()
	if err != nil {
		return "parse", err
	}

	// The first attempt uses up the challenge whatever its outcome.
	challenge := parsed.Response.CollectedClientData.Challenge
	hash := sha256.Sum256([]byte(challenge))
	if err := s.repo.TakeChallenge(ctx, hash[:], userID, s.now()); err != nil {
		return "challenge", err
	}
	if err := parsed.Verify(challenge, s.rpID, s.origins, nil, protocol.TopOriginIgnoreVerificationMode,
		"", true, true, cred.PublicKey); err != nil {
		return "signature", err
	}

	counter := parsed.Response.AuthenticatorData.Counter
	if counter <= cred.SignCount && (counter != 0 || cred.SignCount != 0) {
		return "counter", fmt.Errorf("counter %d after %d", counter, cred.SignCount)
	}

	if counter != cred.SignCount {
		if err := s.repo.AdvanceCounter(ctx, cred.ID, cred.SignCount, counter); err != nil {
			return "counter race", err
		}
	}
	return "", nil
}

// PurgeChallenges drops issued challenges that were never used before they expired.
func (s *PasskeyServiceImpl) PurgeChallenges(ctx context.Context) (int64, error) {
	return s.repo.PurgeChallenges(ctx, s.now())
}
