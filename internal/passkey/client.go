package passkey

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
	"go.uber.org/zap"

	"github.com/AngiE300512/just-ease/internal/errs"
)

// DefaultTimeout is the prompt timeout handed to the platform.
const DefaultTimeout = 60 * time.Second

// RelyingParty identifies the service credentials are scoped to.
type RelyingParty struct {
	ID     string // host name of Origin
	Name   string
	Origin string // fully qualified origin, e.g. https://vault.example.org
}

// NewRelyingParty derives the relying party identity from an origin.
func NewRelyingParty(origin, name string) (RelyingParty, error) {
	fq, err := protocol.FullyQualifiedOrigin(origin)
	if err != nil {
		return RelyingParty{}, fmt.Errorf("%w: origin: %v", errs.ErrValidation, err)
	}
	u, err := url.Parse(fq)
	if err != nil {
		return RelyingParty{}, fmt.Errorf("%w: origin: %v", errs.ErrValidation, err)
	}
	return RelyingParty{ID: u.Hostname(), Name: name, Origin: fq}, nil
}

// Enrollment is the result of a successful credential creation. The caller persists it.
type Enrollment struct {
	CredentialID string `json:"credential_id"`
	PublicKey    string `json:"public_key"` // COSE_Key, base64url
	Counter      uint32 `json:"counter"`
}

// Assertion is a signed challenge response ready for server-side verification.
type Assertion struct {
	CredentialID      string `json:"credential_id"`
	Signature         string `json:"signature"`
	AuthenticatorData string `json:"authenticator_data"`
	ClientDataJSON    string `json:"client_data_json"`
}

// Client runs enrollment and assertion ceremonies against a Platform.
type Client struct {
	platform Platform
	rp       RelyingParty
	timeout  time.Duration
	log      *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option { return func(c *Client) { c.timeout = d } }

// WithLogger sets the logger used for ceremony diagnostics.
func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = l } }

// NewClient constructs a Client. platform may be nil when the runtime has no credential API.
func NewClient(platform Platform, rp RelyingParty, opts ...Option) *Client {
	c := &Client{platform: platform, rp: rp, timeout: DefaultTimeout, log: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Supported reports whether the client's platform can run ceremonies.
func (c *Client) Supported(ctx context.Context) bool { return Supported(ctx, c.platform) }

// RelyingParty returns the identity requests are bound to.
func (c *Client) RelyingParty() RelyingParty { return c.rp }

var credentialParameters = []protocol.CredentialParameter{
	{Type: protocol.PublicKeyCredentialType, Algorithm: webauthncose.AlgES256},
	{Type: protocol.PublicKeyCredentialType, Algorithm: webauthncose.AlgRS256},
}

// Enroll creates a new platform credential for the account and returns its
// identifier and public key with the counter at zero.
func (c *Client) Enroll(ctx context.Context, userID, userName, displayName string) (*Enrollment, error) {
	if !c.Supported(ctx) {
		return nil, errs.ErrUnsupportedEnvironment
	}
	if userID == "" || userName == "" {
		return nil, fmt.Errorf("%w: user id and name are required", errs.ErrValidation)
	}
	challenge, err := protocol.CreateChallenge()
	if err != nil {
		return nil, err
	}
	if displayName == "" {
		displayName = userName
	}

	opts := &protocol.PublicKeyCredentialCreationOptions{
		RelyingParty: protocol.RelyingPartyEntity{
			CredentialEntity: protocol.CredentialEntity{Name: c.rp.Name},
			ID:               c.rp.ID,
		},
		User: protocol.UserEntity{
			CredentialEntity: protocol.CredentialEntity{Name: userName},
			DisplayName:      displayName,
			ID:               protocol.URLEncodedBase64(userID),
		},
		Challenge:  challenge,
		Parameters: credentialParameters,
		Timeout:    int(c.timeout.Milliseconds()),
		AuthenticatorSelection: protocol.AuthenticatorSelection{
			AuthenticatorAttachment: protocol.Platform,
			RequireResidentKey:      protocol.ResidentKeyNotRequired(),
			ResidentKey:             protocol.ResidentKeyRequirementPreferred,
			UserVerification:        protocol.VerificationRequired,
		},
		Attestation: protocol.PreferNoAttestation,
	}

	resp, err := c.create(ctx, opts)
	if err != nil {
		c.log.Info("passkey enroll failed", zap.Error(err))
		return nil, classify(err, false)
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: empty creation response", errs.ErrAuthenticator)
	}

	parsed, err := resp.Parse()
	if err != nil {
		return nil, fmt.Errorf("%w: parse attestation: %v", errs.ErrAuthenticator, describe(err))
	}
	if _, err := parsed.Verify(challenge.String(), true, true, c.rp.ID, []string{c.rp.Origin}, nil,
		protocol.TopOriginIgnoreVerificationMode, nil, credentialParameters); err != nil {
		return nil, fmt.Errorf("%w: attestation: %v", errs.ErrAuthenticator, describe(err))
	}

	att := parsed.Response.AttestationObject.AuthData.AttData
	if len(resp.RawID) > 0 && !bytes.Equal(resp.RawID, att.CredentialID) {
		return nil, fmt.Errorf("%w: credential id mismatch", errs.ErrAuthenticator)
	}
	c.log.Info("passkey enrolled", zap.String("rp", c.rp.ID), zap.Int("id_len", len(att.CredentialID)))
	return &Enrollment{
		CredentialID: EncodeID(att.CredentialID),
		PublicKey:    EncodeID(att.CredentialPublicKey),
		Counter:      0,
	}, nil
}

// Assert asks the platform to sign challenge, as issued by the server, with the given
// credential. A platform that returns nothing, or holds no such credential, yields
// errs.ErrUnauthorized. A challenge shorter than MinChallengeSize is errs.ErrValidation.
func (c *Client) Assert(ctx context.Context, credentialID, challenge string) (*Assertion, error) {
	if !c.Supported(ctx) {
		return nil, errs.ErrUnsupportedEnvironment
	}
	rawID, err := DecodeID(credentialID)
	if err != nil || len(rawID) == 0 {
		return nil, fmt.Errorf("%w: malformed credential id", errs.ErrUnauthorized)
	}
	rawChallenge, err := DecodeID(challenge)
	if err != nil || len(rawChallenge) < MinChallengeSize {
		return nil, fmt.Errorf("%w: short or malformed challenge", errs.ErrValidation)
	}
	challenge = EncodeID(rawChallenge)

	opts := &protocol.PublicKeyCredentialRequestOptions{
		Challenge:      protocol.URLEncodedBase64(rawChallenge),
		Timeout:        int(c.timeout.Milliseconds()),
		RelyingPartyID: c.rp.ID,
		AllowedCredentials: []protocol.CredentialDescriptor{{
			Type:         protocol.PublicKeyCredentialType,
			CredentialID: rawID,
			Transport:    []protocol.AuthenticatorTransport{protocol.Internal},
		}},
		UserVerification: protocol.VerificationRequired,
	}

	resp, err := c.get(ctx, opts)
	if err != nil {
		c.log.Info("passkey assert failed", zap.Error(err))
		return nil, classify(err, true)
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: no assertion returned", errs.ErrUnauthorized)
	}
	if len(resp.RawID) > 0 && !bytes.Equal(resp.RawID, rawID) {
		return nil, fmt.Errorf("%w: assertion for another credential", errs.ErrUnauthorized)
	}

	parsed, err := resp.Parse()
	if err != nil {
		return nil, fmt.Errorf("%w: parse assertion: %v", errs.ErrAuthenticator, describe(err))
	}
	if err := parsed.Response.CollectedClientData.Verify(challenge, protocol.AssertCeremony,
		[]string{c.rp.Origin}, nil, protocol.TopOriginIgnoreVerificationMode); err != nil {
		return nil, fmt.Errorf("%w: client data: %v", errs.ErrAuthenticator, describe(err))
	}

	ar := resp.AssertionResponse
	return &Assertion{
		CredentialID:      EncodeID(rawID),
		Signature:         EncodeID(ar.Signature),
		AuthenticatorData: EncodeID(ar.AuthenticatorData),
		ClientDataJSON:    EncodeID(ar.ClientDataJSON),
	}, nil
}

func (c *Client) create(ctx context.Context, opts *protocol.PublicKeyCredentialCreationOptions) (resp *protocol.CredentialCreationResponse, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, fmt.Errorf("platform panic: %v", r)
		}
	}()
	return c.platform.Create(ctx, c.rp.Origin, opts)
}

func (c *Client) get(ctx context.Context, opts *protocol.PublicKeyCredentialRequestOptions) (resp *protocol.CredentialAssertionResponse, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, fmt.Errorf("platform panic: %v", r)
		}
	}()
	return c.platform.Get(ctx, c.rp.Origin, opts)
}

// classify maps platform errors onto the ceremony error taxonomy.
func classify(err error, assertion bool) error {
	switch {
	case errors.Is(err, errs.ErrUnsupportedEnvironment),
		errors.Is(err, errs.ErrUserCancelled),
		errors.Is(err, errs.ErrAuthenticator),
		errors.Is(err, errs.ErrUnauthorized):
		return err
	case errors.Is(err, ErrPromptDismissed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", errs.ErrUserCancelled, err)
	case assertion && errors.Is(err, ErrNoCredentials):
		return fmt.Errorf("%w: %v", errs.ErrUnauthorized, err)
	default:
		return fmt.Errorf("%w: %v", errs.ErrAuthenticator, err)
	}
}

// describe flattens go-webauthn errors, whose Error() carries only the short type.
func describe(err error) string {
	var pe *protocol.Error
	if errors.As(err, &pe) {
		if pe.DevInfo != "" {
			return pe.Details + ": " + pe.DevInfo
		}
		return pe.Details
	}
	return err.Error()
}
