package passkey_test

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
	"go.uber.org/zap/zaptest"

	"github.com/AngiE300512/just-ease/internal/errs"
	"github.com/AngiE300512/just-ease/internal/passkey"
	"github.com/AngiE300512/just-ease/internal/passkey/softauth"
)

const origin = "https://vault.just-ease.test"

func newClient(t *testing.T, p passkey.Platform) *passkey.Client {
	t.Helper()
	rp, err := passkey.NewRelyingParty(origin, "Just-Ease")
	if err != nil {
		t.Fatalf("NewRelyingParty: %v", err)
	}
	return passkey.NewClient(p, rp, passkey.WithLogger(zaptest.NewLogger(t)))
}

func challenge(t *testing.T) string {
	t.Helper()
	c, err := passkey.NewChallenge()
	if err != nil {
		t.Fatalf("NewChallenge: %v", err)
	}
	return c
}

// recorder wraps a platform and keeps the last requests it saw.
type recorder struct {
	passkey.Platform
	create *protocol.PublicKeyCredentialCreationOptions
	get    *protocol.PublicKeyCredentialRequestOptions
}

func (r *recorder) Create(ctx context.Context, o string, opts *protocol.PublicKeyCredentialCreationOptions) (*protocol.CredentialCreationResponse, error) {
	r.create = opts
	return r.Platform.Create(ctx, o, opts)
}

func (r *recorder) Get(ctx context.Context, o string, opts *protocol.PublicKeyCredentialRequestOptions) (*protocol.CredentialAssertionResponse, error) {
	r.get = opts
	return r.Platform.Get(ctx, o, opts)
}

// stubPlatform returns canned results.
type stubPlatform struct {
	createErr error
	getErr    error
}

func (s stubPlatform) Available(context.Context) (bool, error) { return true, nil }
func (s stubPlatform) Create(context.Context, string, *protocol.PublicKeyCredentialCreationOptions) (*protocol.CredentialCreationResponse, error) {
	return nil, s.createErr
}
func (s stubPlatform) Get(context.Context, string, *protocol.PublicKeyCredentialRequestOptions) (*protocol.CredentialAssertionResponse, error) {
	return nil, s.getErr
}

func TestNewRelyingParty_DerivesIDFromOrigin(t *testing.T) {
	t.Parallel()

	rp, err := passkey.NewRelyingParty("https://vault.just-ease.test:8443/my-documents?x=1", "Just-Ease")
	if err != nil {
		t.Fatalf("NewRelyingParty: %v", err)
	}
	if rp.ID != "vault.just-ease.test" || rp.Origin != "https://vault.just-ease.test:8443" {
		t.Fatalf("unexpected rp: %+v", rp)
	}
	if _, err := passkey.NewRelyingParty("not an origin", "x"); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestEnrollThenAssert_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	auth := softauth.New()
	c := newClient(t, auth)

	enr, err := c.Enroll(ctx, "user-1", "asha@example.org", "Asha")
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if enr.CredentialID == "" || enr.PublicKey == "" || enr.Counter != 0 {
		t.Fatalf("bad enrollment: %+v", enr)
	}

	as, err := c.Assert(ctx, enr.CredentialID, challenge(t))
	if err != nil {
		t.Fatalf("Assert: %v", err)
	}
	if as.CredentialID != enr.CredentialID {
		t.Fatalf("credential id: got %s want %s", as.CredentialID, enr.CredentialID)
	}

	// The signature must verify against the enrolled public key.
	pub, _ := passkey.DecodeID(enr.PublicKey)
	authData, _ := passkey.DecodeID(as.AuthenticatorData)
	clientData, _ := passkey.DecodeID(as.ClientDataJSON)
	sig, _ := passkey.DecodeID(as.Signature)
	key, err := webauthncose.ParsePublicKey(pub)
	if err != nil {
		t.Fatalf("ParsePublicKey: %v", err)
	}
	h := sha256.Sum256(clientData)
	ok, err := webauthncose.VerifySignature(key, append(authData, h[:]...), sig)
	if err != nil || !ok {
		t.Fatalf("signature does not verify: ok=%v err=%v", ok, err)
	}
}

func TestAssert_NonEnrolledID_Unauthorized(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newClient(t, softauth.New())

	if _, err := c.Enroll(ctx, "user-1", "asha@example.org", "Asha"); err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	other := passkey.EncodeID([]byte("some-other-credential-identifier"))
	if _, err := c.Assert(ctx, other, challenge(t)); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
	if _, err := c.Assert(ctx, "%%%", challenge(t)); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("malformed id: want ErrUnauthorized, got %v", err)
	}
}

func TestCeremonies_UnsupportedEnvironment(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for name, p := range map[string]passkey.Platform{
		"no api":      nil,
		"unavailable": softauth.New(softauth.Unavailable()),
	} {
		c := newClient(t, p)
		if c.Supported(ctx) {
			t.Fatalf("%s: probe should be false", name)
		}
		if _, err := c.Enroll(ctx, "u", "n", "d"); !errors.Is(err, errs.ErrUnsupportedEnvironment) {
			t.Fatalf("%s: enroll: want ErrUnsupportedEnvironment, got %v", name, err)
		}
		if _, err := c.Assert(ctx, passkey.EncodeID([]byte("id")), challenge(t)); !errors.Is(err, errs.ErrUnsupportedEnvironment) {
			t.Fatalf("%s: assert: want ErrUnsupportedEnvironment, got %v", name, err)
		}
		// the capability check wins over input validation
		if _, err := c.Enroll(ctx, "", "", ""); !errors.Is(err, errs.ErrUnsupportedEnvironment) {
			t.Fatalf("%s: enroll without user: want ErrUnsupportedEnvironment, got %v", name, err)
		}
		if _, err := c.Assert(ctx, "%%%", ""); !errors.Is(err, errs.ErrUnsupportedEnvironment) {
			t.Fatalf("%s: assert with bad id: want ErrUnsupportedEnvironment, got %v", name, err)
		}
	}
}

func TestAssert_SignsGivenChallenge(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rec := &recorder{Platform: softauth.New()}
	c := newClient(t, rec)

	enr, err := c.Enroll(ctx, "user-1", "asha@example.org", "Asha")
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	ch := challenge(t)
	as, err := c.Assert(ctx, enr.CredentialID, ch)
	if err != nil {
		t.Fatalf("Assert: %v", err)
	}
	if passkey.EncodeID(rec.get.Challenge) != ch {
		t.Fatalf("platform asked to sign %s, want %s", passkey.EncodeID(rec.get.Challenge), ch)
	}
	raw, _ := passkey.DecodeID(as.ClientDataJSON)
	var cd protocol.CollectedClientData
	if err := json.Unmarshal(raw, &cd); err != nil || cd.Challenge != ch {
		t.Fatalf("client data challenge %q, want %q (%v)", cd.Challenge, ch, err)
	}

	for _, bad := range []string{"", "%%%", passkey.EncodeID(make([]byte, passkey.MinChallengeSize-1))} {
		if _, err := c.Assert(ctx, enr.CredentialID, bad); !errors.Is(err, errs.ErrValidation) {
			t.Fatalf("challenge %q: want ErrValidation, got %v", bad, err)
		}
	}
}

func TestCeremonies_UserCancelled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newClient(t, softauth.New(softauth.Dismissing()))

	if _, err := c.Enroll(ctx, "u", "n", "d"); !errors.Is(err, errs.ErrUserCancelled) {
		t.Fatalf("enroll: want ErrUserCancelled, got %v", err)
	}
	if _, err := c.Assert(ctx, passkey.EncodeID([]byte("id")), challenge(t)); !errors.Is(err, errs.ErrUserCancelled) {
		t.Fatalf("assert: want ErrUserCancelled, got %v", err)
	}
}

func TestCeremonies_PlatformFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	id := passkey.EncodeID([]byte("id"))

	c := newClient(t, stubPlatform{})
	if _, err := c.Enroll(ctx, "u", "n", "d"); !errors.Is(err, errs.ErrAuthenticator) {
		t.Fatalf("nil creation: want ErrAuthenticator, got %v", err)
	}
	if _, err := c.Assert(ctx, id, challenge(t)); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("nil assertion: want ErrUnauthorized, got %v", err)
	}

	boom := errors.New("secure element fault")
	c = newClient(t, stubPlatform{createErr: boom, getErr: boom})
	if _, err := c.Enroll(ctx, "u", "n", "d"); !errors.Is(err, errs.ErrAuthenticator) {
		t.Fatalf("create error: want ErrAuthenticator, got %v", err)
	}
	if _, err := c.Assert(ctx, id, challenge(t)); !errors.Is(err, errs.ErrAuthenticator) {
		t.Fatalf("get error: want ErrAuthenticator, got %v", err)
	}
}

func TestRequestShapes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rec := &recorder{Platform: softauth.New()}
	c := newClient(t, rec)

	enr, err := c.Enroll(ctx, "user-7", "ravi@example.org", "Ravi")
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	co := rec.create
	if co.RelyingParty.ID != "vault.just-ease.test" || co.RelyingParty.Name != "Just-Ease" {
		t.Fatalf("rp: %+v", co.RelyingParty)
	}
	if co.User.Name != "ravi@example.org" || co.User.DisplayName != "Ravi" {
		t.Fatalf("user: %+v", co.User)
	}
	if len(co.Challenge) != passkey.ChallengeSize {
		t.Fatalf("challenge len=%d", len(co.Challenge))
	}
	var es, rs bool
	for _, p := range co.Parameters {
		es = es || p.Algorithm == webauthncose.AlgES256
		rs = rs || p.Algorithm == webauthncose.AlgRS256
	}
	if !es || !rs {
		t.Fatalf("want ES256 and RS256, got %+v", co.Parameters)
	}
	sel := co.AuthenticatorSelection
	if sel.UserVerification != protocol.VerificationRequired ||
		sel.ResidentKey != protocol.ResidentKeyRequirementPreferred ||
		sel.AuthenticatorAttachment != protocol.Platform {
		t.Fatalf("selection: %+v", sel)
	}
	if co.Timeout != 60000 {
		t.Fatalf("timeout=%d", co.Timeout)
	}

	if _, err := c.Assert(ctx, enr.CredentialID, challenge(t)); err != nil {
		t.Fatalf("Assert: %v", err)
	}
	ro := rec.get
	if ro.RelyingPartyID != "vault.just-ease.test" || ro.UserVerification != protocol.VerificationRequired {
		t.Fatalf("request: %+v", ro)
	}
	if len(ro.AllowedCredentials) != 1 {
		t.Fatalf("allow list must hold exactly one credential, got %d", len(ro.AllowedCredentials))
	}
	ac := ro.AllowedCredentials[0]
	if passkey.EncodeID(ac.CredentialID) != enr.CredentialID {
		t.Fatalf("allow list id mismatch")
	}
	if len(ac.Transport) != 1 || ac.Transport[0] != protocol.Internal {
		t.Fatalf("transports: %v", ac.Transport)
	}
	if string(co.Challenge) == string(ro.Challenge) {
		t.Fatalf("challenge reused across ceremonies")
	}
}
