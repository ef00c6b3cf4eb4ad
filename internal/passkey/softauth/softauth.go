// Package softauth is a software platform authenticator. It backs the CLI on machines
// without a hardware authenticator and serves as the virtual authenticator in tests.
package softauth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"

	"github.com/AngiE300512/just-ease/internal/passkey"
)

const credentialIDLen = 32

// Authenticator flags (WebAuthn §6.1).
const (
	flagUP byte = 0x01
	flagUV byte = 0x04
	flagAT byte = 0x40
)

var encMode, _ = cbor.CTAP2EncOptions().EncMode()

type credential struct {
	id         []byte
	rpID       string
	userHandle []byte
	key        *ecdsa.PrivateKey
	counter    uint32
}

// Authenticator holds P-256 credentials in memory. It is safe for concurrent use.
type Authenticator struct {
	mu        sync.Mutex
	creds     map[string]*credential // base64url id -> credential
	order     []string
	aaguid    [16]byte
	available bool
	dismiss   bool
	noCounter bool
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// Unavailable makes the capability probe report no platform authenticator.
func Unavailable() Option { return func(a *Authenticator) { a.available = false } }

// Dismissing makes every prompt end as if the user closed it.
func Dismissing() Option { return func(a *Authenticator) { a.dismiss = true } }

// ZeroCounter makes every assertion report a signature counter of 0, as synced
// passkeys commonly do.
func ZeroCounter() Option { return func(a *Authenticator) { a.noCounter = true } }

// New returns an empty authenticator.
func New(opts ...Option) *Authenticator {
	a := &Authenticator{creds: map[string]*credential{}, available: true}
	copy(a.aaguid[:], "just-ease-softau")
	for _, o := range opts {
		o(a)
	}
	return a
}

var _ passkey.Platform = (*Authenticator)(nil)

// Available reports whether the authenticator accepts ceremonies.
func (a *Authenticator) Available(context.Context) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.available, nil
}

// Len returns the number of stored credentials.
func (a *Authenticator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.creds)
}

// Create makes a new ES256 credential with "none" attestation.
func (a *Authenticator) Create(ctx context.Context, origin string, opts *protocol.PublicKeyCredentialCreationOptions) (*protocol.CredentialCreationResponse, error) {
	if err := a.prompt(ctx); err != nil {
		return nil, err
	}
	if opts == nil || opts.RelyingParty.ID == "" {
		return nil, errors.New("softauth: relying party id required")
	}
	if !supportsES256(opts.Parameters) {
		return nil, errors.New("softauth: no supported algorithm requested")
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	id := make([]byte, credentialIDLen)
	if _, err := rand.Read(id); err != nil {
		return nil, err
	}

	coseKey, err := encodeCOSEKey(&key.PublicKey)
	if err != nil {
		return nil, err
	}
	authData := authenticatorData(opts.RelyingParty.ID, flagUP|flagUV|flagAT, 0)
	authData = append(authData, a.aaguid[:]...)
	authData = binary.BigEndian.AppendUint16(authData, uint16(len(id)))
	authData = append(authData, id...)
	authData = append(authData, coseKey...)

	attObj, err := encMode.Marshal(attestationObject{Format: "none", AttStmt: map[string]any{}, AuthData: authData})
	if err != nil {
		return nil, err
	}
	clientData, err := clientDataJSON(protocol.CreateCeremony, opts.Challenge, origin)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	sid := passkey.EncodeID(id)
	a.creds[sid] = &credential{id: id, rpID: opts.RelyingParty.ID, userHandle: userHandle(opts.User.ID), key: key}
	a.order = append(a.order, sid)
	a.mu.Unlock()

	return &protocol.CredentialCreationResponse{
		PublicKeyCredential: protocol.PublicKeyCredential{
			Credential:              protocol.Credential{ID: sid, Type: string(protocol.PublicKeyCredentialType)},
			RawID:                   id,
			AuthenticatorAttachment: string(protocol.Platform),
		},
		AttestationResponse: protocol.AuthenticatorAttestationResponse{
			AuthenticatorResponse: protocol.AuthenticatorResponse{ClientDataJSON: clientData},
			Transports:            []string{string(protocol.Internal)},
			AttestationObject:     attObj,
		},
	}, nil
}

// Get signs the challenge with the first allowed credential scoped to the request's RP.
// An empty allow list selects any credential for the RP.
func (a *Authenticator) Get(ctx context.Context, origin string, opts *protocol.PublicKeyCredentialRequestOptions) (*protocol.CredentialAssertionResponse, error) {
	if err := a.prompt(ctx); err != nil {
		return nil, err
	}
	if opts == nil || opts.RelyingPartyID == "" {
		return nil, errors.New("softauth: relying party id required")
	}

	a.mu.Lock()
	cred := a.pick(opts.RelyingPartyID, opts.AllowedCredentials)
	if cred == nil {
		a.mu.Unlock()
		return nil, passkey.ErrNoCredentials
	}
	if !a.noCounter {
		cred.counter++
	}
	counter := cred.counter
	a.mu.Unlock()

	authData := authenticatorData(opts.RelyingPartyID, flagUP|flagUV, counter)
	clientData, err := clientDataJSON(protocol.AssertCeremony, opts.Challenge, origin)
	if err != nil {
		return nil, err
	}
	cdHash := sha256.Sum256(clientData)
	digest := sha256.Sum256(append(append([]byte{}, authData...), cdHash[:]...))
	sig, err := ecdsa.SignASN1(rand.Reader, cred.key, digest[:])
	if err != nil {
		return nil, err
	}

	return &protocol.CredentialAssertionResponse{
		PublicKeyCredential: protocol.PublicKeyCredential{
			Credential:              protocol.Credential{ID: passkey.EncodeID(cred.id), Type: string(protocol.PublicKeyCredentialType)},
			RawID:                   cred.id,
			AuthenticatorAttachment: string(protocol.Platform),
		},
		AssertionResponse: protocol.AuthenticatorAssertionResponse{
			AuthenticatorResponse: protocol.AuthenticatorResponse{ClientDataJSON: clientData},
			AuthenticatorData:     authData,
			Signature:             sig,
			UserHandle:            cred.userHandle,
		},
	}, nil
}

// Forget removes a credential, as if the user deleted the passkey from the device.
func (a *Authenticator) Forget(credentialID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.creds[credentialID]; !ok {
		return false
	}
	delete(a.creds, credentialID)
	for i, id := range a.order {
		if id == credentialID {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
	return true
}

func (a *Authenticator) prompt(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.available {
		return errors.New("softauth: authenticator unavailable")
	}
	if a.dismiss {
		return passkey.ErrPromptDismissed
	}
	return nil
}

// pick must be called with a.mu held.
func (a *Authenticator) pick(rpID string, allowed []protocol.CredentialDescriptor) *credential {
	if len(allowed) == 0 {
		for _, id := range a.order {
			if c := a.creds[id]; c.rpID == rpID {
				return c
			}
		}
		return nil
	}
	for _, d := range allowed {
		if c, ok := a.creds[passkey.EncodeID(d.CredentialID)]; ok && c.rpID == rpID {
			return c
		}
	}
	return nil
}

type attestationObject struct {
	Format   string         `cbor:"fmt"`
	AttStmt  map[string]any `cbor:"attStmt"`
	AuthData []byte         `cbor:"authData"`
}

func supportsES256(params []protocol.CredentialParameter) bool {
	for _, p := range params {
		if p.Type == protocol.PublicKeyCredentialType && p.Algorithm == webauthncose.AlgES256 {
			return true
		}
	}
	return false
}

func authenticatorData(rpID string, flags byte, counter uint32) []byte {
	h := sha256.Sum256([]byte(rpID))
	out := make([]byte, 0, 37)
	out = append(out, h[:]...)
	out = append(out, flags)
	return binary.BigEndian.AppendUint32(out, counter)
}

func encodeCOSEKey(pub *ecdsa.PublicKey) ([]byte, error) {
	x := make([]byte, 32)
	y := make([]byte, 32)
	pub.X.FillBytes(x)
	pub.Y.FillBytes(y)
	return encMode.Marshal(webauthncose.EC2PublicKeyData{
		PublicKeyData: webauthncose.PublicKeyData{
			KeyType:   int64(webauthncose.EllipticKey),
			Algorithm: int64(webauthncose.AlgES256),
		},
		Curve:  int64(webauthncose.P256),
		XCoord: x,
		YCoord: y,
	})
}

func clientDataJSON(ceremony protocol.CeremonyType, challenge []byte, origin string) ([]byte, error) {
	if len(challenge) == 0 {
		return nil, errors.New("softauth: empty challenge")
	}
	return json.Marshal(protocol.CollectedClientData{
		Type:      ceremony,
		Challenge: base64.RawURLEncoding.EncodeToString(challenge),
		Origin:    origin,
	})
}

func userHandle(id any) []byte {
	switch v := id.(type) {
	case protocol.URLEncodedBase64:
		return append([]byte(nil), v...)
	case []byte:
		return append([]byte(nil), v...)
	case string:
		return []byte(v)
	case nil:
		return nil
	default:
		return []byte(fmt.Sprint(v))
	}
}
