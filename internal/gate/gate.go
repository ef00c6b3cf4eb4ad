// Package gate sequences the vault unlock flow: probe, credential check, verification, unlock.
// It only guards the client against accidental exposure; the server checks ownership on every call.
package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/AngiE300512/just-ease/internal/errs"
	"github.com/AngiE300512/just-ease/internal/model"
	"github.com/AngiE300512/just-ease/internal/passkey"
)

// State of the gate.
type State int

// Gate states. Locked is the initial state.
const (
	Locked State = iota
	Verifying
	Unlocked
)

func (s State) String() string {
	switch s {
	case Locked:
		return "locked"
	case Verifying:
		return "verifying"
	case Unlocked:
		return "unlocked"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Method records how the last unlock succeeded.
type Method string

// Unlock methods.
const (
	MethodNone     Method = ""
	MethodPasskey  Method = "passkey"
	MethodPassword Method = "password"
)

// ErrBusy is returned by Unlock while another verification is running.
var ErrBusy = errors.New("verification in progress")

// Asserter runs the platform assertion ceremony. *passkey.Client implements it.
type Asserter interface {
	Supported(ctx context.Context) bool
	Assert(ctx context.Context, credentialID, challenge string) (*passkey.Assertion, error)
}

// Account answers whether the signed-in user has an enrolled credential.
// It returns errs.ErrNotFound when none is enrolled.
type Account interface {
	CredentialID(ctx context.Context) (string, error)
}

// Confirmer checks an assertion with the server. BeginAssertion fetches the single-use
// challenge the server expects the assertion to sign.
type Confirmer interface {
	BeginAssertion(ctx context.Context) (string, error)
	ConfirmAssertion(ctx context.Context, a *passkey.Assertion) error
}

// Session is the password-session fallback: it succeeds when the user holds a valid session.
type Session interface {
	Resume(ctx context.Context) error
}

// Vault is the document store the gate guards.
type Vault interface {
	List(ctx context.Context) ([]model.Document, error)
	Upload(ctx context.Context, category model.Category, fileName, contentType string, data []byte) (*model.Document, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Option configures a Gate.
type Option func(*Gate)

// WithConfirmer requires server confirmation of every assertion.
func WithConfirmer(c Confirmer) Option { return func(g *Gate) { g.confirm = c } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(g *Gate) { g.log = l } }

// WithObserver registers a callback invoked on every state change, outside the gate's lock.
func WithObserver(fn func(from, to State)) Option { return func(g *Gate) { g.observe = fn } }

// Gate is the access-gate controller. The zero value is not usable; construct with New.
type Gate struct {
	asserter Asserter
	account  Account
	session  Session
	vault    Vault
	confirm  Confirmer
	observe  func(from, to State)
	log      *zap.Logger

	mu      sync.Mutex
	state   State
	method  Method
	lastErr error
}

// New returns a Gate in the Locked state. asserter may be nil when the runtime has no credential API.
func New(asserter Asserter, account Account, session Session, vault Vault, opts ...Option) *Gate {
	g := &Gate{asserter: asserter, account: account, session: session, vault: vault, log: zap.NewNop()}
	for _, o := range opts {
		o(g)
	}
	return g
}

// State returns the current state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Method returns how the gate was last unlocked, or MethodNone while not unlocked.
func (g *Gate) Method() Method {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.method
}

// LastError returns the error of the last failed unlock. It is cleared by a successful unlock.
func (g *Gate) LastError() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastErr
}

// Unlock verifies the user. With an enrolled credential and a capable platform it runs the
// assertion ceremony, otherwise it falls back to the password session. On failure the gate
// returns to Locked and the error is kept for LastError. Unlocking an unlocked gate is a no-op.
func (g *Gate) Unlock(ctx context.Context) error {
	g.mu.Lock()
	switch g.state {
	case Unlocked:
		g.mu.Unlock()
		return nil
	case Verifying:
		g.mu.Unlock()
		return ErrBusy
	}
	g.state = Verifying
	g.mu.Unlock()
	g.notify(Locked, Verifying)

	method, err := g.verify(ctx)

	g.mu.Lock()
	if err != nil {
		g.lastErr = err
		g.method = MethodNone
		g.state = Locked
		g.mu.Unlock()
		g.notify(Verifying, Locked)
		g.log.Info("vault unlock failed", zap.Error(err))
		return err
	}
	g.lastErr = nil
	g.method = method
	g.state = Unlocked
	g.mu.Unlock()
	g.notify(Verifying, Unlocked)
	g.log.Info("vault unlocked", zap.String("method", string(method)))
	return nil
}

// Lock re-locks the gate. It has no effect while a verification is running.
func (g *Gate) Lock() {
	g.mu.Lock()
	if g.state != Unlocked {
		g.mu.Unlock()
		return
	}
	g.method = MethodNone
	g.state = Locked
	g.mu.Unlock()
	g.notify(Unlocked, Locked)
}

// Documents lists the vault. It fails with errs.ErrLocked unless the gate is unlocked.
func (g *Gate) Documents(ctx context.Context) ([]model.Document, error) {
	if err := g.require(); err != nil {
		return nil, err
	}
	return g.vault.List(ctx)
}

// Upload stores a document. It fails with errs.ErrLocked unless the gate is unlocked.
func (g *Gate) Upload(ctx context.Context, category model.Category, fileName, contentType string, data []byte) (*model.Document, error) {
	if err := g.require(); err != nil {
		return nil, err
	}
	return g.vault.Upload(ctx, category, fileName, contentType, data)
}

// Delete removes a document. It fails with errs.ErrLocked unless the gate is unlocked.
func (g *Gate) Delete(ctx context.Context, id uuid.UUID) error {
	if err := g.require(); err != nil {
		return err
	}
	return g.vault.Delete(ctx, id)
}

func (g *Gate) verify(ctx context.Context) (Method, error) {
	credID, err := g.account.CredentialID(ctx)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return MethodNone, fmt.Errorf("credential lookup: %w", err)
	}

	if credID != "" && g.asserter != nil && g.asserter.Supported(ctx) {
		challenge, err := g.challenge(ctx)
		if err != nil {
			return MethodNone, err
		}
		a, err := g.asserter.Assert(ctx, credID, challenge)
		if err != nil {
			return MethodNone, err
		}
		if a == nil {
			return MethodNone, errs.ErrUnauthorized
		}
		if g.confirm != nil {
			if err := g.confirm.ConfirmAssertion(ctx, a); err != nil {
				return MethodNone, err
			}
		}
		return MethodPasskey, nil
	}

	if err := g.session.Resume(ctx); err != nil {
		return MethodNone, err
	}
	return MethodPassword, nil
}

// challenge comes from the server when one confirms assertions, otherwise it is minted locally.
func (g *Gate) challenge(ctx context.Context) (string, error) {
	if g.confirm == nil {
		return passkey.NewChallenge()
	}
	c, err := g.confirm.BeginAssertion(ctx)
	if err != nil {
		return "", fmt.Errorf("begin assertion: %w", err)
	}
	return c, nil
}

func (g *Gate) require() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != Unlocked {
		return fmt.Errorf("%w: gate is %s", errs.ErrLocked, g.state)
	}
	return nil
}

func (g *Gate) notify(from, to State) {
	if g.observe != nil {
		g.observe(from, to)
	}
}
