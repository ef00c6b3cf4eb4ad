package passkey

import (
	"context"
	"errors"

	"github.com/go-webauthn/webauthn/protocol"
)

// Errors a Platform reports for outcomes that are not authenticator faults.
var (
	// ErrPromptDismissed is returned when the user closes the verification prompt.
	ErrPromptDismissed = errors.New("passkey: prompt dismissed")
	// ErrNoCredentials is returned by Get when no allowed credential lives on the authenticator.
	ErrNoCredentials = errors.New("passkey: no matching credential")
)

// Platform is the device credential API: a user-verifying platform authenticator.
// A nil Platform means the runtime exposes no credential API at all.
type Platform interface {
	// Available reports whether a user-verifying platform authenticator can be used right now.
	Available(ctx context.Context) (bool, error)
	// Create generates a new credential for the relying party at origin.
	Create(ctx context.Context, origin string, opts *protocol.PublicKeyCredentialCreationOptions) (*protocol.CredentialCreationResponse, error)
	// Get signs the request challenge with one of the allowed credentials.
	Get(ctx context.Context, origin string, opts *protocol.PublicKeyCredentialRequestOptions) (*protocol.CredentialAssertionResponse, error)
}

// Supported reports whether p exposes a user-verifying platform authenticator.
// It never panics: a missing platform, an error or a panic inside the platform yield false.
func Supported(ctx context.Context, p Platform) (ok bool) {
	if p == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	avail, err := p.Available(ctx)
	return err == nil && avail
}
