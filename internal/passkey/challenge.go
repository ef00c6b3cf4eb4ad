package passkey

import (
	"github.com/go-webauthn/webauthn/protocol"
)

// ChallengeSize is the number of random bytes in every challenge.
const ChallengeSize = protocol.ChallengeLength

// MinChallengeSize is the shortest challenge, in bytes, an assertion will sign.
const MinChallengeSize = 16

// NewChallenge returns a fresh 32-byte random challenge in unpadded base64url form.
// Each value is meant for exactly one create or get call.
func NewChallenge() (string, error) {
	c, err := protocol.CreateChallenge()
	if err != nil {
		return "", err
	}
	return c.String(), nil
}
