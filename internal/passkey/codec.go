// Package passkey drives platform authenticator ceremonies on the client side:
// capability probing, challenge generation, enrollment and assertion.
package passkey

import (
	"encoding/base64"
	"strings"
)

var idReplacer = strings.NewReplacer("+", "-", "/", "_")

// EncodeID returns the unpadded base64url form of b.
func EncodeID(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeID decodes a base64url value. Trailing padding and the standard
// base64 alphabet are accepted as well.
func DecodeID(s string) ([]byte, error) {
	s = idReplacer.Replace(strings.TrimRight(strings.TrimSpace(s), "="))
	return base64.RawURLEncoding.DecodeString(s)
}
