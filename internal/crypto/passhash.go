// Package crypto hashes account passwords for beneficiaries and caseworkers.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"sync"

	"golang.org/x/crypto/argon2"
)

// SaltLen is the per-account salt size in bytes.
const SaltLen = 16

// Params are Argon2id cost parameters.
type Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
}

// DefaultParams is the server-side cost: 3 passes over 64 MiB.
var DefaultParams = Params{Time: 3, Memory: 64 * 1024, Threads: 1, KeyLen: 32}

// Secret is a stored password verifier.
type Secret struct {
	Hash []byte
	Salt []byte
}

// RandBytes returns n bytes from the system CSPRNG.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// NewSecret salts and hashes a new password.
func NewSecret(password string) (Secret, error) {
	salt, err := RandBytes(SaltLen)
	if err != nil {
		return Secret{}, err
	}
	return Secret{Hash: HashPassword([]byte(password), salt), Salt: salt}, nil
}

// Matches reports whether password produces the stored hash.
func (s Secret) Matches(password string) bool {
	return VerifyPassword([]byte(password), s.Salt, s.Hash)
}

// HashPassword derives the Argon2id hash of password with DefaultParams.
func HashPassword(password, salt []byte) []byte {
	p := DefaultParams
	return argon2.IDKey(password, salt, p.Time, p.Memory, p.Threads, p.KeyLen)
}

// VerifyPassword compares in constant time. A record without salt or hash never matches.
func VerifyPassword(password, salt, expected []byte) bool {
	if len(salt) == 0 || len(expected) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(HashPassword(password, salt), expected) == 1
}

var (
	decoyOnce sync.Once
	decoy     Secret
)

// Decoy spends the same work as a real verification. Login paths call it for
// unknown accounts so response time does not reveal which emails exist.
func Decoy(password string) {
	decoyOnce.Do(func() {
		decoy, _ = NewSecret("decoy")
	})
	_ = decoy.Matches(password)
}
