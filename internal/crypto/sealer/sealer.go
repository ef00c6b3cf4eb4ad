// Package sealer encrypts vault blobs at rest with XChaCha20-Poly1305.
//
// Every blob gets its own key, derived with HKDF-SHA256 from the master key using the blob
// path as info. The owner ID and document category are bound as associated data, so a blob
// copied to another owner or category fails to open.
package sealer

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// MinKeyLen is the shortest accepted master key.
const MinKeyLen = 32

// ErrOpen is returned when a blob fails authentication.
var ErrOpen = errors.New("sealer: blob authentication failed")

// Sealer seals and opens blobs under a master key.
type Sealer struct {
	master []byte
}

// New copies master and returns a Sealer.
func New(master []byte) (*Sealer, error) {
	if len(master) < MinKeyLen {
		return nil, fmt.Errorf("sealer: master key must be at least %d bytes, got %d", MinKeyLen, len(master))
	}
	return &Sealer{master: append([]byte(nil), master...)}, nil
}

// Seal encrypts plaintext for the blob stored at ref. Output is nonce || ciphertext.
func (s *Sealer) Seal(ref string, owner uuid.UUID, category string, plaintext []byte) ([]byte, error) {
	aead, err := s.aead(ref)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, aad(owner, category)), nil
}

// Open decrypts a blob sealed by Seal with the same ref, owner and category.
func (s *Sealer) Open(ref string, owner uuid.UUID, category string, blob []byte) ([]byte, error) {
	if len(blob) < chacha20poly1305.NonceSizeX {
		return nil, fmt.Errorf("%w: blob too short", ErrOpen)
	}
	aead, err := s.aead(ref)
	if err != nil {
		return nil, err
	}
	nonce, ct := blob[:chacha20poly1305.NonceSizeX], blob[chacha20poly1305.NonceSizeX:]
	pt, err := aead.Open(nil, nonce, ct, aad(owner, category))
	if err != nil {
		return nil, ErrOpen
	}
	return pt, nil
}

func (s *Sealer) aead(ref string) (cipher.AEAD, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := hkdf.New(sha256.New, s.master, nil, []byte(ref)).Read(key); err != nil {
		return nil, err
	}
	return chacha20poly1305.NewX(key)
}

func aad(owner uuid.UUID, category string) []byte {
	out := make([]byte, 0, uuid.Size+len(category))
	out = append(out, owner.Bytes()...)
	return append(out, category...)
}
