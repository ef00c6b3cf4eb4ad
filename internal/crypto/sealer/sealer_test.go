package sealer

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gofrs/uuid/v5"
)

func testKey(b byte) []byte { return bytes.Repeat([]byte{b}, MinKeyLen) }

func TestNew_RejectsShortKey(t *testing.T) {
	t.Parallel()
	if _, err := New(make([]byte, MinKeyLen-1)); err == nil {
		t.Fatal("expected error for short key")
	}
}

func TestSealOpen_Roundtrip(t *testing.T) {
	t.Parallel()
	s, err := New(testKey(7))
	if err != nil {
		t.Fatal(err)
	}
	owner := uuid.Must(uuid.NewV4())
	ref := owner.String() + "/udid_card_1718000000000.pdf"
	pt := []byte("%PDF-1.7 \x00\x01\x02 udid")

	blob, err := s.Seal(ref, owner, "udid_card", pt)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if bytes.Contains(blob, pt) {
		t.Fatal("ciphertext leaks plaintext")
	}
	again, _ := s.Seal(ref, owner, "udid_card", pt)
	if bytes.Equal(blob, again) {
		t.Fatal("nonce reused")
	}

	got, err := s.Open(ref, owner, "udid_card", blob)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(got, pt) {
		t.Fatal("roundtrip mismatch")
	}
}

func TestOpen_RejectsMismatch(t *testing.T) {
	t.Parallel()
	s, _ := New(testKey(1))
	owner := uuid.Must(uuid.NewV4())
	ref := "a/ration_card_1.jpg"
	blob, _ := s.Seal(ref, owner, "ration_card", []byte("payload"))

	other, _ := New(testKey(2))
	cases := map[string]func() error{
		"owner": func() error {
			_, err := s.Open(ref, uuid.Must(uuid.NewV4()), "ration_card", blob)
			return err
		},
		"category": func() error { _, err := s.Open(ref, owner, "udid_card", blob); return err },
		"ref":      func() error { _, err := s.Open("b/ration_card_1.jpg", owner, "ration_card", blob); return err },
		"key":      func() error { _, err := other.Open(ref, owner, "ration_card", blob); return err },
		"short":    func() error { _, err := s.Open(ref, owner, "ration_card", blob[:10]); return err },
		"tampered": func() error {
			bad := append([]byte(nil), blob...)
			bad[len(bad)-1] ^= 0xff
			_, err := s.Open(ref, owner, "ration_card", bad)
			return err
		},
	}
	for name, fn := range cases {
		if err := fn(); !errors.Is(err, ErrOpen) {
			t.Fatalf("%s: want ErrOpen, got %v", name, err)
		}
	}
}
