package passkey

import (
	"encoding/base64"
	"testing"
)

func TestNewChallenge_DistinctAndSized(t *testing.T) {
	t.Parallel()

	const samples = 10000
	wantLen := base64.RawURLEncoding.EncodedLen(ChallengeSize)
	seen := make(map[string]struct{}, samples)
	for i := 0; i < samples; i++ {
		c, err := NewChallenge()
		if err != nil {
			t.Fatalf("NewChallenge: %v", err)
		}
		if len(c) != wantLen {
			t.Fatalf("len=%d, want=%d (%q)", len(c), wantLen, c)
		}
		if _, dup := seen[c]; dup {
			t.Fatalf("duplicate challenge after %d samples", i)
		}
		seen[c] = struct{}{}
	}

	c, _ := NewChallenge()
	raw, err := DecodeID(c)
	if err != nil || len(raw) != 32 {
		t.Fatalf("decoded challenge: len=%d err=%v", len(raw), err)
	}
}
