package service

import (
	"context"
	"crypto/sha256"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap/zaptest"

	"github.com/AngiE300512/just-ease/internal/errs"
	"github.com/AngiE300512/just-ease/internal/model"
	"github.com/AngiE300512/just-ease/internal/passkey"
	"github.com/AngiE300512/just-ease/internal/passkey/softauth"
)

const testOrigin = "https://vault.just-ease.test"

type passkeyFixture struct {
	repo   *fakePasskeys
	svc    *PasskeyServiceImpl
	client *passkey.Client
	user   uuid.UUID
	enr    *passkey.Enrollment
}

func newPasskeyFixture(t *testing.T, opts ...softauth.Option) *passkeyFixture {
	t.Helper()
	rp, err := passkey.NewRelyingParty(testOrigin, "Just-Ease")
	if err != nil {
		t.Fatal(err)
	}
	f := &passkeyFixture{
		repo:   newFakePasskeys(),
		client: passkey.NewClient(softauth.New(opts...), rp),
		user:   uuid.Must(uuid.NewV4()),
	}
	f.svc = NewPasskeyService(f.repo, rp.ID, []string{rp.Origin}, zaptest.NewLogger(t))

	f.enr, err = f.client.Enroll(context.Background(), f.user.String(), "asha@example.org", "Asha Rao")
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if _, err := f.svc.Register(context.Background(), f.user, f.enr.CredentialID, f.enr.PublicKey); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return f
}

// assert signs a challenge freshly issued by the service.
func (f *passkeyFixture) assert(t *testing.T) *passkey.Assertion {
	t.Helper()
	ch, _, err := f.svc.BeginVerify(context.Background(), f.user)
	if err != nil {
		t.Fatalf("BeginVerify: %v", err)
	}
	a, err := f.client.Assert(context.Background(), f.enr.CredentialID, ch)
	if err != nil {
		t.Fatalf("Assert: %v", err)
	}
	return a
}

func TestPasskey_Register_Validation(t *testing.T) {
	t.Parallel()
	svc := NewPasskeyService(newFakePasskeys(), "vault.just-ease.test", []string{testOrigin}, nil)
	ctx := context.Background()
	uid := uuid.Must(uuid.NewV4())

	cases := []struct{ user uuid.UUID; id, key string }{
		{uuid.Nil, "AAAA", "AAAA"},
		{uid, "", "AAAA"},
		{uid, "!!!", "AAAA"},
		{uid, "AAAA", ""},
		{uid, "AAAA", passkey.EncodeID([]byte("not a cose key"))},
	}
	for _, c := range cases {
		if _, err := svc.Register(ctx, c.user, c.id, c.key); !errors.Is(err, errs.ErrValidation) {
			t.Fatalf("Register(%q,%q) = %v, want ErrValidation", c.id, c.key, err)
		}
	}
}

func TestPasskey_EnrollStatusVerify(t *testing.T) {
	t.Parallel()
	f := newPasskeyFixture(t)
	ctx := context.Background()

	st, err := f.svc.Status(ctx, f.user)
	if err != nil || st.ID != f.enr.CredentialID || st.SignCount != 0 {
		t.Fatalf("Status: %+v %v", st, err)
	}
	if _, err := f.svc.Status(ctx, uuid.Must(uuid.NewV4())); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("Status of stranger: %v", err)
	}

	a1 := f.assert(t)
	if err := f.svc.Verify(ctx, f.user, *a1); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got := f.repo.byID[f.enr.CredentialID].SignCount; got == 0 {
		t.Fatal("counter not persisted")
	}

	// the same assertion is never accepted twice
	if err := f.svc.Verify(ctx, f.user, *a1); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("replay: %v", err)
	}

	a2 := f.assert(t)
	if err := f.svc.Verify(ctx, f.user, *a2); err != nil {
		t.Fatalf("second Verify: %v", err)
	}
}

func TestPasskey_Verify_Rejections(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("other account", func(t *testing.T) {
		f := newPasskeyFixture(t)
		if err := f.svc.Verify(ctx, uuid.Must(uuid.NewV4()), *f.assert(t)); !errors.Is(err, errs.ErrUnauthorized) {
			t.Fatalf("got %v", err)
		}
	})
	t.Run("unknown credential", func(t *testing.T) {
		f := newPasskeyFixture(t)
		a := f.assert(t)
		a.CredentialID = passkey.EncodeID([]byte("someone else"))
		if err := f.svc.Verify(ctx, f.user, *a); !errors.Is(err, errs.ErrUnauthorized) {
			t.Fatalf("got %v", err)
		}
	})
	t.Run("tampered signature", func(t *testing.T) {
		f := newPasskeyFixture(t)
		a := f.assert(t)
		sig, _ := passkey.DecodeID(a.Signature)
		sig[len(sig)-1] ^= 0xff
		a.Signature = passkey.EncodeID(sig)
		if err := f.svc.Verify(ctx, f.user, *a); !errors.Is(err, errs.ErrUnauthorized) {
			t.Fatalf("got %v", err)
		}
	})
	t.Run("foreign origin", func(t *testing.T) {
		f := newPasskeyFixture(t)
		f.svc.origins = []string{"https://elsewhere.test"}
		if err := f.svc.Verify(ctx, f.user, *f.assert(t)); !errors.Is(err, errs.ErrUnauthorized) {
			t.Fatalf("got %v", err)
		}
	})
	t.Run("counter regression", func(t *testing.T) {
		f := newPasskeyFixture(t)
		f.repo.byID[f.enr.CredentialID].SignCount = 100
		if err := f.svc.Verify(ctx, f.user, *f.assert(t)); !errors.Is(err, errs.ErrUnauthorized) {
			t.Fatalf("got %v", err)
		}
	})
	t.Run("challenge never issued", func(t *testing.T) {
		f := newPasskeyFixture(t)
		ch, err := passkey.NewChallenge()
		if err != nil {
			t.Fatal(err)
		}
		a, err := f.client.Assert(ctx, f.enr.CredentialID, ch)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.svc.Verify(ctx, f.user, *a); !errors.Is(err, errs.ErrUnauthorized) {
			t.Fatalf("got %v", err)
		}
	})
	t.Run("challenge expired", func(t *testing.T) {
		f := newPasskeyFixture(t)
		a := f.assert(t)
		f.svc.now = func() time.Time { return time.Now().Add(ChallengeTTL + time.Second) }
		if err := f.svc.Verify(ctx, f.user, *a); !errors.Is(err, errs.ErrUnauthorized) {
			t.Fatalf("got %v", err)
		}
	})
	t.Run("challenge issued to another account", func(t *testing.T) {
		f := newPasskeyFixture(t)
		other := uuid.Must(uuid.NewV4())
		f.repo.byID["other"] = &model.PasskeyCredential{ID: "other", UserID: other}
		ch, _, err := f.svc.BeginVerify(ctx, other)
		if err != nil {
			t.Fatal(err)
		}
		a, err := f.client.Assert(ctx, f.enr.CredentialID, ch)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.svc.Verify(ctx, f.user, *a); !errors.Is(err, errs.ErrUnauthorized) {
			t.Fatalf("got %v", err)
		}
	})
	t.Run("counter moved concurrently", func(t *testing.T) {
		f := newPasskeyFixture(t)
		f.repo.advanceErr = errs.ErrNotFound
		if err := f.svc.Verify(ctx, f.user, *f.assert(t)); !errors.Is(err, errs.ErrUnauthorized) {
			t.Fatalf("got %v", err)
		}
	})
	t.Run("garbage encoding", func(t *testing.T) {
		f := newPasskeyFixture(t)
		a := f.assert(t)
		a.ClientDataJSON = "%%%"
		if err := f.svc.Verify(ctx, f.user, *a); !errors.Is(err, errs.ErrUnauthorized) {
			t.Fatalf("got %v", err)
		}
	})
}

func TestPasskey_Register_ReplacesAndGuardsIDs(t *testing.T) {
	t.Parallel()
	f := newPasskeyFixture(t)
	ctx := context.Background()

	// another account cannot claim the same credential id
	if _, err := f.svc.Register(ctx, uuid.Must(uuid.NewV4()), f.enr.CredentialID, f.enr.PublicKey); !errors.Is(err, errs.ErrAlreadyExists) {
		t.Fatalf("got %v", err)
	}

	enr2, err := f.client.Enroll(ctx, f.user.String(), "asha@example.org", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Register(ctx, f.user, enr2.CredentialID, enr2.PublicKey); err != nil {
		t.Fatalf("re-enroll: %v", err)
	}
	st, err := f.svc.Status(ctx, f.user)
	if err != nil || st.ID != enr2.CredentialID {
		t.Fatalf("Status after re-enroll: %+v %v", st, err)
	}
	if len(f.repo.byID) != 1 {
		t.Fatalf("want one credential per user, have %d", len(f.repo.byID))
	}
}

func TestPasskey_BeginVerify(t *testing.T) {
	t.Parallel()
	f := newPasskeyFixture(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	ch, exp, err := f.svc.BeginVerify(ctx, f.user)
	if err != nil {
		t.Fatalf("BeginVerify: %v", err)
	}
	if raw, err := passkey.DecodeID(ch); err != nil || len(raw) != passkey.ChallengeSize {
		t.Fatalf("challenge %q: len=%d err=%v", ch, len(raw), err)
	}
	if !exp.Equal(now.Add(ChallengeTTL)) {
		t.Fatalf("expires at %v", exp)
	}
	h := sha256.Sum256([]byte(ch))
	if c, ok := f.repo.challenges[string(h[:])]; !ok || c.user != f.user {
		t.Fatalf("challenge not stored for user: %+v", c)
	}

	if _, _, err := f.svc.BeginVerify(ctx, uuid.Must(uuid.NewV4())); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("not enrolled: %v", err)
	}
	f.repo.storeErr = errors.New("db down")
	if _, _, err := f.svc.BeginVerify(ctx, f.user); err == nil {
		t.Fatal("store failure swallowed")
	}
}

// Synced passkeys report a zero counter on every use, so only the stored
// challenge stops a captured assertion from being accepted again.
func TestPasskey_ZeroCounterAssertionNotReplayable(t *testing.T) {
	t.Parallel()
	f := newPasskeyFixture(t, softauth.ZeroCounter())
	ctx := context.Background()

	a := f.assert(t)
	if err := f.svc.Verify(ctx, f.user, *a); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got := f.repo.byID[f.enr.CredentialID].SignCount; got != 0 {
		t.Fatalf("counter=%d, want 0", got)
	}
	if err := f.svc.Verify(ctx, f.user, *a); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("immediate replay: %v", err)
	}

	later := time.Now().Add(2 * ChallengeTTL)
	f.svc.now = func() time.Time { return later }
	if _, err := f.svc.PurgeChallenges(ctx); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Verify(ctx, f.user, *a); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("replay after purge: %v", err)
	}

	// a fresh challenge still works with the zero counter
	if err := f.svc.Verify(ctx, f.user, *f.assert(t)); err != nil {
		t.Fatalf("fresh assertion: %v", err)
	}
}

func TestPasskey_PurgeChallenges(t *testing.T) {
	t.Parallel()
	f := newPasskeyFixture(t)
	ctx := context.Background()

	// one challenge is used, one is abandoned
	if err := f.svc.Verify(ctx, f.user, *f.assert(t)); err != nil {
		t.Fatal(err)
	}
	if _, _, err := f.svc.BeginVerify(ctx, f.user); err != nil {
		t.Fatal(err)
	}
	n, err := f.svc.PurgeChallenges(ctx)
	if err != nil || n != 0 {
		t.Fatalf("live challenge purged: n=%d err=%v", n, err)
	}
	f.svc.now = func() time.Time { return time.Now().Add(2 * ChallengeTTL) }
	n, err = f.svc.PurgeChallenges(ctx)
	if err != nil || n != 1 {
		t.Fatalf("abandoned challenge kept: n=%d err=%v", n, err)
	}
}
