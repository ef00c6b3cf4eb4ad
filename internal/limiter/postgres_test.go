package limiter

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeRow struct{ scan func(dest ...any) error }

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

type fakeQuerier struct {
	rowErr       error
	blockedUntil time.Time
	fails        int

	execSQL  string
	execArgs []any
	execErr  error
}

var _ Querier = (*fakeQuerier)(nil)

func (f *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execSQL, f.execArgs = sql, args
	return pgconn.CommandTag{}, f.execErr
}

func (f *fakeQuerier) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	return fakeRow{scan: func(dest ...any) error {
		if f.rowErr != nil {
			return f.rowErr
		}
		switch {
		case strings.Contains(sql, "SELECT blocked_until"):
			*(dest[0].(*time.Time)) = f.blockedUntil
		case strings.Contains(sql, "RETURNING fail_count"):
			*(dest[0].(*int)) = f.fails
		default:
			return errors.New("unexpected query")
		}
		return nil
	}}
}

func newTestPG(q Querier, now time.Time) *PG {
	l := NewPG(q, DefaultPolicy)
	l.now = func() time.Time { return now }
	return l
}

func TestAllow(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	ok, wait, err := newTestPG(&fakeQuerier{rowErr: pgx.ErrNoRows}, now).Allow(ctx, "asha@example.org", []byte("h"))
	if err != nil || !ok || wait != 0 {
		t.Fatalf("no row: ok=%v wait=%v err=%v", ok, wait, err)
	}

	ok, wait, err = newTestPG(&fakeQuerier{blockedUntil: now.Add(10 * time.Minute)}, now).Allow(ctx, "s", []byte("h"))
	if err != nil || ok || wait != 10*time.Minute {
		t.Fatalf("blocked: ok=%v wait=%v err=%v", ok, wait, err)
	}

	ok, _, err = newTestPG(&fakeQuerier{blockedUntil: time.Unix(0, 0)}, now).Allow(ctx, "s", []byte("h"))
	if err != nil || !ok {
		t.Fatalf("epoch: ok=%v err=%v", ok, err)
	}

	ok, _, err = newTestPG(&fakeQuerier{rowErr: errors.New("db down")}, now).Allow(ctx, "s", []byte("h"))
	if err == nil || ok {
		t.Fatalf("db error must propagate and deny: ok=%v err=%v", ok, err)
	}
}

func TestSuccess(t *testing.T) {
	t.Parallel()
	fq := &fakeQuerier{}
	if err := NewPG(fq, DefaultPolicy).Success(context.Background(), "s", []byte("h")); err != nil {
		t.Fatalf("Success: %v", err)
	}
	if !strings.Contains(fq.execSQL, "INSERT INTO login_attempts") {
		t.Fatalf("unexpected exec: %s", fq.execSQL)
	}

	fq = &fakeQuerier{execErr: errors.New("exec fail")}
	if err := NewPG(fq, DefaultPolicy).Success(context.Background(), "s", []byte("h")); err == nil {
		t.Fatal("want exec error")
	}
}

func TestFailure(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	fq := &fakeQuerier{fails: 2}
	blocked, d, err := newTestPG(fq, now).Failure(ctx, "s", []byte("h"))
	if err != nil || blocked || d != 0 || fq.execSQL != "" {
		t.Fatalf("below threshold: blocked=%v d=%v err=%v exec=%q", blocked, d, err, fq.execSQL)
	}

	fq = &fakeQuerier{fails: 5}
	blocked, d, err = newTestPG(fq, now).Failure(ctx, "s", []byte("h"))
	if err != nil || !blocked || d != 15*time.Minute {
		t.Fatalf("at threshold: blocked=%v d=%v err=%v", blocked, d, err)
	}
	if !strings.Contains(fq.execSQL, "UPDATE login_attempts SET blocked_until") {
		t.Fatalf("must set blocked_until, exec=%s", fq.execSQL)
	}
	if got := fq.execArgs[2].(time.Time); !got.Equal(now.Add(15 * time.Minute)) {
		t.Fatalf("blocked until %v", got)
	}

	fq = &fakeQuerier{rowErr: errors.New("query error")}
	if _, _, err := newTestPG(fq, now).Failure(ctx, "s", []byte("h")); err == nil {
		t.Fatal("want error from RETURNING")
	}
}

func TestSubjectAndHashIP(t *testing.T) {
	t.Parallel()
	if got := Subject(CaseworkerPrefix, "  Meera@NGO.org "); got != "cw:meera@ngo.org" {
		t.Fatalf("Subject=%q", got)
	}
	if Subject(BeneficiaryPrefix, "a@b.c") == Subject(CaseworkerPrefix, "a@b.c") {
		t.Fatal("roles must not share counters")
	}
	a, b, c := HashIP("1.2.3.4:123"), HashIP("1.2.3.4:123"), HashIP("5.6.7.8:321")
	if string(a) != string(b) || string(a) == string(c) || len(a) != 32 {
		t.Fatalf("hash mismatch/len: %d", len(a))
	}
}
