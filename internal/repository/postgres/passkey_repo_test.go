package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/AngiE300512/just-ease/internal/errs"
	"github.com/AngiE300512/just-ease/internal/model"
)

func TestPasskeyRepo_Upsert(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewPasskeyRepo(db)
	ctx := context.Background()
	now := time.Now()
	c := &model.PasskeyCredential{ID: "cred-1", UserID: uuid.Must(uuid.NewV4()), PublicKey: []byte{0xa5}}

	mock.ExpectQuery(`INSERT INTO passkey_credentials .* ON CONFLICT \(user_id\) DO UPDATE`).
		WithArgs("cred-1", c.UserID, []byte{0xa5}, int64(0)).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	require.NoError(t, r.Upsert(ctx, c))
	require.Equal(t, now, c.UpdatedAt)

	// The same credential ID held by another account violates the primary key.
	mock.ExpectQuery(`INSERT INTO passkey_credentials`).
		WithArgs("cred-1", c.UserID, []byte{0xa5}, int64(0)).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	require.ErrorIs(t, r.Upsert(ctx, c), errs.ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPasskeyRepo_Get(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewPasskeyRepo(db)
	ctx := context.Background()
	uid := uuid.Must(uuid.NewV4())
	cols := []string{"id", "user_id", "public_key", "sign_count", "created_at", "updated_at"}

	mock.ExpectQuery(`FROM passkey_credentials WHERE user_id=\$1`).WithArgs(uid).
		WillReturnRows(pgxmock.NewRows(cols).AddRow("cred-1", uid, []byte{1}, int64(7), time.Now(), time.Now()))
	c, err := r.GetByUser(ctx, uid)
	require.NoError(t, err)
	require.Equal(t, uint32(7), c.SignCount)

	mock.ExpectQuery(`FROM passkey_credentials WHERE id=\$1`).WithArgs("nope").WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByID(ctx, "nope")
	require.ErrorIs(t, err, errs.ErrNotFound)

	mock.ExpectQuery(`FROM passkey_credentials WHERE id=\$1`).WithArgs("bad").
		WillReturnRows(pgxmock.NewRows(cols).AddRow("bad", uid, []byte{1}, int64(-1), time.Now(), time.Now()))
	_, err = r.GetByID(ctx, "bad")
	require.ErrorIs(t, err, errs.ErrInvalidRecord)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPasskeyRepo_AdvanceCounter(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewPasskeyRepo(db)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE passkey_credentials SET sign_count=\$3`).WithArgs("cred-1", int64(3), int64(4)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.AdvanceCounter(ctx, "cred-1", 3, 4))

	mock.ExpectExec(`UPDATE passkey_credentials SET sign_count=\$3`).WithArgs("cred-1", int64(3), int64(4)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, r.AdvanceCounter(ctx, "cred-1", 3, 4), errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPasskeyRepo_Challenges(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewPasskeyRepo(db)
	ctx := context.Background()
	h := []byte("hash")
	uid := uuid.Must(uuid.NewV4())
	now := time.Now()
	exp := now.Add(time.Minute)

	mock.ExpectExec(`INSERT INTO passkey_challenges`).WithArgs(h, uid, exp).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.StoreChallenge(ctx, h, uid, exp))

	mock.ExpectExec(`INSERT INTO passkey_challenges`).WithArgs(h, uid, exp).WillReturnError(&pgconn.PgError{Code: "23505"})
	require.ErrorIs(t, r.StoreChallenge(ctx, h, uid, exp), errs.ErrAlreadyExists)

	mock.ExpectExec(`DELETE FROM passkey_challenges WHERE hash=\$1 AND user_id=\$2 AND expires_at > \$3`).
		WithArgs(h, uid, now).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, r.TakeChallenge(ctx, h, uid, now))

	// a second take finds nothing
	mock.ExpectExec(`DELETE FROM passkey_challenges WHERE hash=\$1`).
		WithArgs(h, uid, now).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	require.ErrorIs(t, r.TakeChallenge(ctx, h, uid, now), errs.ErrNotFound)

	mock.ExpectExec(`DELETE FROM passkey_challenges WHERE expires_at < \$1`).WithArgs(exp).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	n, err := r.PurgeChallenges(ctx, exp)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}
