package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/AngiE300512/just-ease/internal/errs"
)

func TestLinkRepo_RedeemOnce(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewLinkRepo(db)
	ctx := context.Background()
	exp := time.Now().Add(5 * time.Minute)

	mock.ExpectExec(`INSERT INTO redeemed_links \(id, expires_at\)`).WithArgs("link-1", exp).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Redeem(ctx, "link-1", exp))

	mock.ExpectExec(`INSERT INTO redeemed_links`).WithArgs("link-1", exp).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	require.ErrorIs(t, r.Redeem(ctx, "link-1", exp), errs.ErrAlreadyExists)

	mock.ExpectExec(`INSERT INTO redeemed_links`).WithArgs("link-2", exp).
		WillReturnError(errors.New("conn reset"))
	require.EqualError(t, r.Redeem(ctx, "link-2", exp), "conn reset")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkRepo_PurgeLinks(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewLinkRepo(db)
	now := time.Now()

	mock.ExpectExec(`DELETE FROM redeemed_links WHERE expires_at < \$1`).WithArgs(now).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	n, err := r.PurgeLinks(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
	require.NoError(t, mock.ExpectationsWereMet())
}
