package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDenylist(t *testing.T) (*Denylist, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewDenylist(client), mr
}

func TestDenylistRevokeAndCheck(t *testing.T) {
	dl, _ := setupDenylist(t)
	ctx := context.Background()

	revoked, err := dl.IsRevoked(ctx, "fp-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, dl.Revoke(ctx, "fp-1", time.Hour))

	revoked, err = dl.IsRevoked(ctx, "fp-1")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestDenylistEntryExpires(t *testing.T) {
	dl, mr := setupDenylist(t)
	ctx := context.Background()

	require.NoError(t, dl.Revoke(ctx, "fp-2", time.Minute))
	mr.FastForward(2 * time.Minute)

	revoked, err := dl.IsRevoked(ctx, "fp-2")
	require.NoError(t, err)
	assert.False(t, revoked, "entries lapse with the token's natural expiry")
}

func TestDenylistExpiredTokenIsNoop(t *testing.T) {
	dl, _ := setupDenylist(t)
	assert.NoError(t, dl.Revoke(context.Background(), "fp-3", -time.Second))
}

func TestDenylistValidatesFingerprint(t *testing.T) {
	dl, _ := setupDenylist(t)
	assert.Error(t, dl.Revoke(context.Background(), "", time.Hour))
	_, err := dl.IsRevoked(context.Background(), "")
	assert.Error(t, err)
}
