package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caregrid/caregrid/internal/ports"
)

func setupAdmissionStore(t *testing.T) (*AdmissionStore, *time.Time) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewAdmissionStore(client)
	now := time.Now()
	store.now = func() time.Time { return now }
	return store, &now
}

func loginPolicy() ports.AdmissionPolicy {
	return ports.AdmissionPolicy{Capacity: 10, RefillTokens: 10, RefillPeriod: time.Minute}
}

func TestTryConsumeExhaustsCapacity(t *testing.T) {
	store, _ := setupAdmissionStore(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		d, err := store.TryConsume(ctx, "login:doc@stmarys.example", loginPolicy())
		require.NoError(t, err)
		assert.True(t, d.Allowed, "call %d should be admitted", i+1)
	}

	d, err := store.TryConsume(ctx, "login:doc@stmarys.example", loginPolicy())
	require.NoError(t, err)
	assert.False(t, d.Allowed, "11th call must be rejected")
	assert.Positive(t, d.WaitSeconds)
}

func TestTryConsumeRefills(t *testing.T) {
	store, now := setupAdmissionStore(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := store.TryConsume(ctx, "login:doc@stmarys.example", loginPolicy())
		require.NoError(t, err)
	}
	d, err := store.TryConsume(ctx, "login:doc@stmarys.example", loginPolicy())
	require.NoError(t, err)
	require.False(t, d.Allowed)

	// After the full refill period the bucket is full again.
	*now = now.Add(time.Minute)
	d, err = store.TryConsume(ctx, "login:doc@stmarys.example", loginPolicy())
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestTryConsumeKeysAreIndependent(t *testing.T) {
	store, _ := setupAdmissionStore(t)
	ctx := context.Background()
	policy := ports.AdmissionPolicy{Capacity: 1, RefillTokens: 1, RefillPeriod: time.Minute}

	d, err := store.TryConsume(ctx, "login:a@x.example", policy)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	d, err = store.TryConsume(ctx, "login:a@x.example", policy)
	require.NoError(t, err)
	assert.False(t, d.Allowed, "same key is exhausted")

	d, err = store.TryConsume(ctx, "login:b@x.example", policy)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "other keys are unaffected")
}

func TestTryConsumeLastTokenRaceFree(t *testing.T) {
	store, _ := setupAdmissionStore(t)
	ctx := context.Background()
	policy := ports.AdmissionPolicy{Capacity: 1, RefillTokens: 1, RefillPeriod: time.Hour}

	const contenders = 8
	var wg sync.WaitGroup
	results := make([]bool, contenders)
	errs := make([]error, contenders)

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, err := store.TryConsume(ctx, "oauth:203.0.113.9", policy)
			errs[i] = err
			results[i] = d.Allowed
		}(i)
	}
	wg.Wait()

	admitted := 0
	for i, ok := range results {
		require.NoError(t, errs[i])
		if ok {
			admitted++
		}
	}
	assert.Equal(t, 1, admitted, "exactly one contender may take the last token")
}

func TestTryConsumeValidatesInput(t *testing.T) {
	store, _ := setupAdmissionStore(t)
	ctx := context.Background()

	_, err := store.TryConsume(ctx, "", loginPolicy())
	assert.Error(t, err)

	_, err = store.TryConsume(ctx, "login:x", ports.AdmissionPolicy{})
	assert.Error(t, err)
}

func TestTryConsumePropagatesStoreFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	store := NewAdmissionStore(client)
	mr.Close()
	require.NoError(t, client.Close())

	_, err := store.TryConsume(context.Background(), "login:x", loginPolicy())
	assert.Error(t, err, "store failure must propagate, not fail open")
}
