package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/psds-microservice/voice-support/internal/errs"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T, opts ...Option) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, opts...), mr
}

func TestClaimLifecycle(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()
	fp := Fingerprint("u-1", "my order never arrived")

	c, err := s.Claim(ctx, "k1", fp)
	require.NoError(t, err)
	assert.True(t, c.Claimed)

	_, err = s.Claim(ctx, "k1", fp)
	assert.ErrorIs(t, err, errs.ErrIdempotencyInFlight)

	require.NoError(t, s.Complete(ctx, "k1", fp, 17))
	c, err = s.Claim(ctx, "k1", fp)
	require.NoError(t, err)
	assert.False(t, c.Claimed)
	assert.Equal(t, uint64(17), c.TicketID)
}

func TestClaimRejectsDifferentRequest(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()
	first := Fingerprint("u-1", "my order never arrived")
	other := Fingerprint("u-1", "my device caught fire")

	_, err := s.Claim(ctx, "k5", first)
	require.NoError(t, err)
	_, err = s.Claim(ctx, "k5", other)
	assert.ErrorIs(t, err, errs.ErrIdempotencyKeyReused)

	require.NoError(t, s.Complete(ctx, "k5", first, 3))
	_, err = s.Claim(ctx, "k5", other)
	assert.ErrorIs(t, err, errs.ErrIdempotencyKeyReused)
}

func TestFingerprintSeparatesParts(t *testing.T) {
	assert.Equal(t, Fingerprint("a", "bc"), Fingerprint("a", "bc"))
	assert.NotEqual(t, Fingerprint("a", "bc"), Fingerprint("ab", "c"))
}

func TestReleaseAllowsRetry(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	_, err := s.Claim(ctx, "k2", "fp")
	require.NoError(t, err)
	require.NoError(t, s.Release(ctx, "k2"))

	c, err := s.Claim(ctx, "k2", "fp")
	require.NoError(t, err)
	assert.True(t, c.Claimed)
}

func TestClaimExpires(t *testing.T) {
	s, mr := setupStore(t, WithTTL(time.Minute), WithPrefix("test"))
	ctx := context.Background()

	_, err := s.Claim(ctx, "k3", "fp")
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:idempotency:k3"))

	mr.FastForward(2 * time.Minute)
	c, err := s.Claim(ctx, "k3", "fp")
	require.NoError(t, err)
	assert.True(t, c.Claimed)
}

func TestClaimRedisDown(t *testing.T) {
	s, mr := setupStore(t)
	mr.Close()
	_, err := s.Claim(context.Background(), "k4", "fp")
	assert.Error(t, err)
}
