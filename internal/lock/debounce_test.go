package redlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDebouncer(t *testing.T, window time.Duration) (*Debouncer, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewDebouncer(client, "payrec:debounce:receipt", "test-instance", window), mr
}

func TestDebouncerRejectsWithinWindow(t *testing.T) {
	d, mr := newTestDebouncer(t, 3*time.Second)
	ctx := context.Background()

	_, err := d.Claim(ctx, "receipt_1")
	require.NoError(t, err)

	_, err = d.Claim(ctx, "receipt_1")
	assert.True(t, errors.Is(err, ErrDebounced))
	var debounced *DebouncedError
	require.True(t, errors.As(err, &debounced))
	assert.Equal(t, "receipt_1", debounced.Key)
	assert.Positive(t, debounced.RetryAfter)

	_, err = d.Claim(ctx, "receipt_2")
	assert.NoError(t, err, "keys are independent")

	mr.FastForward(4 * time.Second)
	_, err = d.Claim(ctx, "receipt_1")
	assert.NoError(t, err, "claim expires after the window")
}

func TestDebouncerReleaseAllowsRetry(t *testing.T) {
	d, _ := newTestDebouncer(t, 3*time.Second)
	ctx := context.Background()

	release, err := d.Claim(ctx, "receipt_1")
	require.NoError(t, err)
	release(ctx)

	_, err = d.Claim(ctx, "receipt_1")
	assert.NoError(t, err)
}
