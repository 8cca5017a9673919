package redlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotOwner is returned by Release when the lease expired or was taken over.
var ErrNotOwner = errors.New("lease expired or owned by another instance")

const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) end return 0`

// HeldError is returned by Acquire when the key is already leased. Owner and
// RetryAfter are best effort and may be empty if the lease vanished meanwhile.
type HeldError struct {
	Key        string
	Owner      string
	RetryAfter time.Duration
}

func (e *HeldError) Error() string {
	if e.Owner == "" {
		return fmt.Sprintf("%s is already held", e.Key)
	}
	return fmt.Sprintf("%s is held by %s for another %s", e.Key, e.Owner, e.RetryAfter.Round(time.Millisecond))
}

// Lease is a claim on a Redis key written with the owner's token. Only that
// owner can release it early; otherwise it expires with its ttl.
type Lease struct {
	client redis.UniversalClient
	key    string
	owner  string
}

// Acquire leases key for ttl on behalf of owner.
func Acquire(ctx context.Context, client redis.UniversalClient, key, owner string, ttl time.Duration) (*Lease, error) {
	ok, err := client.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, describeHolder(ctx, client, key)
	}
	return &Lease{client: client, key: key, owner: owner}, nil
}

func describeHolder(ctx context.Context, client redis.UniversalClient, key string) *HeldError {
	held := &HeldError{Key: key}
	pipe := client.Pipeline()
	owner := pipe.Get(ctx, key)
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return held
	}
	held.Owner = owner.Val()
	if remaining := ttl.Val(); remaining > 0 {
		held.RetryAfter = remaining
	}
	return held
}

// Release deletes the key if it still carries this lease's owner token.
func (l *Lease) Release(ctx context.Context) error {
	deleted, err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.owner).Int64()
	if err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	if deleted == 0 {
		return fmt.Errorf("%w: %s", ErrNotOwner, l.key)
	}
	return nil
}
