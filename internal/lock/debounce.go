package redlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrDebounced is returned when the same key was claimed inside the window.
var ErrDebounced = errors.New("request debounced")

// DebouncedError carries how long the caller should wait before retrying.
// It matches ErrDebounced with errors.Is.
type DebouncedError struct {
	Key        string
	RetryAfter time.Duration
}

func (e *DebouncedError) Error() string {
	return fmt.Sprintf("%s: %s, retry in %s", ErrDebounced, e.Key, e.RetryAfter.Round(time.Millisecond))
}

func (e *DebouncedError) Is(target error) bool {
	return target == ErrDebounced
}

// Debouncer drops repeated requests for a key arriving within a short window.
// The claim is left to expire so a second click shortly after a success is
// still refused.
type Debouncer struct {
	client redis.UniversalClient
	prefix string
	owner  string
	window time.Duration
}

func NewDebouncer(client redis.UniversalClient, prefix, owner string, window time.Duration) *Debouncer {
	return &Debouncer{client: client, prefix: prefix, owner: owner, window: window}
}

// Claim reserves key for the window. The returned release func frees it early,
// which callers use when the guarded operation failed and may be retried.
func (d *Debouncer) Claim(ctx context.Context, key string) (func(context.Context), error) {
	lease, err := Acquire(ctx, d.client, d.prefix+":"+key, d.owner, d.window)
	if err != nil {
		var held *HeldError
		if errors.As(err, &held) {
			retry := held.RetryAfter
			if retry == 0 {
				retry = d.window
			}
			return nil, &DebouncedError{Key: key, RetryAfter: retry}
		}
		return nil, err
	}
	return func(ctx context.Context) {
		_ = lease.Release(ctx)
	}, nil
}
