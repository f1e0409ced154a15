package fetch

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyDelay(t *testing.T) {
	p := Policy{MaxAttempts: 5, Base: time.Second, Cap: 600 * time.Second}
	for k := 1; k <= 15; k++ {
		want := time.Duration(1<<(k-1)) * time.Second
		if want > p.Cap {
			want = p.Cap
		}
		assert.Equal(t, want, p.Delay(k), "k=%d", k)
	}
	assert.Zero(t, p.Delay(0))
}

func TestRetrySequenceMatchesDelay(t *testing.T) {
	p := Policy{MaxAttempts: 12, Base: 3 * time.Second, Cap: time.Minute}
	var waits []time.Duration
	sleep := func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	n, err := p.Retry(context.Background(), sleep, func(context.Context, int) error {
		return errors.New("nope")
	}, nil)
	require.Error(t, err)
	assert.Equal(t, 12, n)
	require.Len(t, waits, 11)
	for k, d := range waits {
		assert.Equal(t, p.Delay(k+1), d)
	}
	assert.Equal(t, time.Minute, waits[len(waits)-1])
}

func TestRetryOnRetryHook(t *testing.T) {
	p := Policy{MaxAttempts: 3, Base: time.Millisecond, Cap: time.Second}
	var seen []int
	n, err := p.Retry(context.Background(), func(context.Context, time.Duration) error { return nil },
		func(_ context.Context, attempt int) error {
			if attempt < 3 {
				return errors.New("again")
			}
			return nil
		},
		func(attempt int, _ time.Duration, _ error) { seen = append(seen, attempt) })
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []int{1, 2}, seen)
}

func TestSleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
}
