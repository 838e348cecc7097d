package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoll_UntilDone(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context) (string, bool, error) {
		calls++
		if calls < 3 {
			return "", false, nil
		}
		return "chunks ready", true, nil
	}

	var attempts []int
	got, err := Poll(context.Background(), fetch, Config{
		Interval:  time.Millisecond,
		OnAttempt: func(n int) { attempts = append(attempts, n) },
	})
	require.NoError(t, err)
	assert.Equal(t, "chunks ready", got)
	assert.Equal(t, []int{1, 2, 3}, attempts)
}

func TestPoll_Error(t *testing.T) {
	boom := errors.New("boom")
	_, err := Poll(context.Background(), func(ctx context.Context) (int, bool, error) {
		return 0, false, boom
	}, Config{Interval: time.Millisecond})
	assert.ErrorIs(t, err, boom)
}

func TestPoll_MaxAttempts(t *testing.T) {
	calls := 0
	_, err := Poll(context.Background(), func(ctx context.Context) (int, bool, error) {
		calls++
		return 0, false, nil
	}, Config{Interval: time.Millisecond, MaxAttempts: 4})
	assert.ErrorIs(t, err, ErrGaveUp)
	assert.Equal(t, 4, calls)
}

func TestPoll_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := Poll(ctx, func(ctx context.Context) (int, bool, error) {
		return 0, false, nil
	}, Config{Interval: 10 * time.Millisecond})
	assert.Error(t, err)
}
