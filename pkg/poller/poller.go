package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

var ErrGaveUp = errors.New("polling gave up before data arrived")

type Config struct {
	Interval    time.Duration
	MaxAttempts int // 0 means poll until ctx is done
	OnAttempt   func(attempt int)
}

// FetchFunc reports the latest value and whether it is final.
type FetchFunc[T any] func(ctx context.Context) (T, bool, error)

// Poll calls fetch at most once per Interval until it reports done, returns
// an error, MaxAttempts is reached or ctx ends.
func Poll[T any](ctx context.Context, fetch FetchFunc[T], config Config) (T, error) {
	var zero T
	if config.Interval <= 0 {
		config.Interval = 2 * time.Second
	}

	limiter := rate.NewLimiter(rate.Every(config.Interval), 1)
	for attempt := 1; config.MaxAttempts == 0 || attempt <= config.MaxAttempts; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return zero, err
		}
		if config.OnAttempt != nil {
			config.OnAttempt(attempt)
		}

		value, done, err := fetch(ctx)
		if err != nil {
			return zero, fmt.Errorf("poll attempt %d: %w", attempt, err)
		}
		if done {
			return value, nil
		}
	}

	return zero, fmt.Errorf("%w after %d attempts", ErrGaveUp, config.MaxAttempts)
}
