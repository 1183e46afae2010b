package resilience

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/errors"
)

// WithTimeout runs fn under a deadline of timeout. When the deadline passes
// first, it returns an error wrapping errors.ErrTimeout without waiting for
// fn, which sees its context cancelled. A non-positive timeout runs fn as is.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(tctx)
	}()

	select {
	case err := <-done:
		if err != nil && tctx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return fmt.Errorf("%s: %w after %v", name, apperrors.ErrTimeout, timeout)
		}
		return err
	case <-tctx.Done():
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return fmt.Errorf("%s: %w after %v", name, apperrors.ErrTimeout, timeout)
	}
}
