package repository

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// conflictBackoff spaces out retries of a lost optimistic write. The wait
// doubles from base up to max and is jittered so racing writers drift apart.
type conflictBackoff struct {
	base time.Duration
	max  time.Duration
}

var defaultConflictBackoff = conflictBackoff{base: 2 * time.Millisecond, max: 100 * time.Millisecond}

func (b conflictBackoff) delay(round int) time.Duration {
	d := b.max
	if round < 16 {
		if grown := b.base << round; grown < b.max {
			d = grown
		}
	}
	half := d / 2
	return half + rand.N(d-half+1)
}

// retryOnConflict runs write until it lands. write reports false when another
// writer got in first; any error it returns is passed back unchanged. Losing
// writers keep retrying until ctx ends, since every round has a winner and a
// burst on one attempt always drains.
func retryOnConflict(ctx context.Context, b conflictBackoff, write func(ctx context.Context) (bool, error)) error {
	for round := 0; ; round++ {
		done, err := write(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		timer := time.NewTimer(b.delay(round))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %w", ErrConcurrentUpdate, ctx.Err())
		case <-timer.C:
		}
	}
}
