// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package poll

import (
	"context"
	"log/slog"
	"time"

	"github.com/Azure/iot-operations-sdks/go/mqtt/retry"
	"github.com/sakura/springbreak/internal/log"
	"github.com/sakura/springbreak/internal/wallclock"
)

// Fixed is a retry policy that polls at a constant interval, e.g. thirty
// attempts one second apart while a translation model becomes available.
type Fixed struct {
	// MaxAttempts bounds the attempts; 0 means unlimited.
	MaxAttempts uint64
	Interval    time.Duration
	Logger      *slog.Logger
}

var _ retry.Policy = (*Fixed)(nil)

// Start runs the task until it succeeds, reports a non-retryable error, runs
// out of attempts, or the context ends.
func (f *Fixed) Start(ctx context.Context, name string, task retry.Task) error {
	l := log.Wrap(f.Logger).With(slog.String("task", name))

	for attempt := uint64(1); ; attempt++ {
		again, err := task(ctx)
		if err == nil {
			l.Debug(ctx, "poll succeeded", slog.Uint64("attempt", attempt))
			return nil
		}
		if !again || attempt == f.MaxAttempts || ctx.Err() != nil {
			l.Info(ctx, "poll failed",
				slog.Uint64("attempt", attempt),
				slog.String("error", err.Error()),
			)
			return err
		}

		select {
		case <-wallclock.Instance.After(f.Interval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
