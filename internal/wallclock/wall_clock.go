// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package wallclock

import (
	"context"
	"time"
)

// Clock is the time source for filters, search deadlines, translator
// readiness and retry delays. Tests swap Instance for a Manual clock.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	WithTimeoutCause(
		parent context.Context,
		timeout time.Duration,
		cause error,
	) (context.Context, context.CancelFunc)
}

type system struct{}

// Instance is the process clock.
var Instance Clock = system{}

func (system) Now() time.Time { return time.Now() }

func (system) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (system) WithTimeoutCause(
	parent context.Context,
	timeout time.Duration,
	cause error,
) (context.Context, context.CancelFunc) {
	return context.WithTimeoutCause(parent, timeout, cause)
}
