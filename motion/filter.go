// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package motion

import (
	"math"
	"time"

	"github.com/sakura/springbreak/errors"
	"github.com/sakura/springbreak/internal/options"
	"github.com/sakura/springbreak/internal/wallclock"
)

type (
	// Filter decides, from a serial stream of acceleration samples, when the
	// device has been shaken. It performs unsynchronized read-modify-write on
	// its state and must not be used from multiple goroutines at once.
	Filter struct {
		interval  int64
		threshold float64
		state     State
	}

	// FilterOption represents a single filter option.
	FilterOption interface{ filter(*FilterOptions) }

	// FilterOptions are the resolved filter options.
	FilterOptions struct {
		MinSampleInterval time.Duration

		// ShakeThreshold is nil for the default. Zero is a valid threshold
		// that reports any movement.
		ShakeThreshold *float64

		StartTime time.Time
	}

	// WithMinSampleInterval sets the debounce interval. Samples arriving no
	// later than this after the last accepted sample are ignored.
	WithMinSampleInterval time.Duration

	// WithShakeThreshold sets the speed above which a shake is reported.
	WithShakeThreshold float64

	// WithStartTime sets the initial reference timestamp. It defaults to the
	// wall clock at construction.
	WithStartTime time.Time
)

const (
	// DefaultMinSampleInterval is the default debounce interval.
	DefaultMinSampleInterval = 100 * time.Millisecond

	// DefaultShakeThreshold is the default speed threshold.
	DefaultShakeThreshold = 300.0

	// SpeedScale converts summed-axis delta per millisecond into the speed
	// metric the threshold is expressed in.
	SpeedScale = 10000
)

// NewFilter creates a new shake filter with the initial state
// (start, 0, 0, 0).
func NewFilter(opt ...FilterOption) (*Filter, error) {
	var opts FilterOptions
	opts.Apply(opt)

	if opts.MinSampleInterval == 0 {
		opts.MinSampleInterval = DefaultMinSampleInterval
	}
	threshold := DefaultShakeThreshold
	if opts.ShakeThreshold != nil {
		threshold = *opts.ShakeThreshold
	}
	if opts.StartTime.IsZero() {
		opts.StartTime = wallclock.Instance.Now()
	}

	interval := opts.MinSampleInterval.Milliseconds()
	if interval <= 0 {
		return nil, errors.Config(
			"MinSampleInterval",
			opts.MinSampleInterval,
			"minimum sample interval must be at least one millisecond",
		)
	}
	if math.IsNaN(threshold) || threshold < 0 {
		return nil, errors.Config(
			"ShakeThreshold",
			threshold,
			"shake threshold must be a non-negative number",
		)
	}

	return &Filter{
		interval:  interval,
		threshold: threshold,
		state:     State{LastTimestampMillis: opts.StartTime.UnixMilli()},
	}, nil
}

// Classify reports what OnSample would do with the sample, without changing
// the filter state.
func (f *Filter) Classify(s Sample) Decision {
	elapsed := s.TimestampMillis - f.state.LastTimestampMillis
	switch {
	case elapsed <= 0:
		return OutOfOrder
	case elapsed <= f.interval:
		return Debounced
	default:
		return Accepted
	}
}

// OnSample offers a sample to the filter. Samples within the minimum interval
// of the last accepted one (including out-of-order and duplicate timestamps)
// leave the state unchanged and never emit. Every other sample becomes the new
// reference point, and a shake event is returned if its speed exceeds the
// threshold.
func (f *Filter) OnSample(s Sample) (ShakeEvent, bool) {
	if f.Classify(s) != Accepted {
		return ShakeEvent{}, false
	}

	elapsed := s.TimestampMillis - f.state.LastTimestampMillis
	delta := math.Abs(
		s.X + s.Y + s.Z - f.state.LastX - f.state.LastY - f.state.LastZ,
	)
	speed := delta / float64(elapsed) * SpeedScale

	f.state = State{
		LastTimestampMillis: s.TimestampMillis,
		LastX:               s.X,
		LastY:               s.Y,
		LastZ:               s.Z,
	}

	if speed > f.threshold {
		return ShakeEvent{TimestampMillis: s.TimestampMillis, Speed: speed}, true
	}
	return ShakeEvent{}, false
}

// State returns the current reference point.
func (f *Filter) State() State {
	return f.state
}

// Apply resolves the provided list of options.
func (o *FilterOptions) Apply(
	opts []FilterOption,
	rest ...FilterOption,
) {
	for opt := range options.Apply[FilterOption](opts, rest...) {
		opt.filter(o)
	}
}

func (o *FilterOptions) filter(opt *FilterOptions) {
	if o != nil {
		*opt = *o
	}
}

func (o WithMinSampleInterval) filter(opt *FilterOptions) {
	opt.MinSampleInterval = time.Duration(o)
}

func (o WithShakeThreshold) filter(opt *FilterOptions) {
	threshold := float64(o)
	opt.ShakeThreshold = &threshold
}

func (o WithStartTime) filter(opt *FilterOptions) {
	opt.StartTime = time.Time(o)
}
