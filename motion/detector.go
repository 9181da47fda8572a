// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package motion

import (
	"context"
	"log/slog"
	"time"

	"github.com/sakura/springbreak/errors"
	"github.com/sakura/springbreak/internal/log"
	"github.com/sakura/springbreak/internal/options"
)

type (
	// Dispatcher receives shake events and triggers the downstream action.
	Dispatcher interface {
		Dispatch(ctx context.Context, deviceID string, ev ShakeEvent) error
	}

	// DispatcherFunc adapts a function to the Dispatcher interface.
	DispatcherFunc func(ctx context.Context, deviceID string, ev ShakeEvent) error

	// Detector runs a single device's sample stream through a filter and
	// dispatches the resulting shake events.
	//
	// The first sample seeds the filter's reference timestamp and is otherwise
	// ignored, since device clocks need not agree with the service's.
	Detector struct {
		deviceID   string
		dispatcher Dispatcher
		filterOpts FilterOptions
		filter     *Filter
		stats      Stats
		log        log.Logger
	}

	// Stats counts sample decisions and emitted shakes.
	Stats struct {
		Seeded     uint64
		Accepted   uint64
		Debounced  uint64
		OutOfOrder uint64
		Shakes     uint64
	}

	// DetectorOption represents a single detector option.
	DetectorOption interface{ detector(*DetectorOptions) }

	// DetectorOptions are the resolved detector options.
	DetectorOptions struct {
		Filter FilterOptions
		Logger *slog.Logger
	}

	// This option is not used directly; see WithLogger below.
	withLogger struct{ *slog.Logger }
)

// NewDetector creates a detector for the given device.
func NewDetector(
	deviceID string,
	dispatcher Dispatcher,
	opt ...DetectorOption,
) (*Detector, error) {
	var opts DetectorOptions
	opts.Apply(opt)

	if deviceID == "" {
		return nil, errors.Invalid("deviceID", deviceID, "device id is required")
	}
	if dispatcher == nil {
		return nil, errors.Invalid("dispatcher", nil, "dispatcher is required")
	}

	// Validate the filter configuration up front.
	check := opts.Filter
	check.StartTime = time.UnixMilli(0)
	if _, err := NewFilter(&check); err != nil {
		return nil, err
	}

	return &Detector{
		deviceID:   deviceID,
		dispatcher: dispatcher,
		filterOpts: opts.Filter,
		log: log.Wrap(opts.Logger).With(
			slog.String("device_id", deviceID),
		),
	}, nil
}

// Process offers one sample to the device's filter and dispatches any shake.
// Dispatch errors are logged and do not affect filtering.
func (d *Detector) Process(ctx context.Context, s Sample) Decision {
	if d.filter == nil {
		opts := d.filterOpts
		opts.StartTime = time.UnixMilli(s.TimestampMillis)
		f, err := NewFilter(&opts)
		if err != nil {
			// The sample is dropped and the next one seeds instead.
			d.log.Err(ctx, "motion filter rejected", err)
			return Debounced
		}
		d.filter = f
		d.stats.Seeded++
		return Seeded
	}

	decision := d.filter.Classify(s)
	switch decision {
	case Debounced:
		d.stats.Debounced++
		return decision
	case OutOfOrder:
		d.stats.OutOfOrder++
		d.log.Debug(ctx, "out of order sample ignored",
			slog.Int64("timestamp", s.TimestampMillis),
			slog.Int64("last_timestamp", d.filter.State().LastTimestampMillis),
		)
		return decision
	}

	d.stats.Accepted++
	ev, ok := d.filter.OnSample(s)
	if !ok {
		return decision
	}

	d.stats.Shakes++
	d.log.Info(ctx, "shake detected", ev.Attrs()...)
	if err := d.dispatcher.Dispatch(ctx, d.deviceID, ev); err != nil {
		d.log.Err(ctx, "shake dispatch failed", err)
	}
	return decision
}

// Run consumes samples serially until the channel is closed or the context is
// done.
func (d *Detector) Run(ctx context.Context, samples <-chan Sample) error {
	for {
		select {
		case s, ok := <-samples:
			if !ok {
				return nil
			}
			d.Process(ctx, s)
		case <-ctx.Done():
			return errors.Context(ctx, "motion detection")
		}
	}
}

// Stats returns the decision counters.
func (d *Detector) Stats() Stats {
	return d.stats
}

// LogValue renders the counters for structured logging.
func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("seeded", s.Seeded),
		slog.Uint64("accepted", s.Accepted),
		slog.Uint64("debounced", s.Debounced),
		slog.Uint64("out_of_order", s.OutOfOrder),
		slog.Uint64("shakes", s.Shakes),
	)
}

// DeviceID returns the device the detector serves.
func (d *Detector) DeviceID() string {
	return d.deviceID
}

// Dispatch calls f.
func (f DispatcherFunc) Dispatch(
	ctx context.Context,
	deviceID string,
	ev ShakeEvent,
) error {
	return f(ctx, deviceID, ev)
}

// Apply resolves the provided list of options.
func (o *DetectorOptions) Apply(
	opts []DetectorOption,
	rest ...DetectorOption,
) {
	for opt := range options.Apply[DetectorOption](opts, rest...) {
		opt.detector(o)
	}
}

func (o *DetectorOptions) detector(opt *DetectorOptions) {
	if o != nil {
		*opt = *o
	}
}

func (o *FilterOptions) detector(opt *DetectorOptions) {
	if o != nil {
		opt.Filter = *o
	}
}

func (o WithMinSampleInterval) detector(opt *DetectorOptions) {
	o.filter(&opt.Filter)
}

func (o WithShakeThreshold) detector(opt *DetectorOptions) {
	o.filter(&opt.Filter)
}

// WithLogger enables logging with the provided slog logger.
func WithLogger(logger *slog.Logger) DetectorOption {
	return withLogger{logger}
}

func (o withLogger) detector(opt *DetectorOptions) {
	opt.Logger = o.Logger
}
