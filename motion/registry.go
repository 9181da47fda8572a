// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package motion

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sakura/springbreak/errors"
	"github.com/sakura/springbreak/internal/log"
	"github.com/sakura/springbreak/internal/wallclock"
)

type (
	// Registry keeps one detector per device for transports that deliver
	// samples from many devices on concurrent handlers. Samples of a single
	// device are processed serially.
	Registry struct {
		dispatcher Dispatcher
		log        log.Logger

		mu      sync.Mutex
		opts    []DetectorOption
		devices map[string]*device
	}

	device struct {
		mu       sync.Mutex
		detector *Detector
		lastSeen atomic.Int64
	}
)

// NewRegistry creates an empty registry. The options are validated and applied
// to every detector it creates.
func NewRegistry(
	dispatcher Dispatcher,
	opt ...DetectorOption,
) (*Registry, error) {
	if err := checkOptions(dispatcher, opt); err != nil {
		return nil, err
	}

	var opts DetectorOptions
	opts.Apply(opt)

	return &Registry{
		dispatcher: dispatcher,
		log:        log.Wrap(opts.Logger),
		opts:       opt,
		devices:    map[string]*device{},
	}, nil
}

// OnSample routes the sample to the device's detector, creating it on first
// use.
func (r *Registry) OnSample(
	ctx context.Context,
	deviceID string,
	s Sample,
) (Decision, error) {
	dev, err := r.device(deviceID)
	if err != nil {
		return 0, err
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.detector.Process(ctx, s), nil
}

// Reconfigure replaces the detector options. Existing devices keep their
// filters until they are swept as idle; devices seen afterwards use the new
// options.
func (r *Registry) Reconfigure(opt ...DetectorOption) error {
	if err := checkOptions(r.dispatcher, opt); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.opts = opt
	return nil
}

// Sweep drops the detectors of devices that have not sent a sample for at
// least idle, and returns how many were dropped. A dropped device starts over
// with a fresh filter and the current options on its next sample.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := wallclock.Instance.Now().Add(-idle).UnixNano()

	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, dev := range r.devices {
		if dev.lastSeen.Load() <= cutoff {
			delete(r.devices, id)
			n++
		}
	}
	return n
}

// RunSweeper sweeps idle devices every idle period until the context is done.
// A device is therefore dropped between one and two idle periods after its
// last sample.
func (r *Registry) RunSweeper(ctx context.Context, idle time.Duration) error {
	if idle <= 0 {
		return errors.Config("idle", idle.String(),
			"idle timeout must be positive")
	}
	for {
		select {
		case <-wallclock.Instance.After(idle):
			if n := r.Sweep(idle); n > 0 {
				r.log.Debug(ctx, "idle devices dropped",
					slog.Int("count", n),
					slog.Any("registry", r),
				)
			}
		case <-ctx.Done():
			return errors.Context(ctx, "device sweep")
		}
	}
}

// Stats returns the counters of every known device.
func (r *Registry) Stats() map[string]Stats {
	r.mu.Lock()
	devices := make(map[string]*device, len(r.devices))
	for id, dev := range r.devices {
		devices[id] = dev
	}
	r.mu.Unlock()

	stats := make(map[string]Stats, len(devices))
	for id, dev := range devices {
		dev.mu.Lock()
		stats[id] = dev.detector.Stats()
		dev.mu.Unlock()
	}
	return stats
}

// LogValue summarizes the registry for structured logging.
func (r *Registry) LogValue() slog.Value {
	var total Stats
	stats := r.Stats()
	for _, st := range stats {
		total.Seeded += st.Seeded
		total.Accepted += st.Accepted
		total.Debounced += st.Debounced
		total.OutOfOrder += st.OutOfOrder
		total.Shakes += st.Shakes
	}
	return slog.GroupValue(
		slog.Int("devices", len(stats)),
		slog.Any("samples", total),
	)
}

func (r *Registry) device(deviceID string) (*device, error) {
	now := wallclock.Instance.Now().UnixNano()

	r.mu.Lock()
	defer r.mu.Unlock()

	if dev, ok := r.devices[deviceID]; ok {
		dev.lastSeen.Store(now)
		return dev, nil
	}

	d, err := NewDetector(deviceID, r.dispatcher, r.opts...)
	if err != nil {
		return nil, err
	}
	dev := &device{detector: d}
	dev.lastSeen.Store(now)
	r.devices[deviceID] = dev
	return dev, nil
}

// Validates options by building a throwaway detector.
func checkOptions(dispatcher Dispatcher, opt []DetectorOption) error {
	_, err := NewDetector("check", dispatcher, opt...)
	return err
}
