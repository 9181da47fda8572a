// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package motion

import "log/slog"

type (
	// Sample is a single 3-axis linear acceleration reading.
	Sample struct {
		TimestampMillis int64   `json:"timestamp"`
		X               float64 `json:"x"`
		Y               float64 `json:"y"`
		Z               float64 `json:"z"`
	}

	// State is the reference point a filter compares new samples against.
	State struct {
		LastTimestampMillis int64
		LastX               float64
		LastY               float64
		LastZ               float64
	}

	// ShakeEvent signals that the device experienced motion exceeding the
	// configured threshold. Its fields are informational.
	ShakeEvent struct {
		TimestampMillis int64   `json:"timestamp"`
		Speed           float64 `json:"speed"`
	}

	// Decision is the outcome of offering a sample to a filter.
	Decision int
)

// Sample decisions.
const (
	// Accepted samples advance the filter state.
	Accepted Decision = iota

	// Debounced samples arrived within the minimum interval of the last
	// accepted sample and were ignored.
	Debounced

	// OutOfOrder samples carried a timestamp at or before the last accepted
	// one and were ignored.
	OutOfOrder

	// Seeded is a device's first sample, which only sets the reference
	// timestamp.
	Seeded
)

func (d Decision) String() string {
	switch d {
	case Accepted:
		return "accepted"
	case Debounced:
		return "debounced"
	case OutOfOrder:
		return "out of order"
	case Seeded:
		return "seeded"
	default:
		return "unknown"
	}
}

// Attrs exposes the event for structured logging.
func (e ShakeEvent) Attrs() []slog.Attr {
	return []slog.Attr{
		slog.Int64("timestamp", e.TimestampMillis),
		slog.Float64("speed", e.Speed),
	}
}
