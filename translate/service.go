// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package translate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Azure/iot-operations-sdks/go/mqtt/retry"
	"github.com/sakura/springbreak/errors"
	"github.com/sakura/springbreak/internal/log"
	"github.com/sakura/springbreak/internal/options"
	"github.com/sakura/springbreak/internal/poll"
	"github.com/sakura/springbreak/internal/wallclock"
)

type (
	// Backend performs translations for a language pair. Tags are BCP 47.
	Backend interface {
		// Prepare makes the pair usable, e.g. by downloading a model or
		// checking that both languages are supported.
		Prepare(ctx context.Context, src, dst string) error
		Translate(ctx context.Context, src, dst, text string) (string, error)
	}

	// State is the readiness of the current language pair.
	State int

	// Service translates text for one language pair at a time, preparing
	// the pair in the background.
	Service struct {
		backend Backend
		policy  retry.Policy
		timeout time.Duration
		log     log.Logger

		ctx    context.Context
		cancel context.CancelFunc

		mu  sync.Mutex
		cur *preparation
	}

	preparation struct {
		src, dst string
		done     chan struct{}
		err      error
		cancel   context.CancelFunc
	}

	// ServiceOption represents a single translation service option.
	ServiceOption interface{ service(*ServiceOptions) }

	// ServiceOptions are the resolved translation service options.
	ServiceOptions struct {
		// ReadyTimeout bounds WaitReady. Defaults to DefaultReadyTimeout.
		ReadyTimeout time.Duration

		// Retry is the policy used to prepare a language pair.
		Retry retry.Policy

		Logger *slog.Logger
	}

	// WithReadyTimeout bounds how long WaitReady waits for preparation.
	WithReadyTimeout time.Duration

	// WithRetry sets the retry policy used to prepare a language pair.
	WithRetry struct{ retry.Policy }

	// This option is not used directly; see WithLogger below.
	withLogger struct{ *slog.Logger }
)

const (
	Preparing State = iota
	Ready
	Failed
)

// DefaultReadyTimeout matches a thirty-attempt, one-second readiness poll.
const DefaultReadyTimeout = 30 * time.Second

var errNotReady = &errors.Error{
	Message: "translator not ready yet",
	Kind:    errors.StateInvalid,
}

// NewService creates the service and starts preparing the initial pair.
func NewService(
	backend Backend,
	src, dst string,
	opt ...ServiceOption,
) (*Service, error) {
	var opts ServiceOptions
	opts.Apply(opt)

	if backend == nil {
		return nil, errors.Invalid("backend", nil, "backend is required")
	}
	if opts.ReadyTimeout < 0 {
		return nil, errors.Config("ReadyTimeout", opts.ReadyTimeout,
			"ready timeout must not be negative")
	}
	if opts.ReadyTimeout == 0 {
		opts.ReadyTimeout = DefaultReadyTimeout
	}
	if opts.Retry == nil {
		opts.Retry = &poll.Fixed{
			MaxAttempts: 30,
			Interval:    time.Second,
			Logger:      opts.Logger,
		}
	}

	s := &Service{
		backend: backend,
		policy:  opts.Retry,
		timeout: opts.ReadyTimeout,
		log:     log.Wrap(opts.Logger),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	if err := s.Switch(src, dst); err != nil {
		s.cancel()
		return nil, err
	}
	return s, nil
}

// Switch starts preparing a new language pair. Translations fail with
// StateInvalid until it is ready; the previous pair's preparation is
// abandoned and can no longer affect the service. Switching to the current
// pair is a no-op unless its preparation failed, in which case it is retried.
func (s *Service) Switch(src, dst string) error {
	if src == "" {
		return errors.Invalid("src", src, "source language is required")
	}
	if dst == "" {
		return errors.Invalid("dst", dst, "destination language is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return &errors.Error{
			Message: "translator closed",
			Kind:    errors.StateInvalid,
		}
	}
	if s.cur != nil {
		if s.cur.src == src && s.cur.dst == dst && !s.cur.failed() {
			return nil
		}
		s.cur.cancel()
	}

	ctx, cancel := context.WithCancel(s.ctx)
	p := &preparation{
		src:    src,
		dst:    dst,
		done:   make(chan struct{}),
		cancel: cancel,
	}
	s.cur = p

	go s.prepare(ctx, p)
	return nil
}

func (p *preparation) failed() bool {
	select {
	case <-p.done:
		return p.err != nil
	default:
		return false
	}
}

func (s *Service) prepare(ctx context.Context, p *preparation) {
	defer p.cancel()
	defer close(p.done)

	l := s.log.With(slog.String("src", p.src), slog.String("dst", p.dst))
	l.Debug(ctx, "preparing translator")

	err := s.policy.Start(ctx, "translator prepare",
		func(ctx context.Context) (bool, error) {
			err := s.backend.Prepare(ctx, p.src, p.dst)
			return retryable(err), err
		},
	)
	if err != nil {
		p.err = errors.Normalize(err, "translator preparation")
		l.Err(ctx, "translator preparation failed", p.err)
		return
	}
	l.Info(ctx, "translator ready")
}

// WaitReady blocks until the current pair is ready, its preparation fails, or
// the ready timeout elapses.
func (s *Service) WaitReady(ctx context.Context) error {
	p := s.current()

	ctx, cancel := wallclock.Instance.WithTimeoutCause(ctx, s.timeout,
		&errors.Error{
			Message: fmt.Sprintf("translator not ready after %s", s.timeout),
			Kind:    errors.Timeout,
		},
	)
	defer cancel()

	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return errors.Context(ctx, "translator wait")
	}
}

// Translate translates text with the current pair. It fails fast with
// StateInvalid if the pair is not ready.
func (s *Service) Translate(ctx context.Context, text string) (string, error) {
	p := s.current()

	select {
	case <-p.done:
		if p.err != nil {
			return "", &errors.Error{
				Message:     "translator unavailable",
				Kind:        errors.StateInvalid,
				NestedError: p.err,
			}
		}
	default:
		return "", errNotReady
	}

	res, err := s.backend.Translate(ctx, p.src, p.dst, text)
	if err != nil {
		return "", errors.Normalize(err, "translation")
	}
	return res, nil
}

// State returns the readiness of the current pair.
func (s *Service) State() State {
	p := s.current()
	select {
	case <-p.done:
		if p.err != nil {
			return Failed
		}
		return Ready
	default:
		return Preparing
	}
}

// Pair returns the current source and destination languages.
func (s *Service) Pair() (src, dst string) {
	p := s.current()
	return p.src, p.dst
}

// Close abandons any preparation in progress.
func (s *Service) Close() {
	s.cancel()
}

func (s *Service) current() *preparation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Unsupported languages and bad credentials will not fix themselves.
func retryable(err error) bool {
	return err != nil &&
		!errors.Is(err, errors.ArgumentInvalid) &&
		!errors.Is(err, errors.ConfigurationInvalid)
}

func (st State) String() string {
	switch st {
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "preparing"
	}
}

// Apply resolves the provided list of options.
func (o *ServiceOptions) Apply(
	opts []ServiceOption,
	rest ...ServiceOption,
) {
	for opt := range options.Apply[ServiceOption](opts, rest...) {
		opt.service(o)
	}
}

func (o *ServiceOptions) service(opt *ServiceOptions) {
	if o != nil {
		*opt = *o
	}
}

func (o WithReadyTimeout) service(opt *ServiceOptions) {
	opt.ReadyTimeout = time.Duration(o)
}

func (o WithRetry) service(opt *ServiceOptions) {
	opt.Retry = o.Policy
}

// WithLogger enables logging with the provided slog logger.
func WithLogger(logger *slog.Logger) interface {
	ServiceOption
	GoogleOption
} {
	return withLogger{logger}
}

func (o withLogger) service(opt *ServiceOptions) {
	opt.Logger = o.Logger
}
