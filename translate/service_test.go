// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package translate_test

import (
	"context"
	stderr "errors"
	"testing"
	"time"

	"github.com/Azure/iot-operations-sdks/go/mqtt/retry"
	"github.com/sakura/springbreak/errors"
	"github.com/sakura/springbreak/internal/poll"
	"github.com/sakura/springbreak/internal/wallclock"
	"github.com/sakura/springbreak/translate"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockBackend struct {
	mock.Mock
	block chan struct{}
}

func (m *MockBackend) Prepare(ctx context.Context, src, dst string) error {
	if m.block != nil && src+dst == "en-USes-US" {
		select {
		case <-m.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return m.Called(src, dst).Error(0)
}

func (m *MockBackend) Translate(
	_ context.Context,
	src, dst, text string,
) (string, error) {
	args := m.Called(src, dst, text)
	return args.String(0), args.Error(1)
}

func TestTranslateWhenReady(t *testing.T) {
	b := new(MockBackend)
	b.On("Prepare", "en-US", "es-US").Return(nil)
	b.On("Translate", "en-US", "es-US", "hello").Return("hola", nil)

	s, err := translate.NewService(b, "en-US", "es-US")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.WaitReady(context.Background()))
	require.Equal(t, translate.Ready, s.State())

	res, err := s.Translate(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, "hola", res)
	b.AssertExpectations(t)
}

func TestTranslateNotReady(t *testing.T) {
	b := &MockBackend{block: make(chan struct{})}
	b.On("Prepare", "en-US", "es-US").Return(nil)

	s, err := translate.NewService(b, "en-US", "es-US")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Translate(context.Background(), "hello")
	require.True(t, errors.Is(err, errors.StateInvalid))
	require.EqualError(t, err, "translator not ready yet")
	require.Equal(t, translate.Preparing, s.State())

	close(b.block)
	require.NoError(t, s.WaitReady(context.Background()))
	b.AssertNotCalled(t, "Translate", mock.Anything, mock.Anything, mock.Anything)
}

func TestWaitReadyTimeout(t *testing.T) {
	clock := wallclock.NewManual(time.Unix(0, 0))
	wallclock.Instance = clock
	defer func() { wallclock.Instance = realClock }()

	b := &MockBackend{block: make(chan struct{})}
	defer close(b.block)
	b.On("Prepare", "en-US", "es-US").Return(nil)

	s, err := translate.NewService(b, "en-US", "es-US",
		translate.WithReadyTimeout(10*time.Second))
	require.NoError(t, err)
	defer s.Close()

	done := make(chan error, 1)
	go func() { done <- s.WaitReady(context.Background()) }()

	require.Eventually(t, func() bool { return clock.Waiters() > 0 },
		5*time.Second, time.Millisecond)
	clock.Advance(10 * time.Second)

	select {
	case err := <-done:
		require.True(t, errors.Is(err, errors.Timeout))
	case <-time.After(5 * time.Second):
		t.Fatal("WaitReady did not time out")
	}
}

func TestPrepareFailure(t *testing.T) {
	b := new(MockBackend)
	b.On("Prepare", "en-US", "es-US").
		Return(errors.Invalid("language", "es-US", "unsupported"))

	s, err := translate.NewService(b, "en-US", "es-US")
	require.NoError(t, err)
	defer s.Close()

	err = s.WaitReady(context.Background())
	require.True(t, errors.Is(err, errors.ArgumentInvalid))
	require.Equal(t, translate.Failed, s.State())

	_, err = s.Translate(context.Background(), "hello")
	require.True(t, errors.Is(err, errors.StateInvalid))

	// Unsupported languages are not retried.
	b.AssertNumberOfCalls(t, "Prepare", 1)
}

func TestPrepareRetries(t *testing.T) {
	b := new(MockBackend)
	b.On("Prepare", "en-US", "es-US").Return(stderr.New("model download")).Twice()
	b.On("Prepare", "en-US", "es-US").Return(nil).Once()

	s, err := translate.NewService(b, "en-US", "es-US",
		translate.WithRetry{Policy: &retry.ExponentialBackoff{
			MaxAttempts: 5,
			MinInterval: time.Millisecond,
			NoJitter:    true,
		}},
	)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.WaitReady(context.Background()))
	b.AssertNumberOfCalls(t, "Prepare", 3)
}

func TestSwitchRetriesFailedPair(t *testing.T) {
	b := new(MockBackend)
	b.On("Prepare", "en-US", "es-US").Return(stderr.New("model download")).Once()
	b.On("Prepare", "en-US", "es-US").Return(nil).Once()
	b.On("Translate", "en-US", "es-US", "hello").Return("hola", nil)

	s, err := translate.NewService(b, "en-US", "es-US",
		translate.WithRetry{Policy: &poll.Fixed{MaxAttempts: 1}},
	)
	require.NoError(t, err)
	defer s.Close()

	require.Error(t, s.WaitReady(context.Background()))
	require.Equal(t, translate.Failed, s.State())

	require.NoError(t, s.Switch("en-US", "es-US"))
	require.NoError(t, s.WaitReady(context.Background()))

	res, err := s.Translate(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, "hola", res)
	b.AssertNumberOfCalls(t, "Prepare", 2)
}

func TestSwitchKeepsReadyPair(t *testing.T) {
	b := new(MockBackend)
	b.On("Prepare", "en-US", "es-US").Return(nil)

	s, err := translate.NewService(b, "en-US", "es-US")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.WaitReady(context.Background()))
	require.NoError(t, s.Switch("en-US", "es-US"))
	require.Equal(t, translate.Ready, s.State())
	b.AssertNumberOfCalls(t, "Prepare", 1)
}

func TestSwitchAbandonsStalePair(t *testing.T) {
	b := &MockBackend{block: make(chan struct{})}
	defer close(b.block)
	b.On("Prepare", "en-US", "ja-JP").Return(nil)
	b.On("Translate", "en-US", "ja-JP", "hello").Return("こんにちは", nil)

	s, err := translate.NewService(b, "en-US", "es-US")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Switch("en-US", "ja-JP"))
	require.NoError(t, s.WaitReady(context.Background()))

	src, dst := s.Pair()
	require.Equal(t, "en-US", src)
	require.Equal(t, "ja-JP", dst)

	res, err := s.Translate(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, "こんにちは", res)

	// The abandoned preparation never reached the backend mock.
	b.AssertNotCalled(t, "Prepare", "en-US", "es-US")
}

func TestServiceValidation(t *testing.T) {
	_, err := translate.NewService(nil, "en-US", "es-US")
	require.True(t, errors.Is(err, errors.ArgumentInvalid))

	_, err = translate.NewService(new(MockBackend), "", "es-US")
	require.True(t, errors.Is(err, errors.ArgumentInvalid))

	_, err = translate.NewService(new(MockBackend), "en-US", "es-US",
		translate.WithReadyTimeout(-time.Second))
	require.True(t, errors.Is(err, errors.ConfigurationInvalid))

	s, err := translate.NewService(&MockBackend{block: make(chan struct{})},
		"en-US", "es-US")
	require.NoError(t, err)
	s.Close()
	require.True(t, errors.Is(s.Switch("en-US", "fr-FR"), errors.StateInvalid))
}

var realClock = wallclock.Instance
