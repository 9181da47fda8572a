// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package app

import (
	"context"
	stderr "errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Azure/iot-operations-sdks/go/protocol"
	"github.com/sakura/springbreak/chooser"
	"github.com/sakura/springbreak/language"
	"github.com/sakura/springbreak/motion"
	"github.com/sakura/springbreak/places"
	"github.com/sakura/springbreak/speech"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) SearchText(
	_ context.Context,
	q places.Query,
) ([]places.Place, error) {
	args := m.Called(q.Text)
	return args.Get(0).([]places.Place), args.Error(1)
}

type upperBackend struct{}

func (upperBackend) Prepare(context.Context, string, string) error {
	return nil
}

func (upperBackend) Translate(_ context.Context, _, dst, text string) (string, error) {
	return dst + ":" + text, nil
}

type pins struct {
	mu  sync.Mutex
	got []chooser.Pin
}

func (p *pins) PublishPin(_ context.Context, _ string, pin chooser.Pin) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, pin)
	return nil
}

func (p *pins) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.got)
}

var paris = places.Place{
	Name:     "Louvre",
	Location: places.LatLng{Latitude: 48.8606, Longitude: 2.3376},
}

func newHandlers(
	t *testing.T,
	s places.Searcher,
	opt ...chooser.Option,
) (*Handlers, *chooser.Chooser) {
	t.Helper()
	c, err := chooser.New(language.Default(), chooser.NewMemoryStore(), s,
		upperBackend{}, opt...)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	r, err := motion.NewRegistry(c)
	require.NoError(t, err)
	return NewHandlers(c, r, nil), c
}

func request[T any](deviceID string, payload T) *protocol.CommandRequest[T] {
	return &protocol.CommandRequest[T]{Message: protocol.Message[T]{
		Payload:     payload,
		TopicTokens: map[string]string{DeviceToken: deviceID},
	}}
}

func TestMotionShakePublishesPin(t *testing.T) {
	s := new(MockSearcher)
	s.On("SearchText", "United States Attractions").
		Return([]places.Place{paris}, nil)
	p := &pins{}
	h, _ := newHandlers(t, s, chooser.WithPublisher{Publisher: p})

	ctx := context.Background()
	t0 := time.Now().UnixMilli()
	for _, sample := range []motion.Sample{
		{TimestampMillis: t0},
		{TimestampMillis: t0 + 200, X: 100, Y: 100, Z: 100},
	} {
		require.NoError(t, h.Motion(ctx, &protocol.TelemetryMessage[motion.Sample]{
			Message: protocol.Message[motion.Sample]{
				Payload:     sample,
				TopicTokens: map[string]string{DeviceToken: "phone-1"},
			},
		}))
	}

	require.Eventually(t, func() bool { return p.len() == 1 },
		time.Second, 10*time.Millisecond)
	require.Equal(t, "Louvre", p.got[0].Name)
	require.Equal(t, "phone-1", p.got[0].DeviceID)
}

func TestMotionWithoutDeviceIsDropped(t *testing.T) {
	h, _ := newHandlers(t, new(MockSearcher))
	err := h.Motion(context.Background(), &protocol.TelemetryMessage[motion.Sample]{})
	require.NoError(t, err)
}

func TestLanguagesGetAndSet(t *testing.T) {
	h, _ := newHandlers(t, new(MockSearcher))
	ctx := context.Background()

	res, err := h.Languages(ctx, request("phone-1", language.Selection{}))
	require.NoError(t, err)
	require.Equal(t, language.Selection{Source: "en-US", Destination: "es-US"},
		res.Payload)

	sel := language.Selection{Source: "en-US", Destination: "ja-JP"}
	res, err = h.Languages(ctx, request("phone-1", sel))
	require.NoError(t, err)
	require.Equal(t, sel, res.Payload)

	res, err = h.Languages(ctx, request("phone-2", language.Selection{}))
	require.NoError(t, err)
	require.Equal(t, "es-US", res.Payload.Destination)
}

func TestLanguagesRejectsUnknownTag(t *testing.T) {
	h, _ := newHandlers(t, new(MockSearcher))

	_, err := h.Languages(context.Background(), request("phone-1",
		language.Selection{Source: "en-US", Destination: "xx-XX"}))

	var inv protocol.InvocationError
	require.True(t, stderr.As(err, &inv))
}

func TestMissingDeviceToken(t *testing.T) {
	h, _ := newHandlers(t, new(MockSearcher))

	_, err := h.Search(context.Background(), &protocol.CommandRequest[SearchRequest]{})

	var inv protocol.InvocationError
	require.True(t, stderr.As(err, &inv))
	require.Equal(t, DeviceToken, inv.PropertyName)
}

func TestTranslate(t *testing.T) {
	h, c := newHandlers(t, new(MockSearcher))
	ctx := context.Background()

	svc, err := c.Translator(language.Default().DefaultSelection())
	require.NoError(t, err)
	require.NoError(t, svc.WaitReady(ctx))

	res, err := h.Translate(ctx, request("phone-1",
		chooser.Utterance{Results: []string{"where is ", "the beach"}}))
	require.NoError(t, err)
	require.Equal(t, "where is the beach", res.Payload.Text)
	require.Equal(t, "es-US:where is the beach", res.Payload.Translated)
}

func TestTranslateEmptyIsInvocationError(t *testing.T) {
	h, _ := newHandlers(t, new(MockSearcher))

	_, err := h.Translate(context.Background(),
		request("phone-1", chooser.Utterance{}))

	var inv protocol.InvocationError
	require.True(t, stderr.As(err, &inv))
}

func TestTranscribeWithoutRecognizer(t *testing.T) {
	h, _ := newHandlers(t, new(MockSearcher))

	_, err := h.Transcribe(context.Background(),
		request("phone-1", speech.Audio{Data: []byte{0, 1}}))
	require.Error(t, err)

	var inv protocol.InvocationError
	require.False(t, stderr.As(err, &inv))
}

func TestSearch(t *testing.T) {
	s := new(MockSearcher)
	s.On("SearchText", "United States Attractions").
		Return([]places.Place{paris}, nil)
	h, _ := newHandlers(t, s)

	res, err := h.Search(context.Background(), request("phone-1", SearchRequest{}))
	require.NoError(t, err)
	require.Equal(t, "geo:48.8606,2.3376", res.Payload.URI)
	s.AssertExpectations(t)
}

func TestRecognitionError(t *testing.T) {
	h, _ := newHandlers(t, new(MockSearcher))

	res, err := h.RecognitionError(context.Background(), request("phone-1",
		RecognitionErrorRequest{Code: speech.AudioError}))
	require.NoError(t, err)
	require.Equal(t, "Audio", res.Payload.Message)

	res, err = h.RecognitionError(context.Background(), request("phone-1",
		RecognitionErrorRequest{Code: 42}))
	require.NoError(t, err)
	require.Equal(t, "ERRNO: 42", res.Payload.Message)
}

func TestMuxHealth(t *testing.T) {
	mux := NewMux(http.NotFoundHandler())
	srv := httptest.NewServer(mux)
	defer srv.Close()

	res, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusNoContent, res.StatusCode)
}
