// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package motion_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	svcerrors "github.com/sakura/springbreak/errors"
	"github.com/sakura/springbreak/motion"
	"github.com/stretchr/testify/require"
)

func serveMotion(t *testing.T, d motion.Dispatcher) *httptest.Server {
	t.Helper()
	h, err := motion.NewWebSocketHandler(d)
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.Handle("/motion/{deviceId}", h)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketShake(t *testing.T) {
	rec := newRecorder()
	srv := serveMotion(t, rec)
	conn := dial(t, srv, "/motion/phone-1")

	for _, s := range shakeStream(t0) {
		require.NoError(t, conn.WriteJSON(s))
	}

	select {
	case id := <-rec.ch:
		require.Equal(t, "phone-1", id)
	case <-time.After(5 * time.Second):
		t.Fatal("no shake dispatched")
	}
}

func TestWebSocketMalformedSample(t *testing.T) {
	srv := serveMotion(t, newRecorder())
	conn := dial(t, srv, "/motion/phone-1")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation))
}

func TestWebSocketReconfigure(t *testing.T) {
	rec := newRecorder()
	h, err := motion.NewWebSocketHandler(rec)
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.Handle("/motion/{deviceId}", h)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	err = h.Reconfigure(motion.WithShakeThreshold(-1))
	require.True(t, svcerrors.Is(err, svcerrors.ConfigurationInvalid))

	// A nudge far below the default threshold counts once it is zero.
	require.NoError(t, h.Reconfigure(motion.WithShakeThreshold(0)))
	conn := dial(t, srv, "/motion/phone-2")
	require.NoError(t, conn.WriteJSON(motion.Sample{TimestampMillis: t0}))
	require.NoError(t, conn.WriteJSON(motion.Sample{TimestampMillis: t0 + 200, X: 0.01}))

	select {
	case id := <-rec.ch:
		require.Equal(t, "phone-2", id)
	case <-time.After(5 * time.Second):
		t.Fatal("no shake dispatched")
	}
}

func TestWebSocketRequiresDevice(t *testing.T) {
	h, err := motion.NewWebSocketHandler(newRecorder())
	require.NoError(t, err)

	srv := httptest.NewServer(h)
	defer srv.Close()

	res, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestWebSocketDeviceQuery(t *testing.T) {
	rec := newRecorder()
	h, err := motion.NewWebSocketHandler(rec)
	require.NoError(t, err)

	srv := httptest.NewServer(h)
	defer srv.Close()
	conn := dial(t, srv, "/?device=tablet")

	for _, s := range shakeStream(t0) {
		require.NoError(t, conn.WriteJSON(s))
	}

	select {
	case id := <-rec.ch:
		require.Equal(t, "tablet", id)
	case <-time.After(5 * time.Second):
		t.Fatal("no shake dispatched")
	}
}
