// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package motion

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sakura/springbreak/internal/log"
)

// WebSocketHandler accepts one device per WebSocket connection and runs its
// samples (JSON text frames) through a dedicated detector. The device id is
// taken from the "deviceId" path value or the "device" query parameter.
type WebSocketHandler struct {
	upgrader   websocket.Upgrader
	dispatcher Dispatcher
	log        log.Logger

	mu   sync.RWMutex
	opts []DetectorOption
}

const (
	wsReadLimit   = 4 << 10
	wsBacklog     = 64
	wsCloseWait   = time.Second
	wsDeviceParam = "deviceId"
)

// NewWebSocketHandler creates the handler. The options are applied to the
// detector of every connection.
func NewWebSocketHandler(
	dispatcher Dispatcher,
	opt ...DetectorOption,
) (*WebSocketHandler, error) {
	if err := checkOptions(dispatcher, opt); err != nil {
		return nil, err
	}

	var opts DetectorOptions
	opts.Apply(opt)

	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		dispatcher: dispatcher,
		opts:       opt,
		log:        log.Wrap(opts.Logger),
	}, nil
}

// Reconfigure replaces the detector options. Open connections keep their
// detectors; connections accepted afterwards use the new options.
func (h *WebSocketHandler) Reconfigure(opt ...DetectorOption) error {
	if err := checkOptions(h.dispatcher, opt); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.opts = opt
	return nil
}

// ServeHTTP upgrades the connection and consumes samples until the peer closes
// it or sends a malformed frame.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	deviceID := r.PathValue(wsDeviceParam)
	if deviceID == "" {
		deviceID = r.URL.Query().Get("device")
	}
	if deviceID == "" {
		http.Error(w, "device id is required", http.StatusBadRequest)
		return
	}

	h.mu.RLock()
	opts := h.opts
	h.mu.RUnlock()

	detector, err := NewDetector(deviceID, h.dispatcher, opts...)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied to the client.
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsReadLimit)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	l := h.log.With(
		slog.String("device_id", deviceID),
		slog.String("connection_id", uuid.NewString()),
	)
	l.Info(ctx, "motion stream opened")

	samples := make(chan Sample, wsBacklog)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = detector.Run(ctx, samples)
	}()

	h.read(ctx, l, conn, samples)
	close(samples)
	<-done

	l.Info(ctx, "motion stream closed", slog.Any("samples", detector.Stats()))
}

func (h *WebSocketHandler) read(
	ctx context.Context,
	l log.Logger,
	conn *websocket.Conn,
	samples chan<- Sample,
) {
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
			) {
				l.Err(ctx, "motion stream read failed", err)
			}
			return
		}

		var s Sample
		if kind != websocket.TextMessage || json.Unmarshal(data, &s) != nil {
			l.Warn(ctx, "malformed motion sample")
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(
					websocket.ClosePolicyViolation,
					"malformed sample",
				),
				time.Now().Add(wsCloseWait),
			)
			return
		}

		select {
		case samples <- s:
		case <-ctx.Done():
			return
		}
	}
}
