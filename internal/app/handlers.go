// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package app

import (
	"context"
	stderr "errors"
	"log/slog"

	"github.com/Azure/iot-operations-sdks/go/protocol"
	"github.com/sakura/springbreak/chooser"
	"github.com/sakura/springbreak/errors"
	"github.com/sakura/springbreak/internal/log"
	"github.com/sakura/springbreak/language"
	"github.com/sakura/springbreak/motion"
	"github.com/sakura/springbreak/speech"
)

type (
	// Handlers serve the MQTT telemetry and commands of the service.
	Handlers struct {
		chooser  *chooser.Chooser
		registry *motion.Registry
		log      log.Logger
	}

	// SearchRequest asks for a destination pin without shaking.
	SearchRequest struct{}

	// RecognitionErrorRequest reports an on-device recognizer failure.
	RecognitionErrorRequest struct {
		Code speech.ErrorCode `json:"code"`
	}

	// RecognitionErrorResponse carries the message to show the user.
	RecognitionErrorResponse struct {
		Message string `json:"message"`
	}
)

// NewHandlers creates the handlers.
func NewHandlers(
	c *chooser.Chooser,
	r *motion.Registry,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{chooser: c, registry: r, log: log.Wrap(logger)}
}

// Motion feeds a device sample to its shake detector. Bad samples are logged
// and dropped.
func (h *Handlers) Motion(
	ctx context.Context,
	msg *protocol.TelemetryMessage[motion.Sample],
) error {
	deviceID := msg.TopicTokens[DeviceToken]
	if _, err := h.registry.OnSample(ctx, deviceID, msg.Payload); err != nil {
		h.log.Err(ctx, "motion sample dropped", err)
	}
	return nil
}

// Translate translates on-device recognition results.
func (h *Handlers) Translate(
	ctx context.Context,
	req *protocol.CommandRequest[chooser.Utterance],
) (*protocol.CommandResponse[chooser.Translation], error) {
	deviceID, err := device(req.TopicTokens)
	if err != nil {
		return nil, err
	}
	res, err := h.chooser.Translate(ctx, deviceID, req.Payload)
	if err != nil {
		return nil, invocation(err)
	}
	return protocol.Respond(res)
}

// Transcribe recognizes and translates an audio clip.
func (h *Handlers) Transcribe(
	ctx context.Context,
	req *protocol.CommandRequest[speech.Audio],
) (*protocol.CommandResponse[chooser.Translation], error) {
	deviceID, err := device(req.TopicTokens)
	if err != nil {
		return nil, err
	}
	res, err := h.chooser.Transcribe(ctx, deviceID, req.Payload)
	if err != nil {
		return nil, invocation(err)
	}
	return protocol.Respond(res)
}

// Languages sets the device's language pair, or returns the current one when
// the request is empty.
func (h *Handlers) Languages(
	ctx context.Context,
	req *protocol.CommandRequest[language.Selection],
) (*protocol.CommandResponse[language.Selection], error) {
	deviceID, err := device(req.TopicTokens)
	if err != nil {
		return nil, err
	}
	if req.Payload != (language.Selection{}) {
		if err := h.chooser.SetLanguages(ctx, deviceID, req.Payload); err != nil {
			return nil, invocation(err)
		}
	}
	sel, err := h.chooser.Languages(ctx, deviceID)
	if err != nil {
		return nil, invocation(err)
	}
	return protocol.Respond(sel)
}

// Search picks a destination for the device.
func (h *Handlers) Search(
	ctx context.Context,
	req *protocol.CommandRequest[SearchRequest],
) (*protocol.CommandResponse[chooser.Pin], error) {
	deviceID, err := device(req.TopicTokens)
	if err != nil {
		return nil, err
	}
	pin, err := h.chooser.Search(ctx, deviceID)
	if err != nil {
		return nil, invocation(err)
	}
	return protocol.Respond(pin)
}

// RecognitionError maps a recognizer error code to its user message.
func (h *Handlers) RecognitionError(
	ctx context.Context,
	req *protocol.CommandRequest[RecognitionErrorRequest],
) (*protocol.CommandResponse[RecognitionErrorResponse], error) {
	deviceID, err := device(req.TopicTokens)
	if err != nil {
		return nil, err
	}
	msg := h.chooser.ReportRecognitionError(ctx, deviceID, req.Payload.Code)
	return protocol.Respond(RecognitionErrorResponse{Message: msg})
}

func device(tokens map[string]string) (string, error) {
	id := tokens[DeviceToken]
	if id == "" {
		return "", protocol.InvocationError{
			Message:      "device id missing from topic",
			PropertyName: DeviceToken,
		}
	}
	return id, nil
}

// Caller mistakes become invocation errors; anything else is reported as an
// execution failure.
func invocation(err error) error {
	var e *errors.Error
	if stderr.As(err, &e) && e.Kind == errors.ArgumentInvalid {
		return protocol.InvocationError{
			Message:       e.Message,
			PropertyName:  e.PropertyName,
			PropertyValue: e.PropertyValue,
		}
	}
	return err
}
