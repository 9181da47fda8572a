// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package app

// MQTT topics. {deviceId} is resolved from the incoming topic.
const (
	DeviceToken = "deviceId"

	MotionTopic = "springbreak/{deviceId}/motion"
	PinTopic    = "springbreak/{deviceId}/pin"

	TranslateCommandTopic        = "springbreak/{deviceId}/command/translate"
	TranscribeCommandTopic       = "springbreak/{deviceId}/command/transcribe"
	LanguagesCommandTopic        = "springbreak/{deviceId}/command/languages"
	SearchCommandTopic           = "springbreak/{deviceId}/command/search"
	RecognitionErrorCommandTopic = "springbreak/{deviceId}/command/recognitionerror"
)
