// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package speech

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

type (
	// Audio is a mono LINEAR16 (signed 16-bit little-endian PCM) clip.
	Audio struct {
		Data            []byte `json:"data"`
		SampleRateHertz int32  `json:"sampleRateHertz,omitempty"`
	}

	// Recognizer converts speech to text. It returns every recognized
	// alternative, best first.
	Recognizer interface {
		Recognize(ctx context.Context, audio Audio, tag string) ([]string, error)
	}

	// Synthesizer converts text to speech, returning a WAV clip.
	Synthesizer interface {
		Synthesize(ctx context.Context, text, tag string) ([]byte, error)
	}

	// ErrorCode is a speech recognizer failure reported by a device. Values
	// match the platform recognizer's error constants.
	ErrorCode int
)

// DefaultSampleRate is assumed when Audio does not carry a sample rate.
const DefaultSampleRate = 16000

const (
	NetworkTimeout ErrorCode = iota + 1
	Network
	AudioError
	Server
	Client
	SpeechTimeout
	NoMatch
	RecognizerBusy
	InsufficientPermissions
)

// Message returns the text shown to the user for the error.
func (c ErrorCode) Message() string {
	switch c {
	case NetworkTimeout:
		return "Network timeout"
	case Network:
		return "Network"
	case AudioError:
		return "Audio"
	case Server:
		return "Server"
	case Client:
		return "Client"
	case SpeechTimeout:
		return "Speech time out"
	case NoMatch:
		return "No match"
	case RecognizerBusy:
		return "Recogniser busy"
	case InsufficientPermissions:
		return "Insufficient permissions"
	default:
		return fmt.Sprintf("ERRNO: %d", int(c))
	}
}

func (c ErrorCode) String() string {
	return c.Message()
}

// LogValue logs both the numeric code and its message.
func (c ErrorCode) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("code", int(c)),
		slog.String("message", c.Message()),
	)
}

// JoinResults concatenates recognition results into the text to translate.
func JoinResults(results []string) string {
	return strings.Join(results, "")
}
