// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package speech

import (
	"context"
	"log/slog"

	speechapi "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/sakura/springbreak/errors"
	"github.com/sakura/springbreak/internal/gapi"
	"github.com/sakura/springbreak/internal/log"
	"github.com/sakura/springbreak/internal/options"
	"google.golang.org/api/option"
)

type (
	// RecognizeFunc performs one synchronous recognition request.
	RecognizeFunc func(
		ctx context.Context,
		req *speechpb.RecognizeRequest,
	) (*speechpb.RecognizeResponse, error)

	// Google is a Recognizer backed by Cloud Speech-to-Text.
	Google struct {
		recognize    RecognizeFunc
		close        func() error
		alternatives int32
		log          log.Logger
	}

	// GoogleOption represents a single Google recognizer option.
	GoogleOption interface{ google(*GoogleOptions) }

	// GoogleOptions are the resolved Google recognizer options.
	GoogleOptions struct {
		// MaxAlternatives bounds the alternatives returned per result.
		MaxAlternatives int32

		// ClientOptions are passed to the Cloud Speech client.
		ClientOptions []option.ClientOption

		Logger *slog.Logger
	}

	// WithMaxAlternatives bounds the alternatives returned per result.
	WithMaxAlternatives int32

	// WithAPIKey authenticates the Cloud Speech client by API key.
	WithAPIKey string

	// WithEndpoint overrides the Cloud Speech endpoint.
	WithEndpoint string

	// This option is not used directly; see WithLogger below.
	withLogger struct{ *slog.Logger }
)

// NewGoogle connects to Cloud Speech-to-Text. Without an API key the client
// uses application default credentials.
func NewGoogle(ctx context.Context, opt ...GoogleOption) (*Google, error) {
	var opts GoogleOptions
	opts.Apply(opt)

	client, err := speechapi.NewClient(ctx, opts.ClientOptions...)
	if err != nil {
		return nil, gapi.Error(ctx, err, "speech client")
	}

	g := NewGoogleFunc(
		func(
			ctx context.Context,
			req *speechpb.RecognizeRequest,
		) (*speechpb.RecognizeResponse, error) {
			return client.Recognize(ctx, req)
		},
		&opts,
	)
	g.close = client.Close
	return g, nil
}

// NewGoogleFunc creates a recognizer around an existing request function.
func NewGoogleFunc(recognize RecognizeFunc, opt ...GoogleOption) *Google {
	var opts GoogleOptions
	opts.Apply(opt)

	if opts.MaxAlternatives <= 0 {
		opts.MaxAlternatives = 1
	}
	return &Google{
		recognize:    recognize,
		alternatives: opts.MaxAlternatives,
		log:          log.Wrap(opts.Logger),
	}
}

// Recognize transcribes the clip in the given language.
func (g *Google) Recognize(
	ctx context.Context,
	audio Audio,
	tag string,
) ([]string, error) {
	if len(audio.Data) == 0 {
		return nil, errors.Invalid("audio", nil, "audio is empty")
	}
	if tag == "" {
		return nil, errors.Invalid("tag", tag, "language is required")
	}
	rate := audio.SampleRateHertz
	if rate == 0 {
		rate = DefaultSampleRate
	}

	resp, err := g.recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz: rate,
			LanguageCode:    tag,
			MaxAlternatives: g.alternatives,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{
				Content: audio.Data,
			},
		},
	})
	if err != nil {
		return nil, gapi.Error(ctx, err, "speech recognition")
	}

	var phrases []string
	for _, res := range resp.GetResults() {
		for _, alt := range res.GetAlternatives() {
			phrases = append(phrases, alt.GetTranscript())
		}
	}
	if len(phrases) == 0 {
		return nil, &errors.Error{
			Message:       NoMatch.Message(),
			Kind:          errors.NoResults,
			PropertyName:  "code",
			PropertyValue: NoMatch,
		}
	}

	g.log.Debug(ctx, "speech recognized",
		slog.String("language", tag),
		slog.Int("results", len(phrases)),
	)
	return phrases, nil
}

// Close releases the underlying client, if any.
func (g *Google) Close() error {
	if g.close == nil {
		return nil
	}
	return g.close()
}

// Apply resolves the provided list of options.
func (o *GoogleOptions) Apply(
	opts []GoogleOption,
	rest ...GoogleOption,
) {
	for opt := range options.Apply[GoogleOption](opts, rest...) {
		opt.google(o)
	}
}

func (o *GoogleOptions) google(opt *GoogleOptions) {
	if o != nil {
		*opt = *o
	}
}

func (o WithMaxAlternatives) google(opt *GoogleOptions) {
	opt.MaxAlternatives = int32(o)
}

func (o WithAPIKey) google(opt *GoogleOptions) {
	if o != "" {
		opt.ClientOptions = append(opt.ClientOptions, option.WithAPIKey(string(o)))
	}
}

func (o WithEndpoint) google(opt *GoogleOptions) {
	if o != "" {
		opt.ClientOptions = append(opt.ClientOptions, option.WithEndpoint(string(o)))
	}
}

// WithLogger enables logging with the provided slog logger.
func WithLogger(logger *slog.Logger) interface {
	GoogleOption
	CommandOption
} {
	return withLogger{logger}
}

func (o withLogger) google(opt *GoogleOptions) {
	opt.Logger = o.Logger
}
