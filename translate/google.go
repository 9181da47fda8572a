// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package translate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	gtranslate "cloud.google.com/go/translate"
	"github.com/sakura/springbreak/errors"
	"github.com/sakura/springbreak/internal/gapi"
	"github.com/sakura/springbreak/internal/log"
	"github.com/sakura/springbreak/internal/options"
	"github.com/sakura/springbreak/language"
	xlanguage "golang.org/x/text/language"
	"google.golang.org/api/option"
)

type (
	// GoogleClient is the subset of the Cloud Translation client the backend
	// uses. *translate.Client from cloud.google.com/go/translate satisfies it.
	GoogleClient interface {
		Translate(
			ctx context.Context,
			inputs []string,
			target xlanguage.Tag,
			opts *gtranslate.Options,
		) ([]gtranslate.Translation, error)
		SupportedLanguages(
			ctx context.Context,
			target xlanguage.Tag,
		) ([]gtranslate.Language, error)
	}

	// Google is a Backend using Cloud Translation (basic).
	Google struct {
		client GoogleClient
		close  func() error
		log    log.Logger

		mu        sync.Mutex
		supported map[string]bool
	}

	// GoogleOption represents a single Google backend option.
	GoogleOption interface{ google(*GoogleOptions) }

	// GoogleOptions are the resolved Google backend options.
	GoogleOptions struct {
		// ClientOptions are passed to the Cloud Translation client.
		ClientOptions []option.ClientOption

		Logger *slog.Logger
	}

	// WithEndpoint overrides the Cloud Translation endpoint.
	WithEndpoint string
)

// NewGoogle connects to Cloud Translation, authenticated by API key.
func NewGoogle(
	ctx context.Context,
	apiKey string,
	opt ...GoogleOption,
) (*Google, error) {
	var opts GoogleOptions
	opts.Apply(opt)

	if apiKey == "" {
		return nil, errors.Config("apiKey", "", "translation API key is required")
	}

	client, err := gtranslate.NewClient(ctx,
		append(opts.ClientOptions, option.WithAPIKey(apiKey))...)
	if err != nil {
		return nil, gapi.Error(ctx, err, "translation client")
	}

	g := NewGoogleClient(client, &opts)
	g.close = client.Close
	return g, nil
}

// NewGoogleClient creates a backend around an existing client.
func NewGoogleClient(client GoogleClient, opt ...GoogleOption) *Google {
	var opts GoogleOptions
	opts.Apply(opt)

	return &Google{
		client: client,
		log:    log.Wrap(opts.Logger),
	}
}

// Prepare checks that both languages are supported by the API.
func (g *Google) Prepare(ctx context.Context, src, dst string) error {
	supported, err := g.languages(ctx)
	if err != nil {
		return err
	}
	for _, tag := range []string{src, dst} {
		base, err := language.Base(tag)
		if err != nil {
			return err
		}
		if !supported[base] {
			return errors.Invalid("language", tag,
				fmt.Sprintf("language %q is not supported", tag))
		}
	}
	return nil
}

// Translate translates plain text from src to dst.
func (g *Google) Translate(
	ctx context.Context,
	src, dst, text string,
) (string, error) {
	if text == "" {
		return "", nil
	}
	source, err := baseTag(src)
	if err != nil {
		return "", err
	}
	target, err := baseTag(dst)
	if err != nil {
		return "", err
	}

	res, err := g.client.Translate(ctx, []string{text}, target,
		&gtranslate.Options{Source: source, Format: gtranslate.Text})
	if err != nil {
		return "", gapi.Error(ctx, err, "translation")
	}
	if len(res) == 0 {
		return "", &errors.Error{
			Message: "translation returned no results",
			Kind:    errors.NoResults,
		}
	}
	return res[0].Text, nil
}

// Close releases the underlying client, if any.
func (g *Google) Close() error {
	if g.close == nil {
		return nil
	}
	return g.close()
}

func (g *Google) languages(ctx context.Context) (map[string]bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.supported != nil {
		return g.supported, nil
	}

	res, err := g.client.SupportedLanguages(ctx, xlanguage.English)
	if err != nil {
		return nil, gapi.Error(ctx, err, "language lookup")
	}

	supported := make(map[string]bool, len(res))
	for _, l := range res {
		base, _ := l.Tag.Base()
		supported[base.String()] = true
	}
	g.supported = supported
	g.log.Debug(ctx, "translation languages loaded",
		slog.Int("count", len(supported)))
	return supported, nil
}

// The basic API translates between base languages; regions are ignored.
func baseTag(tag string) (xlanguage.Tag, error) {
	base, err := language.Base(tag)
	if err != nil {
		return xlanguage.Und, err
	}
	t, err := xlanguage.Parse(base)
	if err != nil {
		return xlanguage.Und, errors.Invalid("language", tag, err.Error())
	}
	return t, nil
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

func (o WithEndpoint) google(opt *GoogleOptions) {
	if o != "" {
		opt.ClientOptions = append(opt.ClientOptions, option.WithEndpoint(string(o)))
	}
}

func (o withLogger) google(opt *GoogleOptions) {
	opt.Logger = o.Logger
}
