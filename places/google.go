// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package places

import (
	"context"
	"log/slog"
	"strings"

	placesapi "cloud.google.com/go/maps/places/apiv1"
	"cloud.google.com/go/maps/places/apiv1/placespb"
	"github.com/googleapis/gax-go/v2/callctx"
	"github.com/sakura/springbreak/errors"
	"github.com/sakura/springbreak/internal/gapi"
	"github.com/sakura/springbreak/internal/log"
	"github.com/sakura/springbreak/internal/options"
	"google.golang.org/api/option"
)

type (
	// SearchTextFunc performs one Places text search request.
	SearchTextFunc func(
		ctx context.Context,
		req *placespb.SearchTextRequest,
	) (*placespb.SearchTextResponse, error)

	// Google is a Searcher using the Places API (New) text search.
	Google struct {
		search SearchTextFunc
		close  func() error
		log    log.Logger
	}

	// GoogleOption represents a single Places client option.
	GoogleOption interface{ google(*GoogleOptions) }

	// GoogleOptions are the resolved Places client options.
	GoogleOptions struct {
		// ClientOptions are passed to the Places client.
		ClientOptions []option.ClientOption

		Logger *slog.Logger
	}

	// WithEndpoint overrides the Places endpoint.
	WithEndpoint string

	// This option is not used directly; see WithLogger below.
	withLogger struct{ *slog.Logger }
)

// FieldMask limits responses to the fields a pin needs. The Places API
// rejects searches without one.
const FieldMask = "places.location,places.displayName"

// NewGoogle connects to the Places API, authenticated by API key.
func NewGoogle(
	ctx context.Context,
	apiKey string,
	opt ...GoogleOption,
) (*Google, error) {
	var opts GoogleOptions
	opts.Apply(opt)

	if apiKey == "" {
		return nil, errors.Config("apiKey", "", "places API key is required")
	}

	client, err := placesapi.NewClient(ctx,
		append(opts.ClientOptions, option.WithAPIKey(apiKey))...)
	if err != nil {
		return nil, gapi.Error(ctx, err, "places client")
	}

	g := NewGoogleFunc(
		func(
			ctx context.Context,
			req *placespb.SearchTextRequest,
		) (*placespb.SearchTextResponse, error) {
			return client.SearchText(ctx, req)
		},
		&opts,
	)
	g.close = client.Close
	return g, nil
}

// NewGoogleFunc creates a searcher around an existing request function.
func NewGoogleFunc(search SearchTextFunc, opt ...GoogleOption) *Google {
	var opts GoogleOptions
	opts.Apply(opt)

	return &Google{
		search: search,
		log:    log.Wrap(opts.Logger),
	}
}

// SearchText runs a text search. An empty result is not an error.
func (g *Google) SearchText(ctx context.Context, q Query) ([]Place, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, errors.Invalid("query", q.Text, "query text is required")
	}
	if q.MaxResults < 0 {
		return nil, errors.Invalid("maxResults", q.MaxResults,
			"max results must not be negative")
	}

	res, err := g.search(
		callctx.SetHeaders(ctx, "x-goog-fieldmask", FieldMask),
		&placespb.SearchTextRequest{
			TextQuery:      q.Text,
			LanguageCode:   q.Language,
			MaxResultCount: int32(q.MaxResults),
		},
	)
	if err != nil {
		return nil, gapi.Error(ctx, err, "place search")
	}

	found := make([]Place, 0, len(res.GetPlaces()))
	for _, p := range res.GetPlaces() {
		found = append(found, Place{
			Name: p.GetDisplayName().GetText(),
			Location: LatLng{
				Latitude:  p.GetLocation().GetLatitude(),
				Longitude: p.GetLocation().GetLongitude(),
			},
		})
	}

	g.log.Debug(ctx, "places found",
		slog.String("query", q.Text),
		slog.Int("count", len(found)),
	)
	return found, nil
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

func (o WithEndpoint) google(opt *GoogleOptions) {
	if o != "" {
		opt.ClientOptions = append(opt.ClientOptions, option.WithEndpoint(string(o)))
	}
}

// WithLogger enables logging with the provided slog logger.
func WithLogger(logger *slog.Logger) GoogleOption {
	return withLogger{logger}
}

func (o withLogger) google(opt *GoogleOptions) {
	opt.Logger = o.Logger
}
